package pgwire

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidewire/pgwire/internal/mockserver"
	"github.com/tidewire/pgwire/pkg/protocol"
)

func TestNotificationQueuedAndDrained(t *testing.T) {
	sess, server := connectReady(t)
	defer sess.Close()
	ctx := withTimeout(t)

	// before any exchange reads the wire, the queue is empty.
	_, ok := sess.Notifications().Next()
	require.False(t, ok)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendSimpleQuery)
		server.SendNotificationResponse(7, "events", "row inserted")
		server.SendCommandComplete("SELECT 1")
		server.SendReadyForQuery(protocol.TxIdle)
	}()
	_, err := sess.SimpleQuery(ctx, "SELECT 1")
	require.NoError(t, err)
	<-done

	note, ok := sess.Notifications().Next()
	require.True(t, ok)
	require.Equal(t, "events", note.Channel)
	require.Equal(t, "row inserted", note.Message)
	require.Equal(t, int32(7), note.ProcessID)

	_, ok = sess.Notifications().Next()
	require.False(t, ok)
}

func TestNoticeRoutedToHandler(t *testing.T) {
	client, server := mockserver.NewPipe(t)
	defer server.Close()

	var mu sync.Mutex
	var got []Notification
	handler := func(n Notification) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectStartup()
		server.ExpectNoSSL()
		server.SendAuthOK()
		server.SendBackendKeyData(1, 1)
		server.SendReadyForQuery(protocol.TxIdle)
	}()
	sess, err := ConnectOverConn(client, testParams(), WithNoticeHandler(handler))
	require.NoError(t, err)
	<-done
	defer sess.Close()

	ctx := withTimeout(t)
	done = make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendSimpleQuery)
		server.SendNoticeResponse("NOTICE", "table already exists, skipping")
		server.SendCommandComplete("CREATE TABLE")
		server.SendReadyForQuery(protocol.TxIdle)
	}()
	_, err = sess.SimpleQuery(ctx, "CREATE TABLE IF NOT EXISTS t (id int)")
	require.NoError(t, err)
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.Equal(t, "NOTICE", got[0].Severity)
	require.Equal(t, "table already exists, skipping", got[0].Message)

	// a notice never enters the LISTEN/NOTIFY queue.
	_, ok := sess.Notifications().Next()
	require.False(t, ok)
}
