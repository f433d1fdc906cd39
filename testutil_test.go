package pgwire

import (
	"context"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/tidewire/pgwire/internal/mockserver"
	"github.com/tidewire/pgwire/pkg/protocol"
)

// connectReady establishes a Session over a mock pipe, running a minimal
// no-auth handshake, and returns both the client-facing Session and the
// mock backend it's paired with so the test can continue scripting
// exchanges against it.
func connectReady(t *testing.T) (*Session, *mockserver.Server) {
	t.Helper()
	client, server := mockserver.NewPipe(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectStartup()
		server.ExpectNoSSL()
		server.SendAuthOK()
		server.SendBackendKeyData(1, 1)
		server.SendReadyForQuery(protocol.TxIdle)
	}()

	sess, err := ConnectOverConn(client, testParams(), WithLogger(slogt.New(t)))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	<-done
	return sess, server
}

func withTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
