package pgwire

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidewire/pgwire/internal/mockserver"
	"github.com/tidewire/pgwire/pkg/protocol"
)

func testParams() *ConnectParams {
	return &ConnectParams{User: "tester", Database: "testdb"}
}

func TestConnectNoAuthRequired(t *testing.T) {
	client, server := mockserver.NewPipe(t)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		v := server.ExpectStartup()
		require.Equal(t, protocol.Version3, v)
		server.ExpectNoSSL()
		server.SendAuthOK()
		server.SendParameterStatus("server_version", "15.2")
		server.SendBackendKeyData(42, 1234)
		server.SendReadyForQuery(protocol.TxIdle)
	}()

	sess, err := ConnectOverConn(client, testParams())
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "15.2", sess.ParameterStatus("server_version"))
	require.Equal(t, int32(42), sess.BackendPID())

	<-done
}

func TestConnectMissingUser(t *testing.T) {
	_, err := Connect(context.Background(), &ConnectParams{})
	require.Error(t, err)

	var pgErr *Error
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, MissingUser, pgErr.Kind)
}

func TestConnectRejectsBackendError(t *testing.T) {
	client, server := mockserver.NewPipe(t)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectStartup()
		server.ExpectNoSSL()
		server.SendErrorResponse("FATAL", "28000", "invalid authorization specification")
	}()

	_, err := ConnectOverConn(client, testParams())
	require.Error(t, err)

	var pgErr *Error
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, Db, pgErr.Kind)
	require.Equal(t, "28000", string(pgErr.Code()))

	<-done
}
