package pgwire

import (
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/require"
	"github.com/tidewire/pgwire/internal/mockserver"
	"github.com/tidewire/pgwire/pkg/protocol"
)

func TestPortalCloseReleasesServerSideCursor(t *testing.T) {
	sess, server := connectReady(t)
	defer sess.Close()
	ctx := withTimeout(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendParse)
		server.ExpectFrontend(protocol.FrontendDescribe)
		server.ExpectSync()
		server.SendParseComplete()
		server.SendParameterDescription()
		server.SendRowDescription(mockserver.FieldSpec{Name: "id", DataTypeOID: uint32(oid.T_int4)})
		server.SendReadyForQuery(protocol.TxIdle)
	}()
	stmt, err := sess.Prepare(ctx, "SELECT id FROM t")
	require.NoError(t, err)
	<-done

	portal, err := stmt.Bind(ctx)
	require.NoError(t, err)

	done = make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendBind)
		server.ExpectFrontend(protocol.FrontendExecute)
		server.ExpectSync()
		server.SendBindComplete()
		server.SendCommandComplete("SELECT 0")
		server.SendReadyForQuery(protocol.TxIdle)
	}()
	rows, err := portal.Execute(ctx)
	require.NoError(t, err)
	require.False(t, rows.Next(ctx))
	require.NoError(t, rows.Err())
	<-done

	done = make(chan struct{})
	go func() {
		defer close(done)
		r := server.ExpectFrontend(protocol.FrontendClose)
		target, err := r.GetByte()
		require.NoError(t, err)
		require.Equal(t, byte(protocol.ClosePortal), target)
		name, err := r.GetString()
		require.NoError(t, err)
		require.Equal(t, portal.name, name)
		server.ExpectSync()
		server.SendCloseComplete()
		server.SendReadyForQuery(protocol.TxIdle)
	}()
	require.NoError(t, portal.Close(ctx))
	<-done
}
