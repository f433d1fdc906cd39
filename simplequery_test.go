package pgwire

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidewire/pgwire/internal/mockserver"
	"github.com/tidewire/pgwire/pkg/protocol"
)

func TestSimpleQueryCollectsRowsAndCommandTag(t *testing.T) {
	sess, server := connectReady(t)
	defer sess.Close()
	ctx := withTimeout(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendSimpleQuery)
		server.SendRowDescription(mockserver.FieldSpec{Name: "name"})
		server.SendDataRow([]byte("John"))
		server.SendDataRow([]byte("Mary"))
		server.SendCommandComplete("SELECT 2")
		server.SendReadyForQuery(protocol.TxIdle)
	}()

	results, err := sess.SimpleQuery(ctx, "SELECT name FROM t")
	require.NoError(t, err)
	<-done

	require.Len(t, results, 1)
	require.Equal(t, "SELECT 2", results[0].Command)
	require.Equal(t, [][]string{{"John"}, {"Mary"}}, results[0].Rows)
}

func TestSimpleQueryRejectsServerInitiatedCopyIn(t *testing.T) {
	sess, server := connectReady(t)
	defer sess.Close()
	ctx := withTimeout(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendSimpleQuery)
		server.SendCopyInResponse(protocol.BinaryFormat, 1)
		server.ExpectFrontend(protocol.FrontendCopyFail)
		server.ExpectFrontend(protocol.FrontendSync)
		server.SendErrorResponse("ERROR", "57014", "COPY from stdin failed: copy-in is not supported through SimpleQuery")
		server.SendReadyForQuery(protocol.TxIdle)
	}()

	_, err := sess.SimpleQuery(ctx, "COPY t FROM STDIN")
	require.Error(t, err)
	var pgErr *Error
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, Db, pgErr.Kind)
	<-done
}
