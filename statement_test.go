package pgwire

import (
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/require"
	"github.com/tidewire/pgwire/internal/mockserver"
	"github.com/tidewire/pgwire/pkg/protocol"
)

func TestPrepareCapturesParamAndResultShape(t *testing.T) {
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
		server.SendParameterDescription(uint32(oid.T_int4))
		server.SendRowDescription(mockserver.FieldSpec{Name: "id", DataTypeOID: uint32(oid.T_int4)})
		server.SendReadyForQuery(protocol.TxIdle)
	}()

	stmt, err := sess.Prepare(ctx, "SELECT id FROM t WHERE id = $1")
	require.NoError(t, err)
	<-done

	require.Equal(t, []oid.Oid{oid.T_int4}, stmt.ParameterOIDs())
	require.Len(t, stmt.ResultDescription(), 1)
	require.Equal(t, "id", stmt.ResultDescription()[0].Name)
}

func TestPrepareRejectedDuringOpenTransaction(t *testing.T) {
	sess, server := connectReady(t)
	defer sess.Close()
	ctx := withTimeout(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendSimpleQuery)
		server.SendCommandComplete("BEGIN")
		server.SendReadyForQuery(protocol.TxInTransaction)
	}()
	_, err := sess.Begin(ctx)
	require.NoError(t, err)
	<-done

	// Prepare through the Session (not the TransactionHandle) must fail
	// immediately, without writing anything to the wire.
	_, err = sess.Prepare(ctx, "SELECT 1")
	require.Error(t, err)
	var pgErr *Error
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, WrongTransaction, pgErr.Kind)
}

func TestBindRejectsWrongParamCount(t *testing.T) {
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
		server.SendParameterDescription(uint32(oid.T_int4))
		server.SendNoData()
		server.SendReadyForQuery(protocol.TxIdle)
	}()
	stmt, err := sess.Prepare(ctx, "DELETE FROM t WHERE id = $1")
	require.NoError(t, err)
	<-done

	_, err = stmt.Bind(ctx)
	require.Error(t, err)
	var pgErr *Error
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, WrongParamCount, pgErr.Kind)
}
