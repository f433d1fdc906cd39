package pgwire

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidewire/pgwire/pkg/protocol"
)

func TestBeginCommit(t *testing.T) {
	sess, server := connectReady(t)
	defer sess.Close()
	ctx := withTimeout(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r := server.ExpectFrontend(protocol.FrontendSimpleQuery)
		q, err := r.GetString()
		require.NoError(t, err)
		require.Equal(t, "BEGIN", q)
		server.SendCommandComplete("BEGIN")
		server.SendReadyForQuery(protocol.TxInTransaction)
	}()
	tx, err := sess.Begin(ctx)
	require.NoError(t, err)
	<-done
	require.Equal(t, 1, sess.depth())

	done = make(chan struct{})
	go func() {
		defer close(done)
		r := server.ExpectFrontend(protocol.FrontendSimpleQuery)
		q, err := r.GetString()
		require.NoError(t, err)
		require.Equal(t, "COMMIT", q)
		server.SendCommandComplete("COMMIT")
		server.SendReadyForQuery(protocol.TxIdle)
	}()
	require.NoError(t, tx.Commit(ctx))
	<-done
	require.Equal(t, 0, sess.depth())

	// a second Commit on an already-finished handle is rejected locally.
	err = tx.Commit(ctx)
	require.Error(t, err)
	var pgErr *Error
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, WrongTransaction, pgErr.Kind)
}

func TestNestedSavepointRollback(t *testing.T) {
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
	tx, err := sess.Begin(ctx)
	require.NoError(t, err)
	<-done

	done = make(chan struct{})
	go func() {
		defer close(done)
		r := server.ExpectFrontend(protocol.FrontendSimpleQuery)
		q, err := r.GetString()
		require.NoError(t, err)
		require.Equal(t, "SAVEPOINT pgwire_sp_1", q)
		server.SendCommandComplete("SAVEPOINT")
		server.SendReadyForQuery(protocol.TxInTransaction)
	}()
	sp, err := tx.Begin(ctx)
	require.NoError(t, err)
	<-done
	require.Equal(t, 2, sess.depth())

	done = make(chan struct{})
	go func() {
		defer close(done)
		r := server.ExpectFrontend(protocol.FrontendSimpleQuery)
		q, err := r.GetString()
		require.NoError(t, err)
		require.Equal(t, "ROLLBACK TO SAVEPOINT pgwire_sp_1", q)
		server.SendCommandComplete("ROLLBACK")
		server.SendReadyForQuery(protocol.TxInTransaction)
	}()
	require.NoError(t, sp.Rollback(ctx))
	<-done
	require.Equal(t, 1, sess.depth())

	// the outer handle is current again and can commit.
	done = make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendSimpleQuery)
		server.SendCommandComplete("COMMIT")
		server.SendReadyForQuery(protocol.TxIdle)
	}()
	require.NoError(t, tx.Commit(ctx))
	<-done
}

func TestOuterHandleStaleWhileSavepointOpen(t *testing.T) {
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
	tx, err := sess.Begin(ctx)
	require.NoError(t, err)
	<-done

	done = make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendSimpleQuery)
		server.SendCommandComplete("SAVEPOINT")
		server.SendReadyForQuery(protocol.TxInTransaction)
	}()
	_, err = tx.Begin(ctx)
	require.NoError(t, err)
	<-done

	// the outer handle is stale while its savepoint is still open: using
	// it must fail locally, without writing anything to the wire.
	_, err = tx.Execute(ctx, "SELECT 1")
	require.Error(t, err)
	var pgErr *Error
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, WrongTransaction, pgErr.Kind)
}
