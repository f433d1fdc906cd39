package pgwire

import (
	"context"
	"fmt"

	"github.com/lib/pq/oid"
)

// TransactionHandle tracks nested transaction depth using SAVEPOINTs: the
// outermost Begin issues BEGIN, every nested one issues SAVEPOINT, and
// Commit/Rollback unwind the same stack in reverse.
//
// Every operation routed through a TransactionHandle enforces stack
// discipline against its owning Session's live depth: a handle whose depth
// no longer matches the session's current depth (because an inner handle
// was never finished, or was finished out of order) refuses further work
// with WrongTransaction, rather than silently operating against the wrong
// savepoint scope.
type TransactionHandle struct {
	session *Session
	depth   int
	name    string
	done    bool
}

// Begin starts a new top-level transaction on the session. Session.Begin
// requires trans_depth == 0; nested scopes are opened via the returned
// handle's own Begin.
func (s *Session) Begin(ctx context.Context) (*TransactionHandle, error) {
	if s.depth() != 0 {
		return nil, newError(WrongTransaction, fmt.Errorf("session already has an open transaction at depth %d", s.depth()))
	}
	if _, err := s.SimpleQuery(ctx, "BEGIN"); err != nil {
		return nil, err
	}
	s.setDepth(1)
	return &TransactionHandle{session: s, depth: 0}, nil
}

// Begin starts a nested transaction using a SAVEPOINT, scoped under tx.
func (tx *TransactionHandle) Begin(ctx context.Context) (*TransactionHandle, error) {
	if err := tx.checkCurrent(); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("pgwire_sp_%d", tx.depth+1)
	if _, err := tx.session.SimpleQuery(ctx, "SAVEPOINT "+name); err != nil {
		return nil, err
	}
	tx.session.setDepth(tx.depth + 2)

	return &TransactionHandle{session: tx.session, depth: tx.depth + 1, name: name}, nil
}

// Commit commits the transaction: RELEASE SAVEPOINT for a nested handle,
// COMMIT for the top-level one.
func (tx *TransactionHandle) Commit(ctx context.Context) error {
	if err := tx.checkCurrent(); err != nil {
		return err
	}
	tx.done = true

	query := "COMMIT"
	if tx.depth > 0 {
		query = "RELEASE SAVEPOINT " + tx.name
	}
	_, err := tx.session.SimpleQuery(ctx, query)
	tx.session.setDepth(tx.depth)
	return err
}

// Rollback aborts the transaction: ROLLBACK TO SAVEPOINT for a nested
// handle, ROLLBACK for the top-level one.
func (tx *TransactionHandle) Rollback(ctx context.Context) error {
	if err := tx.checkCurrent(); err != nil {
		return err
	}
	tx.done = true

	query := "ROLLBACK"
	if tx.depth > 0 {
		query = "ROLLBACK TO SAVEPOINT " + tx.name
	}
	_, err := tx.session.SimpleQuery(ctx, query)
	tx.session.setDepth(tx.depth)
	return err
}

// Prepare parses a statement against tx's session, enforcing stack
// discipline: the session's live depth must still match the depth this
// handle was opened at.
func (tx *TransactionHandle) Prepare(ctx context.Context, query string, paramOIDs ...oid.Oid) (*PreparedStatement, error) {
	if err := tx.checkCurrent(); err != nil {
		return nil, err
	}
	return tx.session.prepareStatement(ctx, query, paramOIDs...)
}

// Execute is TransactionHandle's equivalent of Session.Execute, scoped to
// this transaction's stack position.
func (tx *TransactionHandle) Execute(ctx context.Context, query string, params ...any) (uint64, error) {
	if err := tx.checkCurrent(); err != nil {
		return 0, err
	}
	return tx.session.Execute(ctx, query, params...)
}

// BatchExecute is TransactionHandle's equivalent of Session.BatchExecute.
func (tx *TransactionHandle) BatchExecute(ctx context.Context, query string) error {
	if err := tx.checkCurrent(); err != nil {
		return err
	}
	return tx.session.BatchExecute(ctx, query)
}

// Bind binds stmt to a fresh portal, rejecting stmt if it was prepared
// against a different Session (WrongConnection) or if this handle is no
// longer at the top of its session's transaction stack (WrongTransaction).
func (tx *TransactionHandle) Bind(ctx context.Context, stmt *PreparedStatement, values ...any) (*Portal, error) {
	if err := tx.checkCurrent(); err != nil {
		return nil, err
	}
	if stmt.session != tx.session {
		return nil, newError(WrongConnection, fmt.Errorf("statement belongs to a different session than this transaction"))
	}
	return stmt.Bind(ctx, values...)
}

// QueryPortal executes portal and returns its row stream, rejecting it if
// it was bound from a statement belonging to a different session than tx's.
func (tx *TransactionHandle) QueryPortal(ctx context.Context, portal *Portal) (*RowStream, error) {
	if err := tx.checkCurrent(); err != nil {
		return nil, err
	}
	if portal.stmt.session != tx.session {
		return nil, newError(WrongConnection, fmt.Errorf("portal belongs to a different session than this transaction"))
	}
	return portal.Execute(ctx)
}

// CancelToken returns the cancellation identity for tx's underlying
// session, for use with the free function CancelQuery.
func (tx *TransactionHandle) CancelToken() CancelKeys {
	return tx.session.CancelData()
}

// checkLive reports WrongTransaction if tx has already been finished.
func (tx *TransactionHandle) checkLive() error {
	if tx.done {
		return newError(WrongTransaction, fmt.Errorf("transaction has already been committed or rolled back"))
	}
	return nil
}

// checkCurrent reports WrongTransaction if tx is finished or if the
// session's live depth has drifted away from the depth tx was opened at
// (e.g. an inner transaction handle was dropped without being finished).
func (tx *TransactionHandle) checkCurrent() error {
	if err := tx.checkLive(); err != nil {
		return err
	}
	if tx.session.depth() != tx.depth+1 {
		return newError(WrongTransaction, fmt.Errorf("transaction handle at depth %d is stale; session is now at depth %d", tx.depth, tx.session.depth()))
	}
	return nil
}
