package pgwire

import (
	"context"
	"fmt"

	"github.com/lib/pq/oid"
	"github.com/tidewire/pgwire/pkg/protocol"
)

// defaultPortalBatchSize is the max-rows value sent with each Execute while
// streaming a portal's results; 0 would ask for every row in one message,
// which defeats RowStream's bounded-memory iteration.
const defaultPortalBatchSize = 256

// Portal binds a PreparedStatement to a concrete set of parameter values
// and streams its result rows. The Bind message itself is not written to
// the wire until the portal's first Execute: spec.md §4.4 requires
// Bind/Execute/Sync to travel as one exchange, since a named portal bound
// outside an explicit transaction is dropped the instant a Sync that never
// also executed it lands at ReadyForQuery — the trivial implicit
// transaction that Bind-alone opened commits immediately and destroys
// everything it created. bound tracks whether that combined exchange has
// happened yet, so RowStream.fetchBatch knows whether to resend Bind or
// just continue fetching rows from an already-suspended portal.
type Portal struct {
	stmt          *PreparedStatement
	name          string
	encoded       [][]byte
	formats       []protocol.FormatCode
	resultFormats []protocol.FormatCode
	bound         bool
	done          bool
}

// Bind encodes values against stmt's parameter types and reserves a fresh
// portal name, but defers the wire Bind message itself to the portal's
// first Execute, where it travels in the same exchange as Execute and
// Sync.
func (stmt *PreparedStatement) Bind(ctx context.Context, values ...any) (*Portal, error) {
	s := stmt.session
	if err := s.checkUsable(); err != nil {
		return nil, err
	}

	if len(values) != len(stmt.paramOIDs) {
		return nil, newError(WrongParamCount, fmt.Errorf("statement expects %d parameters, got %d", len(stmt.paramOIDs), len(values)))
	}

	encoded := make([][]byte, len(values))
	formats := make([]protocol.FormatCode, len(values))
	for i, v := range values {
		buf, err := s.types.encodeParam(oidForIndex(stmt, i), v)
		if err != nil {
			return nil, err
		}
		encoded[i] = buf
		formats[i] = protocol.BinaryFormat
	}

	resultFormats := make([]protocol.FormatCode, len(stmt.resultDesc))
	for i := range resultFormats {
		resultFormats[i] = protocol.BinaryFormat
	}

	return &Portal{
		stmt:          stmt,
		name:          s.nextPortalName(),
		encoded:       encoded,
		formats:       formats,
		resultFormats: resultFormats,
	}, nil
}

// Close closes the portal on the backend, releasing its server-side cursor
// state. A statement may be closed while portals derived from it are still
// open; the backend frees those portals implicitly, so callers only need to
// call Close on a portal they want to release before its statement or
// transaction ends. Closing a portal that was never executed is a no-op:
// the backend never saw a Bind for it, so there is nothing to release.
func (p *Portal) Close(ctx context.Context) error {
	if !p.bound {
		return nil
	}

	s := p.stmt.session
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	if err := protocol.WriteClose(s.writer, protocol.ClosePortal, p.name); err != nil {
		return newError(Io, err)
	}
	if err := protocol.WriteSync(s.writer); err != nil {
		return newError(Io, err)
	}

	for {
		msg, err := s.next()
		if err != nil {
			return err
		}
		switch msg {
		case protocol.BackendCloseComplete:
			continue
		case protocol.BackendErrorResponse:
			err := s.readDbError()
			drainToReadyForQuery(s)
			return err
		case protocol.BackendReadyForQuery:
			status, err := protocol.ParseReadyForQuery(s.reader)
			if err != nil {
				return newError(Parse, err)
			}
			s.txStatus = status
			return nil
		default:
			s.markDesynced()
			return newError(UnexpectedMessage, fmt.Errorf("unexpected message %s while closing portal", msg))
		}
	}
}

// oidForIndex returns the parameter OID the backend reported for position
// i, or oid.T_unknown if the statement's parameter description has no
// entry for i.
func oidForIndex(stmt *PreparedStatement, i int) oid.Oid {
	if i < len(stmt.paramOIDs) {
		return stmt.paramOIDs[i]
	}
	return oid.T_unknown
}
