package pgwire

import (
	"context"
	"fmt"

	"github.com/lib/pq/oid"
	"github.com/tidewire/pgwire/pkg/protocol"
)

// PreparedStatement is a parsed, named SQL statement. It may be bound to any
// number of portals, each with its own parameter values.
type PreparedStatement struct {
	session    *Session
	name       string
	query      string
	paramOIDs  []oid.Oid
	resultDesc []FieldDescription
}

// Prepare parses query on the backend, naming it with a fresh
// session-unique identifier, and describes its parameter and result-column
// shape. paramOIDs may contain zero values for parameters the caller wants
// the backend to infer.
func (s *Session) Prepare(ctx context.Context, query string, paramOIDs ...oid.Oid) (*PreparedStatement, error) {
	if s.depth() != 0 {
		return nil, newError(WrongTransaction, fmt.Errorf("prepare must go through the open TransactionHandle, not the Session, while a transaction is in progress"))
	}
	return s.prepareStatement(ctx, query, paramOIDs...)
}

// prepareStatement is the Parse+Describe+Sync exchange shared by
// Session.Prepare and TransactionHandle.Prepare; the transaction-depth
// stack-discipline check lives in each caller, not here.
func (s *Session) prepareStatement(ctx context.Context, query string, paramOIDs ...oid.Oid) (*PreparedStatement, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	return s.prepareStatementLocked(ctx, query, paramOIDs...)
}

// prepareStatementLocked is prepareStatement's body, for callers (like
// PrepareCopyIn) that already hold the session's exchange lock for a
// longer-lived operation spanning several messages.
func (s *Session) prepareStatementLocked(ctx context.Context, query string, paramOIDs ...oid.Oid) (*PreparedStatement, error) {
	name := s.nextStatementName()

	oids := make([]uint32, len(paramOIDs))
	for i, o := range paramOIDs {
		oids[i] = uint32(o)
	}

	if err := protocol.WriteParse(s.writer, name, query, oids); err != nil {
		return nil, newError(Io, err)
	}
	if err := protocol.WriteDescribe(s.writer, protocol.DescribeStatement, name); err != nil {
		return nil, newError(Io, err)
	}
	if err := protocol.WriteSync(s.writer); err != nil {
		return nil, newError(Io, err)
	}

	stmt := &PreparedStatement{session: s, name: name, query: query}

	for {
		msg, err := s.next()
		if err != nil {
			return nil, err
		}

		switch msg {
		case protocol.BackendParseComplete:
			continue
		case protocol.BackendParameterDescription:
			oids, err := protocol.ParseParameterDescription(s.reader)
			if err != nil {
				return nil, newError(Parse, err)
			}
			stmt.paramOIDs = make([]oid.Oid, len(oids))
			for i, o := range oids {
				stmt.paramOIDs[i] = oid.Oid(o)
			}
		case protocol.BackendRowDescription:
			fields, err := protocol.ParseRowDescription(s.reader)
			if err != nil {
				return nil, newError(Parse, err)
			}
			stmt.resultDesc = toFieldDescriptions(fields)
		case protocol.BackendNoData:
			stmt.resultDesc = nil
		case protocol.BackendErrorResponse:
			err := s.readDbError()
			drainToReadyForQuery(s)
			return nil, err
		case protocol.BackendReadyForQuery:
			status, err := protocol.ParseReadyForQuery(s.reader)
			if err != nil {
				return nil, newError(Parse, err)
			}
			s.txStatus = status
			if err := s.resolveUnknownTypes(ctx, statementOIDs(stmt)); err != nil {
				return nil, err
			}
			return stmt, nil
		default:
			s.markDesynced()
			return nil, newError(UnexpectedMessage, fmt.Errorf("unexpected message %s while preparing statement", msg))
		}
	}
}

// statementOIDs collects the parameter and result-column OIDs a freshly
// prepared statement needs codecs for.
func statementOIDs(stmt *PreparedStatement) []oid.Oid {
	oids := make([]oid.Oid, 0, len(stmt.paramOIDs)+len(stmt.resultDesc))
	oids = append(oids, stmt.paramOIDs...)
	for _, f := range stmt.resultDesc {
		oids = append(oids, oid.Oid(f.DataTypeOID))
	}
	return oids
}

// ParameterOIDs returns the parameter types the backend inferred or was
// told during Prepare.
func (stmt *PreparedStatement) ParameterOIDs() []oid.Oid {
	return stmt.paramOIDs
}

// ResultDescription returns the result-column shape, or nil for a statement
// that returns no rows.
func (stmt *PreparedStatement) ResultDescription() []FieldDescription {
	return stmt.resultDesc
}

// Close closes the prepared statement on the backend, invalidating every
// portal bound to it.
func (stmt *PreparedStatement) Close(ctx context.Context) error {
	s := stmt.session
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	return stmt.closeLocked(ctx)
}

// closeLocked is Close's body, for callers that already hold the session's
// exchange lock.
func (stmt *PreparedStatement) closeLocked(ctx context.Context) error {
	s := stmt.session
	if err := protocol.WriteClose(s.writer, protocol.CloseStatement, stmt.name); err != nil {
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
			return newError(UnexpectedMessage, fmt.Errorf("unexpected message %s while closing statement", msg))
		}
	}
}

func toFieldDescriptions(fields []protocol.FieldDescription) []FieldDescription {
	out := make([]FieldDescription, len(fields))
	for i, f := range fields {
		out[i] = FieldDescription{
			Name:         f.Name,
			DataTypeOID:  f.DataTypeOID,
			DataTypeSize: f.DataTypeSize,
			TypeModifier: f.TypeModifier,
		}
	}
	return out
}

// drainToReadyForQuery reads and discards messages until ReadyForQuery,
// used to resynchronize after an ErrorResponse aborts an extended-query
// exchange.
func drainToReadyForQuery(s *Session) {
	for {
		msg, err := s.next()
		if err != nil {
			s.markDesynced()
			return
		}
		if msg == protocol.BackendReadyForQuery {
			status, err := protocol.ParseReadyForQuery(s.reader)
			if err == nil {
				s.txStatus = status
			}
			return
		}
	}
}
