package pgwire

import (
	"context"
	"fmt"

	"github.com/tidewire/pgwire/pkg/protocol"
)

// RowStream iterates the rows produced by executing a Portal. It is not an
// io.Closer: every batch it fetches ends at ReadyForQuery, so a stream that
// is not read to completion leaves its Session usable, and the portal's
// server-side state is released by Portal.Close.
type RowStream struct {
	session    *Session
	portal     *Portal
	fields     []FieldDescription
	pending    []*Row
	err        error
	done       bool
	commandTag string
}

// Execute runs the portal, requesting results in bounded batches so a large
// result set never needs to be buffered in full; Next() transparently
// issues a follow-up Execute when the backend reports PortalSuspended.
func (p *Portal) Execute(ctx context.Context) (*RowStream, error) {
	return &RowStream{session: p.stmt.session, portal: p, fields: p.stmt.resultDesc}, nil
}

// Next advances the stream and reports whether a row is available.
func (rs *RowStream) Next(ctx context.Context) bool {
	if rs.err != nil || rs.done {
		return false
	}

	if len(rs.pending) > 0 {
		return true
	}

	if rs.portal.done {
		rs.done = true
		return false
	}

	if err := rs.fetchBatch(ctx); err != nil {
		rs.err = err
		return false
	}

	return len(rs.pending) > 0
}

// Row returns the row most recently made available by Next.
func (rs *RowStream) Row() *Row {
	if len(rs.pending) == 0 {
		return nil
	}
	r := rs.pending[0]
	rs.pending = rs.pending[1:]
	return r
}

// Err returns the error, if any, that stopped iteration.
func (rs *RowStream) Err() error {
	return rs.err
}

func (rs *RowStream) fetchBatch(ctx context.Context) error {
	s := rs.session
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	firstBatch := !rs.portal.bound
	if firstBatch {
		if err := protocol.WriteBind(s.writer, rs.portal.name, rs.portal.stmt.name, rs.portal.formats, rs.portal.encoded, rs.portal.resultFormats); err != nil {
			return newError(Io, err)
		}
	}
	if err := protocol.WriteExecute(s.writer, rs.portal.name, defaultPortalBatchSize); err != nil {
		return newError(Io, err)
	}
	if err := protocol.WriteSync(s.writer); err != nil {
		return newError(Io, err)
	}

	var rows []*Row

	for {
		msg, err := s.next()
		if err != nil {
			return err
		}

		switch msg {
		case protocol.BackendBindComplete:
			rs.portal.bound = true
			continue
		case protocol.BackendDataRow:
			raw, err := protocol.ParseDataRow(s.reader)
			if err != nil {
				return newError(Parse, err)
			}
			values := make([]any, len(raw))
			for i, v := range raw {
				value, err := s.types.decodeColumn(rs.fields[i], v)
				if err != nil {
					return err
				}
				values[i] = value
			}
			rows = append(rows, &Row{fields: rs.fields, values: values})
		case protocol.BackendPortalSuspended:
			rs.pending = append(rs.pending, rows...)
			return rs.drainSync()
		case protocol.BackendCommandComplete:
			tag, err := protocol.ParseCommandComplete(s.reader)
			if err != nil {
				return newError(Parse, err)
			}
			rs.commandTag = tag
			rs.portal.done = true
			rs.pending = append(rs.pending, rows...)
			return rs.drainSync()
		case protocol.BackendEmptyQuery:
			rs.portal.done = true
			rs.pending = append(rs.pending, rows...)
			return rs.drainSync()
		case protocol.BackendErrorResponse:
			err := s.readDbError()
			drainToReadyForQuery(s)
			rs.portal.done = true
			return err
		default:
			s.markDesynced()
			return newError(UnexpectedMessage, fmt.Errorf("unexpected message %s while executing portal", msg))
		}
	}
}

// drainSync reads the ReadyForQuery that follows a Sync frame.
func (rs *RowStream) drainSync() error {
	s := rs.session
	for {
		msg, err := s.next()
		if err != nil {
			return err
		}
		if msg == protocol.BackendReadyForQuery {
			status, err := protocol.ParseReadyForQuery(s.reader)
			if err != nil {
				return newError(Parse, err)
			}
			s.txStatus = status
			return nil
		}
	}
}
