package pgwire

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/lib/pq/oid"
	"github.com/tidewire/pgwire/pkg/protocol"
)

// copySignature is the eleven-byte sentinel every PGCOPY binary stream
// begins with.
// https://www.postgresql.org/docs/current/sql-copy.html#id-1.9.3.55.9.4
var copySignature = []byte("PGCOPY\n\xff\r\n\x00")

// CopyIn is a handle on an in-progress COPY ... FROM STDIN (BINARY)
// operation: the caller writes rows, then calls Close to commit or Abort to
// cancel. A CopyIn holds its session's single-in-flight-exchange lock for
// its entire lifetime: copy-in is the one exchange where the application
// itself is the data producer between frames, but it is still exactly one
// exchange as far as the session is concerned.
type CopyIn struct {
	session     *Session
	columnTypes []oid.Oid
	closed      bool
}

// FormatCode re-exports protocol.FormatCode so callers never need to import
// pkg/protocol directly.
type FormatCode = protocol.FormatCode

// PrepareCopyIn first parses and describes `SELECT <columns> FROM <table>`
// purely to capture the column type OIDs (then closes that statement), then
// issues `COPY <table> (<columns>) FROM STDIN WITH (FORMAT binary)` and
// waits for CopyInResponse. The returned CopyIn's WriteRow validates every
// row's column count against the captured types.
func (s *Session) PrepareCopyIn(ctx context.Context, table string, columns []string) (*CopyIn, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}

	colList := strings.Join(columns, ", ")
	stmt, err := s.prepareStatementLocked(ctx, fmt.Sprintf("SELECT %s FROM %s", colList, table))
	if err != nil {
		s.unlock()
		return nil, err
	}
	columnTypes := make([]oid.Oid, len(stmt.resultDesc))
	for i, f := range stmt.resultDesc {
		columnTypes[i] = oid.Oid(f.DataTypeOID)
	}
	if err := stmt.closeLocked(ctx); err != nil {
		s.unlock()
		return nil, err
	}
	if err := s.resolveUnknownTypes(ctx, columnTypes); err != nil {
		s.unlock()
		return nil, err
	}

	copyQuery := fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT binary)", table, colList)
	if err := protocol.WriteQuery(s.writer, copyQuery); err != nil {
		s.unlock()
		return nil, newError(Io, err)
	}

	for {
		msg, err := s.next()
		if err != nil {
			s.unlock()
			return nil, err
		}

		switch msg {
		case protocol.BackendCopyInResponse:
			if _, err := protocol.ParseCopyInResponse(s.reader); err != nil {
				s.unlock()
				return nil, newError(Parse, err)
			}
			copyIn := &CopyIn{session: s, columnTypes: columnTypes}
			if err := copyIn.writeHeader(); err != nil {
				s.unlock()
				return nil, err
			}
			return copyIn, nil
		case protocol.BackendErrorResponse:
			err := s.readDbError()
			drainToReadyForQuery(s)
			s.unlock()
			return nil, err
		default:
			s.markDesynced()
			s.unlock()
			return nil, newError(UnexpectedMessage, fmt.Errorf("unexpected message %s while preparing copy-in", msg))
		}
	}
}

// ColumnTypes returns the result-column type OIDs captured from the
// describing SELECT, in table-column order.
func (c *CopyIn) ColumnTypes() []oid.Oid {
	return c.columnTypes
}

func (c *CopyIn) writeHeader() error {
	var buf []byte
	buf = append(buf, copySignature...)
	buf = append(buf, make([]byte, 8)...) // flags (int32) + header extension length (int32), both zero
	return protocol.WriteCopyData(c.session.writer, buf)
}

// WriteRow encodes one row of already-typed values as a PGCOPY binary tuple
// and streams it to the backend as a CopyData message. A column-count
// mismatch against the captured column types aborts the whole copy-in with
// CopyFail.
func (c *CopyIn) WriteRow(values ...any) error {
	if c.closed {
		return newError(CopyInStream, fmt.Errorf("copy-in stream is already closed"))
	}

	if len(values) != len(c.columnTypes) {
		_ = c.abortLocked("Invalid column count")
		return newError(CopyInStream, fmt.Errorf("row has %d columns, expected %d", len(values), len(c.columnTypes)))
	}

	s := c.session
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(len(values)))

	for i, v := range values {
		if v == nil {
			buf = binary.BigEndian.AppendUint32(buf, 0xFFFFFFFF)
			continue
		}

		encoded, err := s.types.encodeParam(c.columnTypes[i], v)
		if err != nil {
			_ = c.abortLocked(fmt.Sprintf("failed to encode column %d", i))
			return &Error{Kind: CopyInStream, Cause: err}
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(encoded)))
		buf = append(buf, encoded...)
	}

	if err := protocol.WriteCopyData(s.writer, buf); err != nil {
		s.markDesynced()
		c.closed = true
		s.unlock()
		return newError(Io, err)
	}
	s.config.metrics.observeCopyRows(1)
	return nil
}

// Close sends the PGCOPY trailer, CopyDone, and Sync, committing the
// streamed rows, and waits for the CommandComplete/ReadyForQuery that
// follows. It releases the session lock CopyIn has held since
// PrepareCopyIn.
func (c *CopyIn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	defer c.session.unlock()

	s := c.session
	trailer := make([]byte, 2)
	binary.BigEndian.PutUint16(trailer, 0xFFFF) // int16(-1): the PGCOPY end-of-data tuple marker
	if err := protocol.WriteCopyData(s.writer, trailer); err != nil {
		return newError(Io, err)
	}
	if err := protocol.WriteCopyDone(s.writer); err != nil {
		return newError(Io, err)
	}
	if err := protocol.WriteSync(s.writer); err != nil {
		return newError(Io, err)
	}

	return c.finish()
}

// Abort sends CopyFail with reason, aborting the copy-in operation; the
// backend responds with an ErrorResponse, which Abort surfaces as the
// returned error. It releases the session lock CopyIn has held since
// PrepareCopyIn.
func (c *CopyIn) Abort(reason string) error {
	if c.closed {
		return nil
	}
	c.closed = true
	defer c.session.unlock()
	return c.abort(reason)
}

// abortLocked is the internal abort path used by WriteRow, which already
// holds the lock and must release it on the way out since the stream is now
// unusable.
func (c *CopyIn) abortLocked(reason string) error {
	if c.closed {
		return nil
	}
	c.closed = true
	defer c.session.unlock()
	return c.abort(reason)
}

func (c *CopyIn) abort(reason string) error {
	s := c.session
	if err := protocol.WriteCopyFail(s.writer, reason); err != nil {
		return newError(Io, err)
	}
	if err := protocol.WriteSync(s.writer); err != nil {
		return newError(Io, err)
	}

	err := c.finish()
	if err == nil {
		return newError(CopyInStream, fmt.Errorf("expected the backend to reject an aborted copy-in"))
	}
	return err
}

func (c *CopyIn) finish() error {
	s := c.session
	for {
		msg, err := s.next()
		if err != nil {
			return err
		}
		switch msg {
		case protocol.BackendCommandComplete:
			if _, err := protocol.ParseCommandComplete(s.reader); err != nil {
				return newError(Parse, err)
			}
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
			return newError(UnexpectedMessage, fmt.Errorf("unexpected message %s while finishing copy-in", msg))
		}
	}
}
