package pgwire

import (
	"context"
	"fmt"
	"time"

	"github.com/tidewire/pgwire/pkg/protocol"
)

// SimpleQueryResult is one statement's worth of results from a
// SimpleQuery/BatchExecute call. Postgres's simple query protocol always
// returns values as text, decoded here as plain Go strings — a
// deliberately lossy representation, since the simple protocol carries no
// binary format negotiation.
type SimpleQueryResult struct {
	Fields  []FieldDescription
	Rows    [][]string
	Command string
}

// SimpleQuery sends query as a single simple-query message and collects
// every result set it produces (a semicolon-separated batch of statements
// produces one SimpleQueryResult per statement). A CopyInResponse received
// mid-batch is rejected with CopyFail, since the simple query protocol has
// no facility for streaming copy-in data from this call.
func (s *Session) SimpleQuery(ctx context.Context, query string) ([]SimpleQueryResult, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	start := time.Now()
	results, err := s.simpleQueryLocked(query)
	s.config.metrics.observeQuery(commandWord(query), time.Since(start).Seconds())
	return results, err
}

// commandWord extracts the leading SQL keyword (e.g. "SELECT", "COPY") from
// query for metrics labeling, matching the first word of the command tag
// Postgres itself would report back.
func commandWord(query string) string {
	i := 0
	for i < len(query) && (query[i] == ' ' || query[i] == '\t' || query[i] == '\n' || query[i] == '\r') {
		i++
	}
	start := i
	for i < len(query) && query[i] != ' ' && query[i] != '\t' && query[i] != '\n' && query[i] != '\r' {
		i++
	}
	if start == i {
		return ""
	}
	return query[start:i]
}

// simpleQueryLocked is SimpleQuery's body, for callers that already hold
// the session's exchange lock (type resolution during Prepare/
// PrepareCopyIn runs its own catalog query this way).
func (s *Session) simpleQueryLocked(query string) ([]SimpleQueryResult, error) {
	if err := protocol.WriteQuery(s.writer, query); err != nil {
		return nil, newError(Io, err)
	}

	var results []SimpleQueryResult
	var current SimpleQueryResult

	for {
		msg, err := s.next()
		if err != nil {
			return nil, err
		}

		switch msg {
		case protocol.BackendRowDescription:
			fields, err := protocol.ParseRowDescription(s.reader)
			if err != nil {
				return nil, newError(Parse, err)
			}
			current = SimpleQueryResult{Fields: toFieldDescriptions(fields)}
		case protocol.BackendDataRow:
			raw, err := protocol.ParseDataRow(s.reader)
			if err != nil {
				return nil, newError(Parse, err)
			}
			row := make([]string, len(raw))
			for i, v := range raw {
				if v == nil {
					continue
				}
				row[i] = string(v)
			}
			current.Rows = append(current.Rows, row)
		case protocol.BackendCommandComplete:
			tag, err := protocol.ParseCommandComplete(s.reader)
			if err != nil {
				return nil, newError(Parse, err)
			}
			current.Command = tag
			results = append(results, current)
			current = SimpleQueryResult{}
		case protocol.BackendEmptyQuery:
			results = append(results, current)
			current = SimpleQueryResult{}
		case protocol.BackendCopyInResponse:
			if _, err := protocol.ParseCopyInResponse(s.reader); err != nil {
				return nil, newError(Parse, err)
			}
			if err := protocol.WriteCopyFail(s.writer, "copy-in is not supported through SimpleQuery"); err != nil {
				return nil, newError(Io, err)
			}
			if err := protocol.WriteSync(s.writer); err != nil {
				return nil, newError(Io, err)
			}
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
			return results, nil
		default:
			s.markDesynced()
			return nil, newError(UnexpectedMessage, fmt.Errorf("unexpected message %s during simple query", msg))
		}
	}
}
