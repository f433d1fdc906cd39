package pgwire

import (
	"context"
	"strconv"
	"strings"
)

// Execute is a one-shot convenience wrapper around Prepare+Bind+Execute: it
// prepares query, binds params against the inferred parameter types, drains
// the resulting portal to completion, and closes both the portal and the
// statement. It returns the affected-row count parsed from the backend's
// CommandComplete tag.
func (s *Session) Execute(ctx context.Context, query string, params ...any) (uint64, error) {
	stmt, err := s.Prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close(ctx)

	portal, err := stmt.Bind(ctx, params...)
	if err != nil {
		return 0, err
	}
	defer portal.Close(ctx)

	rows, err := portal.Execute(ctx)
	if err != nil {
		return 0, err
	}

	var tag string
	for rows.Next(ctx) {
		rows.Row()
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	tag = rows.commandTag

	return parseRowCount(tag), nil
}

// BatchExecute runs query (which may contain several semicolon-separated
// statements) through the simple-query protocol and discards any result
// rows, returning only whether every statement in the batch succeeded.
func (s *Session) BatchExecute(ctx context.Context, query string) error {
	_, err := s.SimpleQuery(ctx, query)
	return err
}

// Transaction starts a new top-level transaction on the session; it is a
// synonym for Begin kept for API symmetry.
func (s *Session) Transaction(ctx context.Context) (*TransactionHandle, error) {
	return s.Begin(ctx)
}

// parseRowCount extracts the trailing row-count token from a CommandComplete
// tag (e.g. "UPDATE 3" -> 3, "CREATE TABLE" -> 0): the last
// whitespace-delimited token is parsed as a non-negative integer; an absent
// or non-numeric tail yields 0.
func parseRowCount(tag string) uint64 {
	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.ParseUint(fields[len(fields)-1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
