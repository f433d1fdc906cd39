package pgwire

import "fmt"

// Row is a single result row: ordinal access by position or linear lookup
// by column name.
type Row struct {
	fields []FieldDescription
	values []any
}

// Len returns the number of columns in the row.
func (r *Row) Len() int {
	return len(r.values)
}

// Get returns the decoded value at ordinal index i.
func (r *Row) Get(i int) (any, error) {
	if i < 0 || i >= len(r.values) {
		return nil, newError(InvalidColumn, fmt.Errorf("column index %d out of range (0..%d)", i, len(r.values)-1))
	}
	return r.values[i], nil
}

// GetByName returns the decoded value of the first column matching name.
// The comparison is a linear scan, matching Postgres's own
// first-match-wins column-name resolution; bound checking uses >= len,
// never > len.
func (r *Row) GetByName(name string) (any, error) {
	for i, f := range r.fields {
		if f.Name == name {
			if i >= len(r.values) {
				return nil, newError(InvalidColumn, fmt.Errorf("column %q resolved out of range", name))
			}
			return r.values[i], nil
		}
	}
	return nil, newError(InvalidColumn, fmt.Errorf("no column named %q", name))
}

// Fields returns the result-column descriptions for the portal that
// produced this row.
func (r *Row) Fields() []FieldDescription {
	return r.fields
}
