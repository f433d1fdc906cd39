package dberror

import (
	"errors"
	"strings"

	"github.com/tidewire/pgwire/codes"
)

// WithCode decorates err with a Postgres SQLSTATE code, for use outside the
// wire-decoded DbError path.
func WithCode(err error, code codes.Code) error {
	if err == nil {
		return nil
	}
	return &withCode{cause: err, code: code}
}

// GetCode walks the Unwrap chain of err looking for a SQLSTATE code,
// returning codes.Uncategorized if none is present.
func GetCode(err error) codes.Code {
	code := codes.Uncategorized
	if c, ok := err.(*withCode); ok {
		return c.code
	}
	if n := errors.Unwrap(err); n != nil {
		inner := GetCode(n)
		code = combineCodes(inner, code)
	}
	return code
}

type withCode struct {
	cause error
	code  codes.Code
}

func (w *withCode) Error() string { return w.cause.Error() }
func (w *withCode) Unwrap() error { return w.cause }

// combineCodes prefers the more specific (innermost) code unless the outer
// one is an internal-error class, which always wins.
func combineCodes(inner, outer codes.Code) codes.Code {
	if outer == codes.Uncategorized {
		return inner
	}
	if strings.HasPrefix(string(outer), "XX") {
		return outer
	}
	if inner != codes.Uncategorized {
		return inner
	}
	return outer
}
