package pgwire

import (
	"fmt"

	"github.com/tidewire/pgwire/codes"
	"github.com/tidewire/pgwire/dberror"
)

// Kind classifies the circumstance an *Error was raised under, mirroring the
// taxonomy a caller needs to branch on (network failure vs. a message the
// backend actually rejected vs. a local programming mistake).
type Kind int

const (
	// Io covers failures reading or writing the underlying connection.
	Io Kind = iota
	// UnexpectedMessage covers a backend message arriving somewhere the
	// session machine did not expect it (protocol desync).
	UnexpectedMessage
	// Parse covers a malformed message the codec could not decode.
	Parse
	// Encode covers a value the client could not encode for the wire.
	Encode
	// Db covers an ErrorResponse the backend sent back.
	Db
	// Tls covers failures negotiating or establishing TLS.
	Tls
	// ToSql covers a caller-supplied Go value that could not be converted
	// to its wire representation.
	ToSql
	// FromSql covers a wire value that could not be converted to the
	// caller's requested Go type.
	FromSql
	// CopyInStream covers a misused copy-in stream: writing to a closed
	// stream, a row whose column count does not match the target, or a
	// value that fails to encode in WriteRow.
	CopyInStream
	// Closed is returned once a Session has been closed or dropped, or has
	// become desynchronized from the backend.
	Closed
	// MissingUser is returned when connection parameters omit a user.
	MissingUser
	// MissingPassword is returned when the backend demands a password the
	// caller never supplied.
	MissingPassword
	// UnsupportedAuthentication covers an AuthenticationXXX request the
	// client does not implement (Kerberos, GSS, SSPI, SCM credential).
	UnsupportedAuthentication
	// Connect covers failures establishing the transport itself.
	Connect
	// Timer covers a caller-supplied deadline or context expiring.
	Timer
	// Authentication covers a rejected credential exchange.
	Authentication
	// WrongType covers a Go value or composite shape that does not match
	// the Postgres type it is encoded to or decoded from.
	WrongType
	// InvalidColumn covers an out-of-range or unknown column reference.
	InvalidColumn
	// WrongParamCount covers a parameter-count mismatch between Bind and
	// the statement it targets.
	WrongParamCount
	// WrongTransaction covers a transaction operation issued out of stack
	// order (e.g. committing a savepoint that was never opened).
	WrongTransaction
	// WrongConnection covers a handle used against a session other than
	// the one that created it.
	WrongConnection
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case UnexpectedMessage:
		return "unexpected message"
	case Parse:
		return "parse"
	case Encode:
		return "encode"
	case Db:
		return "db"
	case Tls:
		return "tls"
	case ToSql:
		return "to sql"
	case FromSql:
		return "from sql"
	case CopyInStream:
		return "copy in stream"
	case Closed:
		return "closed"
	case MissingUser:
		return "missing user"
	case MissingPassword:
		return "missing password"
	case UnsupportedAuthentication:
		return "unsupported authentication"
	case Connect:
		return "connect"
	case Timer:
		return "timer"
	case Authentication:
		return "authentication"
	case WrongType:
		return "wrong type"
	case InvalidColumn:
		return "invalid column"
	case WrongParamCount:
		return "wrong parameter count"
	case WrongTransaction:
		return "wrong transaction"
	case WrongConnection:
		return "wrong connection"
	default:
		return "unknown"
	}
}

// Error is the single error type every exported operation returns. It is
// always exactly one of two variants: a local/transport failure (Cause set,
// DbError nil) or a backend-reported error (DbError set).
type Error struct {
	Kind    Kind
	Cause   error
	DbError *dberror.DbError
}

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

func newDbError(kind Kind, db *dberror.DbError) *Error {
	return &Error{Kind: kind, DbError: db}
}

func (e *Error) Error() string {
	if e.DbError != nil {
		return fmt.Sprintf("pgwire: %s: %s", e.Kind, e.DbError.Error())
	}
	if e.Cause != nil {
		return fmt.Sprintf("pgwire: %s: %s", e.Kind, e.Cause.Error())
	}
	return fmt.Sprintf("pgwire: %s", e.Kind)
}

func (e *Error) Unwrap() error {
	if e.DbError != nil {
		return e.DbError
	}
	return e.Cause
}

// Code returns the backend SQLSTATE carried by a Db error, or
// codes.Uncategorized for every other Kind.
func (e *Error) Code() codes.Code {
	if e.DbError == nil {
		return codes.Uncategorized
	}
	return e.DbError.Code
}
