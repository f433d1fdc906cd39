// Package protocol implements the pure encode/decode half of the Postgres
// frontend/backend wire protocol (version 3.0). It owns no connection: its
// Reader and Writer wrap a caller-supplied io.Reader and io.Writer, and it
// turns typed Go values into framed bytes and back.
package protocol

// FrontendMessage identifies a message the client sends to the backend.
type FrontendMessage byte

// BackendMessage identifies a message the backend sends to the client.
type BackendMessage byte

// http://www.postgresql.org/docs/current/static/protocol-message-formats.html
const (
	FrontendBind        FrontendMessage = 'B'
	FrontendClose       FrontendMessage = 'C'
	FrontendCopyData    FrontendMessage = 'd'
	FrontendCopyDone    FrontendMessage = 'c'
	FrontendCopyFail    FrontendMessage = 'f'
	FrontendDescribe    FrontendMessage = 'D'
	FrontendExecute     FrontendMessage = 'E'
	FrontendFlush       FrontendMessage = 'H'
	FrontendParse       FrontendMessage = 'P'
	FrontendPassword    FrontendMessage = 'p'
	FrontendSimpleQuery FrontendMessage = 'Q'
	FrontendSync        FrontendMessage = 'S'
	FrontendTerminate   FrontendMessage = 'X'

	BackendAuth                 BackendMessage = 'R'
	BackendBackendKeyData       BackendMessage = 'K'
	BackendBindComplete         BackendMessage = '2'
	BackendCommandComplete      BackendMessage = 'C'
	BackendCloseComplete        BackendMessage = '3'
	BackendCopyInResponse       BackendMessage = 'G'
	BackendDataRow              BackendMessage = 'D'
	BackendEmptyQuery           BackendMessage = 'I'
	BackendErrorResponse        BackendMessage = 'E'
	BackendNoticeResponse       BackendMessage = 'N'
	BackendNotificationResponse BackendMessage = 'A'
	BackendNoData               BackendMessage = 'n'
	BackendParameterDescription BackendMessage = 't'
	BackendParameterStatus      BackendMessage = 'S'
	BackendParseComplete        BackendMessage = '1'
	BackendPortalSuspended      BackendMessage = 's'
	BackendReadyForQuery        BackendMessage = 'Z'
	BackendRowDescription       BackendMessage = 'T'
)

// DescribeTarget selects whether a Describe message targets a prepared
// statement or a portal.
type DescribeTarget byte

const (
	DescribeStatement DescribeTarget = 'S'
	DescribePortal    DescribeTarget = 'P'
)

// CloseTarget selects whether a Close message targets a prepared statement
// or a portal.
type CloseTarget byte

const (
	CloseStatement CloseTarget = 'S'
	ClosePortal    CloseTarget = 'P'
)

// Version identifies the protocol version or pseudo-version presented in the
// first four bytes of a startup-family message.
type Version uint32

// See: https://www.postgresql.org/docs/current/protocol-message-formats.html
const (
	Version3         Version = 196608   // (3 << 16) + 0
	VersionCancel    Version = 80877102 // (1234 << 16) + 5678
	VersionSSL       Version = 80877103 // (1234 << 16) + 5679
	VersionGSSEncrypt Version = 80877104 // (1234 << 16) + 5680
)

// TransactionStatus is the single byte ReadyForQuery carries to describe the
// backend's transaction state.
type TransactionStatus byte

const (
	TxIdle          TransactionStatus = 'I'
	TxInTransaction TransactionStatus = 'T'
	TxInError       TransactionStatus = 'E'
)

// FormatCode selects text (0) or binary (1) wire encoding for a parameter or
// result column.
type FormatCode int16

const (
	TextFormat   FormatCode = 0
	BinaryFormat FormatCode = 1
)

// AuthType is the sub-code carried by an AuthenticationXXX backend message.
type AuthType int32

const (
	AuthOK                AuthType = 0
	AuthKerberosV5        AuthType = 2
	AuthCleartextPassword AuthType = 3
	AuthMD5Password       AuthType = 5
	AuthSCMCredential     AuthType = 6
	AuthGSS               AuthType = 7
	AuthGSSContinue       AuthType = 8
	AuthSSPI              AuthType = 9
	AuthSASL              AuthType = 10
	AuthSASLContinue      AuthType = 11
	AuthSASLFinal         AuthType = 12
)

func (m FrontendMessage) String() string {
	switch m {
	case FrontendBind:
		return "Bind"
	case FrontendClose:
		return "Close"
	case FrontendCopyData:
		return "CopyData"
	case FrontendCopyDone:
		return "CopyDone"
	case FrontendCopyFail:
		return "CopyFail"
	case FrontendDescribe:
		return "Describe"
	case FrontendExecute:
		return "Execute"
	case FrontendFlush:
		return "Flush"
	case FrontendParse:
		return "Parse"
	case FrontendPassword:
		return "Password"
	case FrontendSimpleQuery:
		return "Query"
	case FrontendSync:
		return "Sync"
	case FrontendTerminate:
		return "Terminate"
	default:
		return "Unknown"
	}
}

// known reports whether m is one of the backend message types this codec
// understands. ReadBackendMessage rejects anything else as
// ErrUnknownMessageType before it ever reads the message's length/payload,
// per the wire protocol treating an unrecognized type byte as a hard
// protocol error rather than a frame to skip.
func (m BackendMessage) known() bool {
	switch m {
	case BackendAuth, BackendBackendKeyData, BackendBindComplete, BackendCommandComplete,
		BackendCloseComplete, BackendCopyInResponse, BackendDataRow, BackendEmptyQuery,
		BackendErrorResponse, BackendNoticeResponse, BackendNotificationResponse, BackendNoData,
		BackendParameterDescription, BackendParameterStatus, BackendParseComplete,
		BackendPortalSuspended, BackendReadyForQuery, BackendRowDescription:
		return true
	default:
		return false
	}
}

func (m BackendMessage) String() string {
	switch m {
	case BackendAuth:
		return "Authentication"
	case BackendBackendKeyData:
		return "BackendKeyData"
	case BackendBindComplete:
		return "BindComplete"
	case BackendCommandComplete:
		return "CommandComplete"
	case BackendCloseComplete:
		return "CloseComplete"
	case BackendCopyInResponse:
		return "CopyInResponse"
	case BackendDataRow:
		return "DataRow"
	case BackendEmptyQuery:
		return "EmptyQueryResponse"
	case BackendErrorResponse:
		return "ErrorResponse"
	case BackendNoticeResponse:
		return "NoticeResponse"
	case BackendNotificationResponse:
		return "NotificationResponse"
	case BackendNoData:
		return "NoData"
	case BackendParameterDescription:
		return "ParameterDescription"
	case BackendParameterStatus:
		return "ParameterStatus"
	case BackendParseComplete:
		return "ParseComplete"
	case BackendPortalSuspended:
		return "PortalSuspended"
	case BackendReadyForQuery:
		return "ReadyForQuery"
	case BackendRowDescription:
		return "RowDescription"
	default:
		return "Unknown"
	}
}
