// Package mockserver drives a fake Postgres backend over a net.Pipe: it
// scripts a client under test through the wire protocol exchanges a real
// backend would drive.
package mockserver

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidewire/pgwire/pkg/protocol"
)

// Server is a minimal scripted Postgres backend: tests drive it through its
// Expect*/Send* helpers in lockstep with the client calls they're
// exercising.
type Server struct {
	t      *testing.T
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
}

// NewPipe returns a client-side net.Conn connected to a freshly constructed
// Server; callers pass the client side to pgwire.ConnectOverConn, or drive
// conn directly for transport-level tests.
func NewPipe(t *testing.T) (client net.Conn, server *Server) {
	t.Helper()
	c, s := net.Pipe()
	return c, &Server{
		t:      t,
		conn:   s,
		reader: protocol.NewReader(s, 0),
		writer: protocol.NewWriter(s),
	}
}

// Close closes the server side of the pipe.
func (s *Server) Close() {
	_ = s.conn.Close()
}

// ExpectStartup reads and discards the pre-startup untyped message
// (Startup, SSLRequest, or CancelRequest) and returns its version field.
func (s *Server) ExpectStartup() protocol.Version {
	s.t.Helper()
	require.NoError(s.t, s.reader.ReadUntypedMessage())
	v, err := s.reader.GetUint32()
	require.NoError(s.t, err)
	return protocol.Version(v)
}

// ExpectNoSSL reads the startup options following a plain (non-SSL) Version3
// startup message and discards them.
func (s *Server) ExpectNoSSL() {
	s.t.Helper()
	for {
		key, err := s.reader.GetString()
		require.NoError(s.t, err)
		if key == "" {
			return
		}
		_, err = s.reader.GetString()
		require.NoError(s.t, err)
	}
}

// SendAuthOK sends AuthenticationOk.
func (s *Server) SendAuthOK() {
	s.t.Helper()
	s.startTyped(protocol.BackendAuth)
	s.writer.AddUint32(uint32(protocol.AuthOK))
	require.NoError(s.t, s.writer.End())
}

// SendParameterStatus sends a single ParameterStatus message.
func (s *Server) SendParameterStatus(key, value string) {
	s.t.Helper()
	s.startTyped(protocol.BackendParameterStatus)
	s.writer.AddCString(key)
	s.writer.AddCString(value)
	require.NoError(s.t, s.writer.End())
}

// SendBackendKeyData sends BackendKeyData.
func (s *Server) SendBackendKeyData(pid, secret int32) {
	s.t.Helper()
	s.startTyped(protocol.BackendBackendKeyData)
	s.writer.AddInt32(pid)
	s.writer.AddInt32(secret)
	require.NoError(s.t, s.writer.End())
}

// SendReadyForQuery sends ReadyForQuery with the given transaction status.
func (s *Server) SendReadyForQuery(status protocol.TransactionStatus) {
	s.t.Helper()
	s.startTyped(protocol.BackendReadyForQuery)
	s.writer.AddByte(byte(status))
	require.NoError(s.t, s.writer.End())
}

// SendErrorResponse sends a minimal ErrorResponse carrying severity, a
// SQLSTATE code, and a message.
func (s *Server) SendErrorResponse(severity, code, message string) {
	s.t.Helper()
	s.startTyped(protocol.BackendErrorResponse)
	s.writer.AddByte('S')
	s.writer.AddCString(severity)
	s.writer.AddByte('C')
	s.writer.AddCString(code)
	s.writer.AddByte('M')
	s.writer.AddCString(message)
	s.writer.AddNullTerminate()
	require.NoError(s.t, s.writer.End())
}

// ReadFrontendMessage reads the next typed frontend message the client
// sent, for assertions about what the client wrote.
func (s *Server) ReadFrontendMessage() (protocol.FrontendMessage, *protocol.Reader) {
	s.t.Helper()
	// Same framing either direction, but ReadBackendMessage rejects
	// frontend-only type bytes, so read the type byte and the
	// length-prefixed body separately.
	tb, err := s.reader.ReadByte()
	require.NoError(s.t, err)
	require.NoError(s.t, s.reader.ReadUntypedMessage())
	return protocol.FrontendMessage(tb), s.reader
}

// ExpectFrontend reads the next frontend message and asserts its type,
// returning the reader positioned at the start of its payload for callers
// that need to inspect fields (e.g. the query text of a Parse).
func (s *Server) ExpectFrontend(want protocol.FrontendMessage) *protocol.Reader {
	s.t.Helper()
	got, r := s.ReadFrontendMessage()
	require.Equal(s.t, want, got)
	return r
}

// ExpectSync reads and discards a Sync message.
func (s *Server) ExpectSync() {
	s.t.Helper()
	s.ExpectFrontend(protocol.FrontendSync)
}

func (s *Server) startTyped(t protocol.BackendMessage) {
	s.writer.Start(protocol.FrontendMessage(t))
}

// SendParseComplete sends ParseComplete.
func (s *Server) SendParseComplete() {
	s.t.Helper()
	s.startTyped(protocol.BackendParseComplete)
	require.NoError(s.t, s.writer.End())
}

// SendParameterDescription sends a ParameterDescription carrying oids.
func (s *Server) SendParameterDescription(oids ...uint32) {
	s.t.Helper()
	s.startTyped(protocol.BackendParameterDescription)
	s.writer.AddInt16(int16(len(oids)))
	for _, o := range oids {
		s.writer.AddUint32(o)
	}
	require.NoError(s.t, s.writer.End())
}

// SendNoData sends NoData.
func (s *Server) SendNoData() {
	s.t.Helper()
	s.startTyped(protocol.BackendNoData)
	require.NoError(s.t, s.writer.End())
}

// FieldSpec names one result column for SendRowDescription.
type FieldSpec struct {
	Name        string
	DataTypeOID uint32
}

// SendRowDescription sends a RowDescription with binary-format fields.
func (s *Server) SendRowDescription(fields ...FieldSpec) {
	s.t.Helper()
	s.startTyped(protocol.BackendRowDescription)
	s.writer.AddInt16(int16(len(fields)))
	for _, f := range fields {
		s.writer.AddCString(f.Name)
		s.writer.AddUint32(0)  // table OID
		s.writer.AddInt16(0)   // table column number
		s.writer.AddUint32(f.DataTypeOID)
		s.writer.AddInt16(-1)  // type size
		s.writer.AddInt32(-1)  // type modifier
		s.writer.AddInt16(int16(protocol.BinaryFormat))
	}
	require.NoError(s.t, s.writer.End())
}

// SendBindComplete sends BindComplete.
func (s *Server) SendBindComplete() {
	s.t.Helper()
	s.startTyped(protocol.BackendBindComplete)
	require.NoError(s.t, s.writer.End())
}

// SendCloseComplete sends CloseComplete.
func (s *Server) SendCloseComplete() {
	s.t.Helper()
	s.startTyped(protocol.BackendCloseComplete)
	require.NoError(s.t, s.writer.End())
}

// SendDataRow sends a DataRow; a nil entry in values encodes as SQL NULL.
func (s *Server) SendDataRow(values ...[]byte) {
	s.t.Helper()
	s.startTyped(protocol.BackendDataRow)
	s.writer.AddInt16(int16(len(values)))
	for _, v := range values {
		if v == nil {
			s.writer.AddInt32(-1)
			continue
		}
		s.writer.AddInt32(int32(len(v)))
		s.writer.AddBytes(v)
	}
	require.NoError(s.t, s.writer.End())
}

// SendCommandComplete sends CommandComplete carrying tag.
func (s *Server) SendCommandComplete(tag string) {
	s.t.Helper()
	s.startTyped(protocol.BackendCommandComplete)
	s.writer.AddCString(tag)
	require.NoError(s.t, s.writer.End())
}

// SendPortalSuspended sends PortalSuspended.
func (s *Server) SendPortalSuspended() {
	s.t.Helper()
	s.startTyped(protocol.BackendPortalSuspended)
	require.NoError(s.t, s.writer.End())
}

// SendEmptyQueryResponse sends EmptyQueryResponse.
func (s *Server) SendEmptyQueryResponse() {
	s.t.Helper()
	s.startTyped(protocol.BackendEmptyQuery)
	require.NoError(s.t, s.writer.End())
}

// SendCopyInResponse sends CopyInResponse with overallFormat applied
// uniformly to n columns.
func (s *Server) SendCopyInResponse(overallFormat protocol.FormatCode, n int) {
	s.t.Helper()
	s.startTyped(protocol.BackendCopyInResponse)
	s.writer.AddByte(byte(overallFormat))
	s.writer.AddInt16(int16(n))
	for i := 0; i < n; i++ {
		s.writer.AddInt16(int16(overallFormat))
	}
	require.NoError(s.t, s.writer.End())
}

// SendNotificationResponse sends an asynchronous NotificationResponse.
func (s *Server) SendNotificationResponse(pid int32, channel, payload string) {
	s.t.Helper()
	s.startTyped(protocol.BackendNotificationResponse)
	s.writer.AddInt32(pid)
	s.writer.AddCString(channel)
	s.writer.AddCString(payload)
	require.NoError(s.t, s.writer.End())
}

// SendNoticeResponse sends a minimal NoticeResponse.
func (s *Server) SendNoticeResponse(severity, message string) {
	s.t.Helper()
	s.startTyped(protocol.BackendNoticeResponse)
	s.writer.AddByte('S')
	s.writer.AddCString(severity)
	s.writer.AddByte('M')
	s.writer.AddCString(message)
	s.writer.AddNullTerminate()
	require.NoError(s.t, s.writer.End())
}
