package pgwire

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/tidewire/pgwire/dberror"
	"github.com/tidewire/pgwire/pkg/protocol"
)

// NoticeHandlerFn is invoked for every NoticeResponse the session absorbs
// outside of a request/response cycle. NotificationResponse messages are
// queued for Notifications instead and never reach the handler.
type NoticeHandlerFn func(n Notification)

func defaultNoticeHandler(n Notification) {
	slog.Default().Info("postgres notice", "severity", n.Severity, "message", n.Message, "channel", n.Channel)
}

// Session is a single authenticated connection to a Postgres backend. A
// Session allows exactly one in-flight request/response exchange at a time;
// callers that need concurrency open multiple Sessions, the same discipline
// the wire protocol itself imposes on a single TCP connection.
type Session struct {
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	logger *slog.Logger
	types  *TypeRegistry
	config *connectConfig

	mu       sync.Mutex
	sem      chan struct{}
	desynced bool
	closed   bool
	backendPID    int32
	backendSecret int32
	txStatus      protocol.TransactionStatus
	paramStatus   map[string]string
	txDepth       int
	notifyQueue   []Notification

	stmtCounter   int
	portalCounter int
}

// Connect dials, negotiates TLS if requested, and authenticates a new
// Session against params.
func Connect(ctx context.Context, params *ConnectParams, opts ...OptionFn) (*Session, error) {
	if params.User == "" {
		return nil, newError(MissingUser, fmt.Errorf("connection parameters must specify a user"))
	}

	cfg := defaultConnectConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	conn, err := dial(ctx, params)
	if err != nil {
		cfg.metrics.observeConnect(false)
		return nil, err
	}

	return connectOverConn(conn, params, cfg)
}

// ConnectOverConn runs the handshake and authentication exchange over an
// already-established connection, skipping dial/TLS negotiation entirely.
// Production callers have no reason to reach for this directly; it exists
// so tests can hand the client a net.Pipe wired to a mockserver.Server
// instead of a real socket.
func ConnectOverConn(conn net.Conn, params *ConnectParams, opts ...OptionFn) (*Session, error) {
	if params.User == "" {
		return nil, newError(MissingUser, fmt.Errorf("connection parameters must specify a user"))
	}

	cfg := defaultConnectConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return connectOverConn(conn, params, cfg)
}

func connectOverConn(conn net.Conn, params *ConnectParams, cfg *connectConfig) (*Session, error) {
	s := &Session{
		conn:        conn,
		reader:      protocol.NewReader(conn, cfg.maxMessageSize),
		writer:      protocol.NewWriter(conn),
		logger:      cfg.logger,
		types:       newTypeRegistry(),
		config:      cfg,
		paramStatus: make(map[string]string),
		sem:         make(chan struct{}, 1),
	}
	registerDecimalCodec(s.types.types)

	if err := runHandshake(s, params); err != nil {
		conn.Close()
		cfg.metrics.observeConnect(false)
		return nil, err
	}

	cfg.metrics.observeConnect(true)
	return s, nil
}

// Close gracefully terminates the session: a Terminate message is sent
// unless the session is already desynchronized, in which case the
// connection is simply dropped.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if !s.desynced {
		_ = protocol.WriteTerminate(s.writer)
	}
	return s.conn.Close()
}

// ParameterStatus returns the last value the backend reported for a runtime
// parameter (e.g. "server_version", "TimeZone"), or "" if it was never sent.
func (s *Session) ParameterStatus(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paramStatus[name]
}

// BackendPID returns the process ID the backend reported in BackendKeyData,
// used to target CancelRequest.
func (s *Session) BackendPID() int32 {
	return s.backendPID
}

// nextStatementName returns a fresh, session-unique prepared-statement name.
func (s *Session) nextStatementName() string {
	s.stmtCounter++
	return fmt.Sprintf("pgwire_stmt_%d", s.stmtCounter)
}

// nextPortalName returns a fresh, session-unique portal name.
func (s *Session) nextPortalName() string {
	s.portalCounter++
	return fmt.Sprintf("pgwire_portal_%d", s.portalCounter)
}

// depth returns the session's current transaction nesting depth (0 = idle,
// outside any transaction).
func (s *Session) depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txDepth
}

func (s *Session) setDepth(d int) {
	s.mu.Lock()
	s.txDepth = d
	s.mu.Unlock()
}

// CancelData returns the cancellation identity for this session's backend,
// to be passed to the free function CancelQuery from another goroutine or
// process.
func (s *Session) CancelData() CancelKeys {
	return s.Keys()
}

// lock enforces the single-in-flight-exchange rule: only one request/
// response cycle may be outstanding on the connection at a time. It returns
// a Closed error immediately if the session is already shut down or
// desynchronized, and otherwise blocks until any prior exchange finishes or
// ctx is done.
func (s *Session) lock(ctx context.Context) error {
	if err := s.checkUsable(); err != nil {
		return err
	}

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return newError(Timer, ctx.Err())
	}
}

// checkUsable reports the same Closed failures lock does, without acquiring
// the exchange semaphore, for callers (like Bind) that need to fail fast
// ahead of a wire exchange they haven't assembled yet.
func (s *Session) checkUsable() error {
	s.mu.Lock()
	closed, desynced := s.closed, s.desynced
	s.mu.Unlock()
	if closed {
		return newError(Closed, fmt.Errorf("session is closed"))
	}
	if desynced {
		return newError(Closed, fmt.Errorf("session is desynchronized and must be closed"))
	}
	return nil
}

func (s *Session) unlock() {
	<-s.sem
}

// markDesynced flags the session as unrecoverable: an unexpected message was
// seen mid-exchange and subsequent requests may not line up with their
// responses. Close will drop the connection instead of sending Terminate.
func (s *Session) markDesynced() {
	s.desynced = true
}

// absorb handles the "out of band" backend messages that can interleave
// with any exchange: NoticeResponse, NotificationResponse, and
// ParameterStatus. It returns true if msg was one of these and has been
// fully consumed.
func (s *Session) absorb(msg protocol.BackendMessage) (bool, error) {
	switch msg {
	case protocol.BackendParameterStatus:
		ps, err := protocol.ParseParameterStatus(s.reader)
		if err != nil {
			return true, newError(Parse, err)
		}
		s.mu.Lock()
		s.paramStatus[ps.Name] = ps.Value
		s.mu.Unlock()
		return true, nil
	case protocol.BackendNoticeResponse:
		fields, err := protocol.ParseFields(s.reader)
		if err != nil {
			return true, newError(Parse, err)
		}
		s.config.noticeHandler(notificationFromNotice(fields))
		return true, nil
	case protocol.BackendNotificationResponse:
		note, err := protocol.ParseNotificationResponse(s.reader)
		if err != nil {
			return true, newError(Parse, err)
		}
		s.mu.Lock()
		s.notifyQueue = append(s.notifyQueue, Notification{Channel: note.Channel, Message: note.Payload, ProcessID: note.ProcessID})
		s.mu.Unlock()
		return true, nil
	default:
		return false, nil
	}
}

// next reads the next backend message, transparently absorbing out-of-band
// messages until it finds one the caller needs to act on.
func (s *Session) next() (protocol.BackendMessage, error) {
	for {
		msg, err := s.reader.ReadBackendMessage()
		if err != nil {
			if size, ok := protocol.UnwrapMessageSizeExceeded(err); ok {
				_ = s.reader.Slurp(size.Size)
				s.markDesynced()
				return 0, newError(Io, err)
			}
			if _, ok := err.(protocol.ErrUnknownMessageType); ok {
				// No length field was read for an unrecognized type byte, so
				// there is no way to resynchronize on the next frame boundary.
				s.markDesynced()
				return 0, newError(UnexpectedMessage, err)
			}
			return 0, newError(Io, err)
		}

		absorbed, err := s.absorb(msg)
		if err != nil {
			return 0, err
		}
		if !absorbed {
			return msg, nil
		}
	}
}

// readDbError decodes the payload of a BackendErrorResponse message already
// read off the wire.
func (s *Session) readDbError() error {
	fields, err := protocol.ParseFields(s.reader)
	if err != nil {
		return newError(Parse, err)
	}
	return newDbError(Db, dberror.FromFields(fields))
}
