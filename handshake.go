package pgwire

import (
	"fmt"

	"github.com/tidewire/pgwire/pkg/protocol"
)

// runHandshake assembles and sends the Startup message, drives the
// authentication exchange, and collects ParameterStatus/BackendKeyData
// messages until the backend reports ReadyForQuery.
func runHandshake(s *Session, params *ConnectParams) error {
	options := [][2]string{
		{"client_encoding", "UTF8"},
		{"TimeZone", "GMT"},
		{"user", params.User},
	}
	if params.Database != "" {
		options = append(options, [2]string{"database", params.Database})
	}
	for k, v := range params.Options {
		options = append(options, [2]string{k, v})
	}

	if err := protocol.WriteStartup(s.writer, protocol.Version3, options); err != nil {
		return newError(Io, err)
	}

	for {
		msg, err := s.reader.ReadBackendMessage()
		if err != nil {
			return newError(Io, err)
		}

		switch msg {
		case protocol.BackendAuth:
			auth, err := protocol.ParseAuthMessage(s.reader)
			if err != nil {
				return newError(Parse, err)
			}
			if err := runAuth(s, auth, params); err != nil {
				return err
			}
		case protocol.BackendParameterStatus:
			ps, err := protocol.ParseParameterStatus(s.reader)
			if err != nil {
				return newError(Parse, err)
			}
			s.paramStatus[ps.Name] = ps.Value
		case protocol.BackendBackendKeyData:
			kd, err := protocol.ParseBackendKeyData(s.reader)
			if err != nil {
				return newError(Parse, err)
			}
			s.backendPID = kd.ProcessID
			s.backendSecret = kd.SecretKey
		case protocol.BackendNoticeResponse:
			fields, err := protocol.ParseFields(s.reader)
			if err != nil {
				return newError(Parse, err)
			}
			s.config.noticeHandler(notificationFromNotice(fields))
		case protocol.BackendErrorResponse:
			return s.readDbError()
		case protocol.BackendReadyForQuery:
			status, err := protocol.ParseReadyForQuery(s.reader)
			if err != nil {
				return newError(Parse, err)
			}
			s.txStatus = status
			return nil
		default:
			return newError(UnexpectedMessage, fmt.Errorf("unexpected message %s during handshake", msg))
		}
	}
}

// CancelKeys identifies a running backend so a cancellation request can be
// addressed to it; captured from a Session once handshake completes.
type CancelKeys struct {
	ProcessID int32
	SecretKey int32
}

// Keys returns the cancellation identity for the session's backend.
func (s *Session) Keys() CancelKeys {
	return CancelKeys{ProcessID: s.backendPID, SecretKey: s.backendSecret}
}
