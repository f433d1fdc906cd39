package pgwire

import (
	"fmt"

	"github.com/tidewire/pgwire/pkg/protocol"
	"github.com/xdg-go/scram"
)

const (
	scramSHA256     = "SCRAM-SHA-256"
	scramSHA256Plus = "SCRAM-SHA-256-PLUS"
)

// authSCRAM drives a full SCRAM-SHA-256 conversation: AuthenticationSASL
// (mechanism selection, already parsed into mechanisms) -> client-first ->
// AuthenticationSASLContinue (server-first) -> client-final ->
// AuthenticationSASLFinal (server verification) -> AuthenticationOk.
//
// SCRAM-SHA-256-PLUS is declared as a mechanism name but never selected: see
// chooseMechanism and DESIGN.md.
func authSCRAM(s *Session, params *ConnectParams, mechanisms []string) error {
	mechanism, err := chooseMechanism(mechanisms)
	if err != nil {
		return newError(Authentication, err)
	}

	client, err := scram.SHA256.NewClient(params.User, params.Password, "")
	if err != nil {
		return newError(Authentication, err)
	}

	conv := client.NewConversation()

	clientFirst, err := conv.Step("")
	if err != nil {
		return newError(Authentication, err)
	}

	if err := protocol.WriteSASLInitialResponse(s.writer, mechanism, []byte(clientFirst)); err != nil {
		return newError(Io, err)
	}

	msg, err := s.next()
	if err != nil {
		return err
	}
	if msg != protocol.BackendAuth {
		return newError(UnexpectedMessage, fmt.Errorf("expected AuthenticationSASLContinue, got %s", msg))
	}
	cont, err := protocol.ParseAuthMessage(s.reader)
	if err != nil {
		return newError(Parse, err)
	}
	if cont.Type != protocol.AuthSASLContinue {
		return newError(Authentication, fmt.Errorf("expected AuthenticationSASLContinue, got auth type %d", cont.Type))
	}

	clientFinal, err := conv.Step(string(cont.Data))
	if err != nil {
		return newError(Authentication, err)
	}

	if err := protocol.WriteSASLResponse(s.writer, []byte(clientFinal)); err != nil {
		return newError(Io, err)
	}

	msg, err = s.next()
	if err != nil {
		return err
	}
	if msg != protocol.BackendAuth {
		return newError(UnexpectedMessage, fmt.Errorf("expected AuthenticationSASLFinal, got %s", msg))
	}
	final, err := protocol.ParseAuthMessage(s.reader)
	if err != nil {
		return newError(Parse, err)
	}
	if final.Type != protocol.AuthSASLFinal {
		return newError(Authentication, fmt.Errorf("expected AuthenticationSASLFinal, got auth type %d", final.Type))
	}

	if _, err := conv.Step(string(final.Data)); err != nil {
		return newError(Authentication, fmt.Errorf("server SCRAM verification failed: %w", err))
	}
	if !conv.Valid() {
		return newError(Authentication, fmt.Errorf("SCRAM conversation did not complete validly"))
	}

	return nil
}

// chooseMechanism selects SCRAM-SHA-256 whenever the server advertises it.
// It never selects SCRAM-SHA-256-PLUS: no channel-binding data from
// crypto/tls's ConnectionState is wired through to the conversation. See
// DESIGN.md.
func chooseMechanism(mechanisms []string) (string, error) {
	for _, m := range mechanisms {
		if m == scramSHA256 {
			return scramSHA256, nil
		}
	}
	return "", fmt.Errorf("server did not advertise %s", scramSHA256)
}
