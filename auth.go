package pgwire

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/tidewire/pgwire/pkg/protocol"
)

// runAuth dispatches on the AuthenticationXXX request the backend sent
// during the startup exchange, replying however that mechanism requires.
// It returns once its reply is written (for SCRAM, once the server's final
// message is verified); the AuthenticationOk or ErrorResponse that follows
// is read by runHandshake's loop.
func runAuth(s *Session, msg protocol.AuthMessage, params *ConnectParams) error {
	switch msg.Type {
	case protocol.AuthOK:
		return nil
	case protocol.AuthCleartextPassword:
		return authCleartext(s, params)
	case protocol.AuthMD5Password:
		return authMD5(s, params, msg.Salt)
	case protocol.AuthSASL:
		return authSCRAM(s, params, msg.Mechanisms)
	case protocol.AuthKerberosV5, protocol.AuthSCMCredential, protocol.AuthGSS, protocol.AuthGSSContinue, protocol.AuthSSPI:
		return newError(UnsupportedAuthentication, fmt.Errorf("unsupported authentication type %d", msg.Type))
	default:
		return newError(UnsupportedAuthentication, fmt.Errorf("unknown authentication type %d", msg.Type))
	}
}

func authCleartext(s *Session, params *ConnectParams) error {
	if params.Password == "" {
		return newError(MissingPassword, fmt.Errorf("server requested a cleartext password"))
	}

	if err := protocol.WritePasswordMessage(s.writer, params.Password); err != nil {
		return newError(Io, err)
	}
	return nil
}

// MD5Password hashes a password the way Postgres's MD5 authentication
// requires: md5(md5(password + username) + salt), hex-encoded and prefixed
// with "md5".
//
//nolint:gosec // required by the Postgres wire protocol, not a design choice
func MD5Password(username, password string, salt [4]byte) string {
	inner := md5.Sum([]byte(password + username))
	outer := md5.Sum([]byte(hex.EncodeToString(inner[:]) + string(salt[:])))
	return "md5" + hex.EncodeToString(outer[:])
}

func authMD5(s *Session, params *ConnectParams, salt [4]byte) error {
	if params.Password == "" {
		return newError(MissingPassword, fmt.Errorf("server requested an MD5 password"))
	}

	hashed := MD5Password(params.User, params.Password, salt)
	if err := protocol.WritePasswordMessage(s.writer, hashed); err != nil {
		return newError(Io, err)
	}
	return nil
}
