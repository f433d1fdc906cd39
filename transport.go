package pgwire

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/tidewire/pgwire/pkg/protocol"
)

var (
	sslSupported   = byte('S')
	sslUnsupported = byte('N')
)

// dial opens the underlying transport (TCP or Unix socket) named by params
// and, if requested, performs the SSLRequest pre-negotiation handshake
// before any startup message is sent.
func dial(ctx context.Context, params *ConnectParams) (net.Conn, error) {
	network := "tcp"
	if params.isUnixSocket() {
		network = "unix"
	}

	conn, err := (&net.Dialer{}).DialContext(ctx, network, params.address())
	if err != nil {
		return nil, newError(Connect, err)
	}

	// TLS negotiation is never attempted over a UNIX socket: there is no
	// network path for it to protect.
	if params.SSLMode == SSLDisable || params.isUnixSocket() {
		return conn, nil
	}

	conn, err = negotiateTLS(conn, params)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// negotiateTLS sends the pre-startup SSLRequest frame and, if the backend
// answers 'S', upgrades conn in place. A 'N' answer falls back to a plain
// connection unless the caller demanded SSLRequire or stronger.
func negotiateTLS(conn net.Conn, params *ConnectParams) (net.Conn, error) {
	w := protocol.NewWriter(conn)
	if err := protocol.WriteSSLRequest(w); err != nil {
		conn.Close()
		return nil, newError(Io, err)
	}

	var resp [1]byte
	if _, err := conn.Read(resp[:]); err != nil {
		conn.Close()
		return nil, newError(Io, err)
	}

	switch resp[0] {
	case sslUnsupported:
		if params.SSLMode == SSLRequire || params.SSLMode == SSLVerifyCA || params.SSLMode == SSLVerifyFull {
			conn.Close()
			return nil, newError(Tls, fmt.Errorf("server does not support TLS"))
		}
		return conn, nil
	case sslSupported:
		cfg := &tls.Config{
			ServerName:         params.Host,
			InsecureSkipVerify: params.SSLMode == SSLRequire,
		}
		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.HandshakeContext(context.Background()); err != nil {
			tlsConn.Close()
			return nil, newError(Tls, err)
		}
		return tlsConn, nil
	default:
		conn.Close()
		return nil, newError(Tls, fmt.Errorf("unexpected SSL negotiation byte %q", resp[0]))
	}
}
