package pgwire

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

// defaultUnixSocketDir is where libpq-compatible clients look for a
// Postgres listener's socket file when no host is given at all.
const defaultUnixSocketDir = "/var/run/postgresql"

// SSLMode selects how the client negotiates transport security.
type SSLMode int

const (
	SSLDisable SSLMode = iota
	SSLPrefer
	SSLRequire
	SSLVerifyCA
	SSLVerifyFull
)

// ConnectParams holds everything needed to dial and authenticate a session,
// parsed from a postgresql:// URL or built directly as a struct literal.
// The functional options in options.go configure the Session, not these
// parameters.
type ConnectParams struct {
	Host     string
	Port     int
	Socket   string
	User     string
	Password string
	Database string
	SSLMode  SSLMode
	Options  map[string]string
}

func (p *ConnectParams) isUnixSocket() bool {
	return p.Socket != ""
}

// address returns the dial target: the path to the `.s.PGSQL.<port>` socket
// file inside the socket directory for a UNIX-domain connection, or
// "host:port" for TCP.
func (p *ConnectParams) address() string {
	if p.isUnixSocket() {
		return filepath.Join(p.Socket, fmt.Sprintf(".s.PGSQL.%d", p.Port))
	}
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// ParseConnString parses a postgresql:// (or postgres://) connection URL.
// An empty or "/" path means no database was named (ConnectParams.Database
// is left empty); a "/name" path names the database.
func ParseConnString(raw string) (*ConnectParams, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, newError(Parse, err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, newError(Parse, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}

	params := &ConnectParams{
		Host:    u.Hostname(),
		Port:    5432,
		SSLMode: SSLPrefer,
		Options: map[string]string{},
	}

	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, newError(Parse, err)
		}
		params.Port = n
	}

	// An empty host or one beginning with "/" (once percent-decoded by
	// url.Parse) names a UNIX socket directory rather than a TCP target.
	switch {
	case params.Host == "":
		params.Socket = defaultUnixSocketDir
	case strings.HasPrefix(params.Host, "/"):
		params.Socket = params.Host
		params.Host = ""
	}

	if u.User != nil {
		params.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			params.Password = pw
		}
	}

	path := strings.TrimPrefix(u.Path, "/")
	if path != "" {
		params.Database = path
	}

	q := u.Query()
	for k, vs := range q {
		if len(vs) == 0 {
			continue
		}
		switch k {
		case "sslmode":
			params.SSLMode = parseSSLMode(vs[0])
		default:
			params.Options[k] = vs[0]
		}
	}

	return params, nil
}

func parseSSLMode(s string) SSLMode {
	switch s {
	case "disable":
		return SSLDisable
	case "require":
		return SSLRequire
	case "verify-ca":
		return SSLVerifyCA
	case "verify-full":
		return SSLVerifyFull
	default:
		return SSLPrefer
	}
}
