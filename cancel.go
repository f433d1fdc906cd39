package pgwire

import (
	"context"

	"github.com/tidewire/pgwire/pkg/protocol"
)

// CancelQuery opens a fresh connection to the backend named by params and
// sends a single CancelRequest frame for keys, then closes the connection
// without waiting for a reply — the backend never responds to a cancel
// request over the side channel.
func CancelQuery(ctx context.Context, params *ConnectParams, keys CancelKeys) error {
	conn, err := dial(ctx, params)
	if err != nil {
		return err
	}
	defer conn.Close()

	w := protocol.NewWriter(conn)
	if err := protocol.WriteCancelRequest(w, keys.ProcessID, keys.SecretKey); err != nil {
		return newError(Io, err)
	}
	return nil
}
