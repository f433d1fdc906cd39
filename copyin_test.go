package pgwire

import (
	"encoding/binary"
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/require"
	"github.com/tidewire/pgwire/internal/mockserver"
	"github.com/tidewire/pgwire/pkg/protocol"
)

func TestCopyInHappyPath(t *testing.T) {
	sess, server := connectReady(t)
	defer sess.Close()
	ctx := withTimeout(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r := server.ExpectFrontend(protocol.FrontendParse)
		q, err := r.GetString()
		require.NoError(t, err)
		require.Equal(t, "SELECT id, name FROM widgets", q)
		server.ExpectFrontend(protocol.FrontendDescribe)
		server.ExpectSync()
		server.SendParseComplete()
		server.SendNoData()
		server.SendRowDescription(
			mockserver.FieldSpec{Name: "id", DataTypeOID: uint32(oid.T_int4)},
			mockserver.FieldSpec{Name: "name", DataTypeOID: uint32(oid.T_text)},
		)
		server.SendReadyForQuery(protocol.TxIdle)

		server.ExpectFrontend(protocol.FrontendClose)
		server.ExpectSync()
		server.SendCloseComplete()
		server.SendReadyForQuery(protocol.TxIdle)

		r = server.ExpectFrontend(protocol.FrontendSimpleQuery)
		q, err = r.GetString()
		require.NoError(t, err)
		require.Equal(t, "COPY widgets (id, name) FROM STDIN WITH (FORMAT binary)", q)
		server.SendCopyInResponse(protocol.BinaryFormat, 2)

		// header frame
		server.ExpectFrontend(protocol.FrontendCopyData)
		// one row
		server.ExpectFrontend(protocol.FrontendCopyData)
		// trailer frame
		r = server.ExpectFrontend(protocol.FrontendCopyData)
		trailer, err := r.GetBytes(2)
		require.NoError(t, err)
		require.Equal(t, uint16(0xFFFF), binary.BigEndian.Uint16(trailer))

		server.ExpectFrontend(protocol.FrontendCopyDone)
		server.ExpectSync()
		server.SendCommandComplete("COPY 1")
		server.SendReadyForQuery(protocol.TxIdle)
	}()

	ci, err := sess.PrepareCopyIn(ctx, "widgets", []string{"id", "name"})
	require.NoError(t, err)
	require.Equal(t, []oid.Oid{oid.T_int4, oid.T_text}, ci.ColumnTypes())

	require.NoError(t, ci.WriteRow(int32(1), "gizmo"))
	require.NoError(t, ci.Close())
	<-done
}

func TestCopyInColumnCountMismatchAborts(t *testing.T) {
	sess, server := connectReady(t)
	defer sess.Close()
	ctx := withTimeout(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendParse)
		server.ExpectFrontend(protocol.FrontendDescribe)
		server.ExpectSync()
		server.SendParseComplete()
		server.SendNoData()
		server.SendRowDescription(mockserver.FieldSpec{Name: "id", DataTypeOID: uint32(oid.T_int4)})
		server.SendReadyForQuery(protocol.TxIdle)

		server.ExpectFrontend(protocol.FrontendClose)
		server.ExpectSync()
		server.SendCloseComplete()
		server.SendReadyForQuery(protocol.TxIdle)

		server.ExpectFrontend(protocol.FrontendSimpleQuery)
		server.SendCopyInResponse(protocol.BinaryFormat, 1)

		server.ExpectFrontend(protocol.FrontendCopyData) // header

		r := server.ExpectFrontend(protocol.FrontendCopyFail)
		_, err := r.GetString()
		require.NoError(t, err)
		server.ExpectSync()
		server.SendErrorResponse("ERROR", "57014", "COPY from stdin failed: Invalid column count")
		server.SendReadyForQuery(protocol.TxIdle)
	}()

	ci, err := sess.PrepareCopyIn(ctx, "widgets", []string{"id"})
	require.NoError(t, err)

	err = ci.WriteRow(int32(1), "extra")
	require.Error(t, err)
	var pgErr *Error
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, CopyInStream, pgErr.Kind)
	<-done

	// the session lock was released on abort; a fresh exchange works.
	done = make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendSimpleQuery)
		server.SendCommandComplete("SELECT 1")
		server.SendReadyForQuery(protocol.TxIdle)
	}()
	_, err = sess.SimpleQuery(ctx, "SELECT 1")
	require.NoError(t, err)
	<-done
}
