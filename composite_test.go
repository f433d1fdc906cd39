package pgwire

import (
	"encoding/binary"
	"testing"

	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/require"
	"github.com/tidewire/pgwire/internal/mockserver"
	"github.com/tidewire/pgwire/pkg/protocol"
)

func TestCompositeRoundTrip(t *testing.T) {
	types := newTypeRegistry()
	shape := []oid.Oid{oid.T_text, oid.T_int4}

	encoded, err := EncodeComposite(types, shape, []any{"Springfield", int32(100)})
	require.NoError(t, err)

	decoded, err := DecodeComposite(types, encoded, shape)
	require.NoError(t, err)
	require.Len(t, decoded.Fields, 2)
	require.Equal(t, "Springfield", decoded.Fields[0].Value)
	require.Equal(t, int32(100), decoded.Fields[1].Value)
}

func TestCompositeRoundTripWithNull(t *testing.T) {
	types := newTypeRegistry()
	shape := []oid.Oid{oid.T_text, oid.T_int4}

	encoded, err := EncodeComposite(types, shape, []any{nil, int32(7)})
	require.NoError(t, err)

	decoded, err := DecodeComposite(types, encoded, shape)
	require.NoError(t, err)
	require.Nil(t, decoded.Fields[0].Value)
	require.Equal(t, int32(7), decoded.Fields[1].Value)
}

func TestCompositeFieldCountMismatch(t *testing.T) {
	types := newTypeRegistry()
	shape := []oid.Oid{oid.T_text, oid.T_int4}
	encoded, err := EncodeComposite(types, shape, []any{"foobar", int32(100)})
	require.NoError(t, err)

	_, err = DecodeComposite(types, encoded, []oid.Oid{oid.T_text, oid.T_int4, oid.T_bool})
	require.Error(t, err)
	var pgErr *Error
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, WrongType, pgErr.Kind)
}

func TestCompositeFieldTypeMismatch(t *testing.T) {
	types := newTypeRegistry()
	shape := []oid.Oid{oid.T_text, oid.T_int4}
	encoded, err := EncodeComposite(types, shape, []any{"foobar", int32(100)})
	require.NoError(t, err)

	_, err = DecodeComposite(types, encoded, []oid.Oid{oid.T_text, oid.T_text})
	require.Error(t, err)
	var pgErr *Error
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, WrongType, pgErr.Kind)
}

// addressTypeOID stands in for a composite type OID the backend would
// have assigned; it has no registered codec, so the outer composite's
// generic decode leaves that field as raw bytes for the caller to
// re-decode against the known inner shape.
const addressTypeOID = oid.Oid(90001)

func TestNestedComposite(t *testing.T) {
	types := newTypeRegistry()
	addressShape := []oid.Oid{oid.T_text, oid.T_text}
	address, err := EncodeComposite(types, addressShape, []any{"123 Main St", "Springfield"})
	require.NoError(t, err)

	personShape := []oid.Oid{oid.T_text, oid.T_int4, addressTypeOID}
	person := encodeOuterWithRawField(t, types, "John", int32(30), addressTypeOID, address)

	decoded, err := DecodeComposite(types, person, personShape)
	require.NoError(t, err)
	require.Equal(t, "John", decoded.Fields[0].Value)
	require.Equal(t, int32(30), decoded.Fields[1].Value)

	raw, ok := decoded.Fields[2].Value.([]byte)
	require.True(t, ok)
	innerDecoded, err := DecodeComposite(types, raw, addressShape)
	require.NoError(t, err)
	require.Equal(t, "123 Main St", innerDecoded.Fields[0].Value)
	require.Equal(t, "Springfield", innerDecoded.Fields[1].Value)
}

// encodeOuterWithRawField builds a three-field composite whose last field
// is supplied as already-encoded bytes under rawFieldOID, a type
// EncodeComposite's normal encodeParam path has no codec for.
func encodeOuterWithRawField(t *testing.T, types *TypeRegistry, name string, age int32, rawFieldOID oid.Oid, rawField []byte) []byte {
	t.Helper()
	nameRaw, err := types.encodeParam(oid.T_text, name)
	require.NoError(t, err)
	ageRaw, err := types.encodeParam(oid.T_int4, age)
	require.NoError(t, err)

	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, 3)
	appendField := func(o oid.Oid, data []byte) {
		buf = binary.BigEndian.AppendUint32(buf, uint32(o))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}
	appendField(oid.T_text, nameRaw)
	appendField(oid.T_int4, ageRaw)
	appendField(rawFieldOID, rawField)
	return buf
}

func TestResolveUnknownTypesRegistersEnum(t *testing.T) {
	sess, server := connectReady(t)
	defer sess.Close()
	ctx := withTimeout(t)

	const employmentOID = oid.Oid(90050)

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ExpectFrontend(protocol.FrontendSimpleQuery)
		server.SendRowDescription(
			mockserver.FieldSpec{Name: "oid", DataTypeOID: uint32(oid.T_int4)},
			mockserver.FieldSpec{Name: "typname", DataTypeOID: uint32(oid.T_text)},
			mockserver.FieldSpec{Name: "typtype", DataTypeOID: uint32(oid.T_text)},
			mockserver.FieldSpec{Name: "typbasetype", DataTypeOID: uint32(oid.T_int4)},
		)
		server.SendDataRow([]byte("90050"), []byte("employment"), []byte("e"), []byte("0"))
		server.SendCommandComplete("SELECT 1")
		server.SendReadyForQuery(protocol.TxIdle)
	}()

	require.NoError(t, sess.resolveUnknownTypes(ctx, []oid.Oid{employmentOID}))
	<-done

	value, err := sess.types.decodeColumn(FieldDescription{DataTypeOID: uint32(employmentOID)}, []byte("Hourly"))
	require.NoError(t, err)
	require.Equal(t, "Hourly", value)
}
