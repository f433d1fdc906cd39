package pgwire

import (
	"testing"

	"github.com/lib/pq/oid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDecimalCodecRoundTrips(t *testing.T) {
	types := newTypeRegistry()
	registerDecimalCodec(types.types)

	cases := []string{
		"0",
		"1",
		"-1",
		"3.14159",
		"-123456.789",
		"100000000000000000000.000000001",
		"0.00000000001",
	}

	field := FieldDescription{Name: "amount", DataTypeOID: uint32(oid.T_numeric)}

	for _, c := range cases {
		want, err := decimal.NewFromString(c)
		require.NoError(t, err)

		encoded, err := types.encodeParam(oid.T_numeric, want)
		require.NoError(t, err)
		require.NotNil(t, encoded)

		decoded, err := types.decodeColumn(field, encoded)
		require.NoError(t, err)

		got, ok := decoded.(decimal.Decimal)
		require.True(t, ok, "decoded value has type %T, want decimal.Decimal", decoded)
		require.True(t, want.Equal(got), "decode(encode(%s)) = %s", c, got.String())
	}
}

func TestDecimalCodecRoundTripsNull(t *testing.T) {
	types := newTypeRegistry()
	registerDecimalCodec(types.types)

	field := FieldDescription{Name: "amount", DataTypeOID: uint32(oid.T_numeric)}

	encoded, err := types.encodeParam(oid.T_numeric, nil)
	require.NoError(t, err)
	require.Nil(t, encoded)

	decoded, err := types.decodeColumn(field, nil)
	require.NoError(t, err)
	require.Nil(t, decoded)
}
