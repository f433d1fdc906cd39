package pgwire

import (
	"database/sql/driver"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// registerDecimalCodec teaches the registry's pgtype.Map to decode/encode
// NUMERIC as shopspring/decimal.Decimal instead of pgtype's own Numeric,
// which callers outside this module rarely want to hold directly.
//
// The override replaces whatever pgtype.Type is registered for
// pgtype.NumericOID in m, so decimalCodec cannot turn around and ask m for
// that same OID to do the actual wire work — by the time it asks, m only
// knows about decimalCodec itself, and the lookup would recurse into it
// instead of reaching pgtype's built-in Numeric handling. The native type
// is captured here, before RegisterType shadows it, and carried on
// decimalCodec so encode/decode always reach the real codec directly.
func registerDecimalCodec(m *pgtype.Map) {
	native, ok := m.TypeForOID(pgtype.NumericOID)
	if !ok {
		return
	}

	m.RegisterType(&pgtype.Type{
		Name:  "numeric",
		OID:   pgtype.NumericOID,
		Codec: decimalCodec{native: native.Codec},
	})
}

type decimalCodec struct {
	native pgtype.Codec
}

func (decimalCodec) FormatSupported(format int16) bool {
	return format == pgtype.BinaryFormatCode || format == pgtype.TextFormatCode
}

func (decimalCodec) PreferredFormat() int16 {
	return pgtype.BinaryFormatCode
}

func (c decimalCodec) PlanEncode(m *pgtype.Map, oid uint32, format int16, value any) pgtype.EncodePlan {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return nil
	}
	return decimalEncodePlan{native: c.native, m: m, oid: oid, format: format, value: d}
}

func (c decimalCodec) PlanScan(m *pgtype.Map, oid uint32, format int16, target any) pgtype.ScanPlan {
	if _, ok := target.(*decimal.Decimal); !ok {
		return nil
	}
	return decimalScanPlan{native: c.native, m: m, oid: oid, format: format}
}

func (c decimalCodec) DecodeDatabaseSQLValue(m *pgtype.Map, oid uint32, format int16, src []byte) (driver.Value, error) {
	return c.DecodeValue(m, oid, format, src)
}

func (c decimalCodec) DecodeValue(m *pgtype.Map, oid uint32, format int16, src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	num := new(pgtype.Numeric)
	plan := c.native.PlanScan(m, oid, format, num)
	if plan == nil {
		return nil, newError(WrongType, fmt.Errorf("no native numeric scan plan for format %d", format))
	}
	if err := plan.Scan(src, num); err != nil {
		return nil, err
	}
	if !num.Valid {
		return nil, nil
	}
	return numericToDecimal(num), nil
}

type decimalEncodePlan struct {
	native pgtype.Codec
	m      *pgtype.Map
	oid    uint32
	format int16
	value  decimal.Decimal
}

func (p decimalEncodePlan) Encode(value any, buf []byte) ([]byte, error) {
	num := new(pgtype.Numeric)
	if err := num.Scan(p.value.String()); err != nil {
		return nil, err
	}
	plan := p.native.PlanEncode(p.m, p.oid, p.format, num)
	if plan == nil {
		return nil, newError(WrongType, fmt.Errorf("no native numeric encode plan for format %d", p.format))
	}
	return plan.Encode(num, buf)
}

type decimalScanPlan struct {
	native pgtype.Codec
	m      *pgtype.Map
	oid    uint32
	format int16
}

func (p decimalScanPlan) Scan(src []byte, dst any) error {
	target := dst.(*decimal.Decimal)
	if src == nil {
		*target = decimal.Decimal{}
		return nil
	}
	num := new(pgtype.Numeric)
	plan := p.native.PlanScan(p.m, p.oid, p.format, num)
	if plan == nil {
		return fmt.Errorf("no native numeric scan plan for format %d", p.format)
	}
	if err := plan.Scan(src, num); err != nil {
		return err
	}
	*target = numericToDecimal(num)
	return nil
}

// numericToDecimal converts a pgtype.Numeric to a shopspring/decimal.Decimal
// directly from its (unscaled integer, exponent) pair, avoiding the
// precision loss a float64 round trip would introduce for high-precision
// NUMERIC columns.
func numericToDecimal(num *pgtype.Numeric) decimal.Decimal {
	if num.NaN || num.InfinityModifier != pgtype.Finite {
		return decimal.Decimal{}
	}
	return decimal.NewFromBigInt(num.Int, num.Exp)
}
