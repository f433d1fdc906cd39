package pgwire

import (
	"context"
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq/oid"
)

// CompositeValue is the generic decode/encode target for a composite (row)
// type whose Go shape isn't known ahead of a query: its Fields are read or
// written positionally, each carrying the OID the wire format tags it
// with.
type CompositeValue struct {
	Fields []CompositeField
}

// CompositeField is one positional field of a CompositeValue.
type CompositeField struct {
	OID   oid.Oid
	Value any
}

// DecodeComposite decodes raw (a composite column's binary payload) against
// expected, the caller's expected per-field OIDs. It mirrors the wire's own
// positional-cursor framing: a leading field count, then one
// (oid:uint32, length:int32, bytes) triple per field. A field-count or
// per-field OID mismatch against expected returns a WrongType error instead
// of a best-effort decode, since a silently-accepted shape mismatch would
// hand the caller values under the wrong field names.
func DecodeComposite(types *TypeRegistry, raw []byte, expected []oid.Oid) (*CompositeValue, error) {
	fields, err := decodeCompositeFields(types, raw)
	if err != nil {
		return nil, err
	}
	if len(fields) != len(expected) {
		return nil, newError(WrongType, fmt.Errorf("composite has %d fields, expected %d", len(fields), len(expected)))
	}
	for i, f := range fields {
		if f.OID != expected[i] {
			return nil, newError(WrongType, fmt.Errorf("composite field %d has oid %d, expected %d", i, f.OID, expected[i]))
		}
	}
	return &CompositeValue{Fields: fields}, nil
}

func decodeCompositeFields(types *TypeRegistry, raw []byte) ([]CompositeField, error) {
	if len(raw) < 4 {
		return nil, newError(Parse, fmt.Errorf("composite payload too short for a field count"))
	}
	n := int(int32(binary.BigEndian.Uint32(raw)))
	raw = raw[4:]

	fields := make([]CompositeField, 0, n)
	for i := 0; i < n; i++ {
		if len(raw) < 8 {
			return nil, newError(Parse, fmt.Errorf("composite field %d truncated", i))
		}
		fieldOID := oid.Oid(binary.BigEndian.Uint32(raw))
		length := int32(binary.BigEndian.Uint32(raw[4:]))
		raw = raw[8:]

		if length < 0 {
			fields = append(fields, CompositeField{OID: fieldOID, Value: nil})
			continue
		}
		if len(raw) < int(length) {
			return nil, newError(Parse, fmt.Errorf("composite field %d truncated", i))
		}
		fieldRaw := raw[:length]
		raw = raw[length:]

		value, err := types.decodeColumn(FieldDescription{DataTypeOID: uint32(fieldOID)}, fieldRaw)
		if err != nil {
			value = fieldRaw // caller asked for this field's shape; leave raw bytes rather than failing the whole row
		}
		fields = append(fields, CompositeField{OID: fieldOID, Value: value})
	}
	return fields, nil
}

// EncodeComposite mirrors DecodeComposite for Bind parameters: it encodes
// values positionally against shape, producing the same
// (oid, length, bytes) wire framing a composite-typed column expects.
func EncodeComposite(types *TypeRegistry, shape []oid.Oid, values []any) ([]byte, error) {
	if len(values) != len(shape) {
		return nil, newError(WrongType, fmt.Errorf("composite literal has %d values, expected %d", len(values), len(shape)))
	}

	fields := make([]CompositeField, len(values))
	for i, v := range values {
		fields[i] = CompositeField{OID: shape[i], Value: v}
	}
	plan := compositeEncodePlan{types: types}
	return plan.Encode(CompositeValue{Fields: fields}, nil)
}

// compositeCodec is the generic fallback registered for a composite-typed
// OID discovered via resolveUnknownTypes: decode produces a CompositeValue
// without an expected-shape check (DecodeComposite is the checked path),
// encode accepts a CompositeValue whose Fields are already OID-tagged.
type compositeCodec struct{}

func (compositeCodec) FormatSupported(format int16) bool {
	return format == pgtype.BinaryFormatCode
}

func (compositeCodec) PreferredFormat() int16 {
	return pgtype.BinaryFormatCode
}

func (c compositeCodec) PlanEncode(m *pgtype.Map, o uint32, format int16, value any) pgtype.EncodePlan {
	if _, ok := value.(CompositeValue); !ok {
		return nil
	}
	return compositeEncodePlan{types: &TypeRegistry{types: m}}
}

func (c compositeCodec) PlanScan(m *pgtype.Map, o uint32, format int16, target any) pgtype.ScanPlan {
	if _, ok := target.(*CompositeValue); !ok {
		return nil
	}
	return compositeScanPlan{m: m}
}

func (c compositeCodec) DecodeDatabaseSQLValue(m *pgtype.Map, o uint32, format int16, src []byte) (driver.Value, error) {
	return nil, fmt.Errorf("composite values have no database/sql representation")
}

func (c compositeCodec) DecodeValue(m *pgtype.Map, o uint32, format int16, src []byte) (any, error) {
	registry := &TypeRegistry{types: m}
	fields, err := decodeCompositeFields(registry, src)
	if err != nil {
		return nil, err
	}
	return CompositeValue{Fields: fields}, nil
}

type compositeEncodePlan struct {
	types *TypeRegistry
}

func (p compositeEncodePlan) Encode(value any, buf []byte) ([]byte, error) {
	cv := value.(CompositeValue)
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(len(cv.Fields)))
	for _, f := range cv.Fields {
		out = binary.BigEndian.AppendUint32(out, uint32(f.OID))
		if f.Value == nil {
			out = append(out, 0xFF, 0xFF, 0xFF, 0xFF)
			continue
		}
		raw, err := p.types.encodeParam(f.OID, f.Value)
		if err != nil {
			return nil, err
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(raw)))
		out = append(out, raw...)
	}
	return append(buf, out...), nil
}

type compositeScanPlan struct {
	m *pgtype.Map
}

func (p compositeScanPlan) Scan(src []byte, dst any) error {
	target := dst.(*CompositeValue)
	registry := &TypeRegistry{types: p.m}
	fields, err := decodeCompositeFields(registry, src)
	if err != nil {
		return err
	}
	*target = CompositeValue{Fields: fields}
	return nil
}

// enumCodec decodes/encodes an enum OID's binary representation, which
// Postgres transmits as the variant's plain text label.
type enumCodec struct{}

func (enumCodec) FormatSupported(format int16) bool {
	return format == pgtype.BinaryFormatCode || format == pgtype.TextFormatCode
}

func (enumCodec) PreferredFormat() int16 {
	return pgtype.BinaryFormatCode
}

func (c enumCodec) PlanEncode(m *pgtype.Map, o uint32, format int16, value any) pgtype.EncodePlan {
	if _, ok := value.(string); !ok {
		return nil
	}
	return enumEncodePlan{}
}

func (c enumCodec) PlanScan(m *pgtype.Map, o uint32, format int16, target any) pgtype.ScanPlan {
	if _, ok := target.(*string); !ok {
		return nil
	}
	return enumScanPlan{}
}

func (c enumCodec) DecodeDatabaseSQLValue(m *pgtype.Map, o uint32, format int16, src []byte) (driver.Value, error) {
	return string(src), nil
}

func (c enumCodec) DecodeValue(m *pgtype.Map, o uint32, format int16, src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	return string(src), nil
}

type enumEncodePlan struct{}

func (enumEncodePlan) Encode(value any, buf []byte) ([]byte, error) {
	return append(buf, []byte(value.(string))...), nil
}

type enumScanPlan struct{}

func (enumScanPlan) Scan(src []byte, dst any) error {
	*dst.(*string) = string(src)
	return nil
}

// domainCodec forwards encode/decode to a domain type's base type,
// transparently unwrapping the domain the way Postgres itself treats
// domain values as indistinguishable on the wire from their base type.
type domainCodec struct {
	base *pgtype.Type
}

func (d domainCodec) FormatSupported(format int16) bool {
	return d.base.Codec.FormatSupported(format)
}

func (d domainCodec) PreferredFormat() int16 {
	return d.base.Codec.PreferredFormat()
}

func (d domainCodec) PlanEncode(m *pgtype.Map, o uint32, format int16, value any) pgtype.EncodePlan {
	return d.base.Codec.PlanEncode(m, d.base.OID, format, value)
}

func (d domainCodec) PlanScan(m *pgtype.Map, o uint32, format int16, target any) pgtype.ScanPlan {
	return d.base.Codec.PlanScan(m, d.base.OID, format, target)
}

func (d domainCodec) DecodeDatabaseSQLValue(m *pgtype.Map, o uint32, format int16, src []byte) (driver.Value, error) {
	return d.base.Codec.DecodeDatabaseSQLValue(m, d.base.OID, format, src)
}

func (d domainCodec) DecodeValue(m *pgtype.Map, o uint32, format int16, src []byte) (any, error) {
	return d.base.Codec.DecodeValue(m, d.base.OID, format, src)
}

// resolveUnknownTypes looks up any OID in oids that the type registry has
// no codec for, via a single batched pg_type query, and registers a
// generic composite/enum/domain codec for it so later encode/decode calls
// against that OID succeed instead of failing with an "unknown column
// type" error. It is a no-op for an empty or fully-known set.
func (s *Session) resolveUnknownTypes(ctx context.Context, oids []oid.Oid) error {
	seen := make(map[oid.Oid]struct{})
	var missing []oid.Oid
	for _, o := range oids {
		if o == 0 {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		if _, ok := s.types.TypeForOID(o); ok {
			continue
		}
		if _, ok := s.types.discovered[o]; ok {
			continue
		}
		missing = append(missing, o)
	}
	if len(missing) == 0 {
		return nil
	}

	idList := make([]string, len(missing))
	for i, o := range missing {
		idList[i] = strconv.FormatUint(uint64(o), 10)
	}
	query := fmt.Sprintf("SELECT oid, typname, typtype, typbasetype FROM pg_type WHERE oid IN (%s)", strings.Join(idList, ", "))

	results, err := s.simpleQueryLocked(query)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	for _, row := range results[0].Rows {
		if len(row) != 4 {
			continue
		}
		n, err := strconv.ParseUint(row[0], 10, 32)
		if err != nil {
			continue
		}
		typOID := oid.Oid(n)
		name := row[1]
		kind := typeKind(0)
		if len(row[2]) == 1 {
			kind = typeKind(row[2][0])
		}
		var baseOID oid.Oid
		if b, err := strconv.ParseUint(row[3], 10, 32); err == nil {
			baseOID = oid.Oid(b)
		}

		s.types.discovered[typOID] = discoveredType{name: name, kind: kind, baseOID: baseOID}

		switch kind {
		case kindComposite:
			s.types.types.RegisterType(&pgtype.Type{Name: name, OID: uint32(typOID), Codec: compositeCodec{}})
		case kindEnum:
			s.types.types.RegisterType(&pgtype.Type{Name: name, OID: uint32(typOID), Codec: enumCodec{}})
		case kindDomain:
			if baseOID != 0 {
				if baseType, ok := s.types.types.TypeForOID(uint32(baseOID)); ok {
					s.types.types.RegisterType(&pgtype.Type{Name: name, OID: uint32(typOID), Codec: domainCodec{base: baseType}})
				}
			}
		}
	}
	return nil
}
