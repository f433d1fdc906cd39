package pgwire

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq/oid"
)

// encodeParam turns a caller-supplied Go value into its binary wire
// representation for parameter oid o. A nil value encodes to SQL NULL (a
// nil []byte, distinguished from an empty parameter by Bind's -1 length
// convention).
func (r *TypeRegistry) encodeParam(o oid.Oid, value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}

	typ, ok := r.TypeForOID(o)
	if !ok {
		return nil, &Error{Kind: ToSql, Cause: fmt.Errorf("unknown parameter type oid %d", o)}
	}

	plan := typ.Codec.PlanEncode(r.types, typ.OID, pgtype.BinaryFormatCode, value)
	if plan == nil {
		return nil, newError(WrongType, fmt.Errorf("cannot encode %T as %s", value, typ.Name))
	}

	buf, err := plan.Encode(value, nil)
	if err != nil {
		return nil, &Error{Kind: ToSql, Cause: err}
	}
	return buf, nil
}

// decodeColumn turns a raw binary column value into a Go value for field f.
// A nil raw slice decodes to a nil any (SQL NULL).
func (r *TypeRegistry) decodeColumn(f FieldDescription, raw []byte) (any, error) {
	if raw == nil {
		return nil, nil
	}

	typ, ok := r.TypeForOID(oid.Oid(f.DataTypeOID))
	if !ok {
		return nil, &Error{Kind: FromSql, Cause: fmt.Errorf("unknown column type %s for %q", r.nameForOID(oid.Oid(f.DataTypeOID)), f.Name)}
	}

	value, err := typ.Codec.DecodeValue(r.types, typ.OID, pgtype.BinaryFormatCode, raw)
	if err != nil {
		return nil, &Error{Kind: FromSql, Cause: err}
	}
	return value, nil
}

// FieldDescription mirrors protocol.FieldDescription in the public surface,
// so callers describing a statement's result columns never need to import
// pkg/protocol directly.
type FieldDescription struct {
	Name         string
	DataTypeOID  uint32
	DataTypeSize int16
	TypeModifier int32
}
