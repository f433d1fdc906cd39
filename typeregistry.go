package pgwire

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq/oid"
)

// TypeRegistry wraps a *pgtype.Map with the client's OID bookkeeping: an
// unknown OID (a domain, enum, or composite type the built-in map has no
// entry for) is resolved once per session through a pg_type lookup and
// memoized under its discovered name.
type TypeRegistry struct {
	types      *pgtype.Map
	names      map[oid.Oid]string
	discovered map[oid.Oid]discoveredType
}

// typeKind mirrors pg_type.typtype for the handful of kinds
// resolveUnknownTypes needs to distinguish.
type typeKind byte

const (
	kindBase      typeKind = 'b'
	kindComposite typeKind = 'c'
	kindDomain    typeKind = 'd'
	kindEnum      typeKind = 'e'
)

// discoveredType is what resolveUnknownTypes memoizes about an OID it had
// to look up in pg_type.
type discoveredType struct {
	name    string
	kind    typeKind
	baseOID oid.Oid
}

func newTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:      pgtype.NewMap(),
		names:      make(map[oid.Oid]string),
		discovered: make(map[oid.Oid]discoveredType),
	}
}

// TypeForOID returns the codec registered for o, or false if the map has no
// built-in entry and no memoized lookup has run yet — callers fall back to
// resolveUnknownTypes before giving up.
func (r *TypeRegistry) TypeForOID(o oid.Oid) (*pgtype.Type, bool) {
	return r.types.TypeForOID(uint32(o))
}

// registerName memoizes the pg_type.typname discovered for an unknown OID,
// so a later WrongType error (if the registry still cannot decode the
// value) can report a human name instead of a bare number.
func (r *TypeRegistry) registerName(o oid.Oid, name string) {
	r.names[o] = name
}

// nameForOID returns the best available label for o: the memoized pg_type
// name, the built-in codec name, or a decimal fallback.
func (r *TypeRegistry) nameForOID(o oid.Oid) string {
	if name, ok := r.names[o]; ok {
		return name
	}
	if t, ok := r.types.TypeForOID(uint32(o)); ok {
		return t.Name
	}
	return fmt.Sprintf("oid(%d)", o)
}
