package trino

import (
	"fmt"
	"strings"

	"github.com/majkshkurti/connector-x/trinoclient"
	"github.com/majkshkurti/connector-x/utils"
)

// Kind is a scalar type a Parser can produce.
type Kind uint8

const (
	Invalid Kind = iota
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	Bool
	String
	Date
	Time
	Timestamp
)

// Kinds lists every valid Kind in declaration order.
var Kinds = []Kind{Int8, Int16, Int32, Int64, Float32, Float64, Bool, String, Date, Time, Timestamp}

var kindNames = utils.MustBiMap(map[Kind]string{
	Int8:      "Int8",
	Int16:     "Int16",
	Int32:     "Int32",
	Int64:     "Int64",
	Float32:   "Float32",
	Float64:   "Float64",
	Bool:      "Bool",
	String:    "String",
	Date:      "Date",
	Time:      "Time",
	Timestamp: "Timestamp",
})

// remoteNames maps each Kind to its canonical Trino type name.
var remoteNames = utils.MustBiMap(map[Kind]string{
	Int8:      "tinyint",
	Int16:     "smallint",
	Int32:     "integer",
	Int64:     "bigint",
	Float32:   "real",
	Float64:   "double",
	Bool:      "boolean",
	String:    "varchar",
	Date:      "date",
	Time:      "time",
	Timestamp: "timestamp",
})

// Trino types that share a Kind with a canonical name.
var remoteAliases = map[string]Kind{
	"decimal": Float64,
	"char":    String,
}

func (k Kind) String() string {
	if name, ok := kindNames.Lookup(k); ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// RemoteName returns the Trino type name a Kind is read from, or "" for Invalid.
func (k Kind) RemoteName() string {
	return remoteNames.DirectLookup(k)
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, error) {
	if k, ok := kindNames.RLookup(name); ok {
		return k, nil
	}
	return Invalid, fmt.Errorf("trino: unknown kind %q", name)
}

// Type is a Kind together with its nullability.
type Type struct {
	Kind     Kind
	Nullable bool
}

func (t Type) String() string {
	if t.Nullable {
		return "Nullable(" + t.Kind.String() + ")"
	}
	return t.Kind.String()
}

// TypeFromRemote maps a Trino type name such as "varchar(10)" or
// "timestamp(3)" to a nullable Type.
func TypeFromRemote(name string) (Type, error) {
	base := normalizeType(name)
	if k, ok := remoteNames.RLookup(base); ok {
		return Type{Kind: k, Nullable: true}, nil
	}
	if k, ok := remoteAliases[base]; ok {
		return Type{Kind: k, Nullable: true}, nil
	}
	return Type{}, &UnsupportedTypeError{RemoteType: name}
}

// TypeFromColumn maps a result column, preferring its type signature.
func TypeFromColumn(col trinoclient.Column) (Type, error) {
	name := col.TypeSignature.RawType
	if name == "" {
		name = col.Type
	}
	t, err := TypeFromRemote(name)
	if err != nil {
		return Type{}, &UnsupportedTypeError{RemoteType: col.Type}
	}
	return t, nil
}

// normalizeType lowercases a type name and drops every parenthesized
// parameter list, so "timestamp(3) with time zone" stays distinct from
// "timestamp".
func normalizeType(t string) string {
	var b strings.Builder
	depth := 0
	for _, r := range strings.ToLower(t) {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
