package trinoclient

import "encoding/json"

// Column represents metadata about a column in a query result.
type Column struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the Trino data type as a string, e.g. "varchar(10)" or "decimal(12,2)"
	Type string `json:"type"`

	// TypeSignature contains the structured form of Type
	TypeSignature ClientTypeSignature `json:"typeSignature"`
}

// ClientTypeSignature contains detailed information about a Trino data type.
type ClientTypeSignature struct {
	// RawType is the base type name (e.g., "varchar", "bigint", "array")
	RawType string `json:"rawType"`

	// Arguments holds type parameters such as length, precision or element types.
	Arguments []TypeArgument `json:"arguments,omitempty"`
}

// TypeArgument is a single parameter of a type signature. Value is kept raw
// because its shape depends on Kind (a number for LONG, a nested signature for TYPE).
type TypeArgument struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}
