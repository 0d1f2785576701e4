// Package resp implements the Redis Serialization Protocol: the Value
// tagged union, its wire encoding/decoding, and the non-standard snapshot
// frame used once per full resync.
package resp

import "fmt"

// Type identifies which variant of Value is populated.
type Type int

const (
	TypeSimpleString Type = iota
	TypeError
	TypeBulkString
	TypeInteger
	TypeArray
	TypeSnapshot
)

// Value is the tagged union carried on the wire. Only one of the fields
// below is meaningful, selected by Type.
type Value struct {
	Type Type

	Str   string  // SimpleString / Error text
	Bulk  *string // BulkString payload; nil encodes the null bulk
	Int   int64
	Array []Value // elements; a nil or empty slice with IsNil false is an empty array
	IsNil bool    // true for null bulk / null array

	Snapshot []byte // raw bytes for TypeSnapshot; never appears inside Array
}

func SimpleString(s string) Value { return Value{Type: TypeSimpleString, Str: s} }
func Err(s string) Value          { return Value{Type: TypeError, Str: s} }
func Integer(i int64) Value       { return Value{Type: TypeInteger, Int: i} }
func NullBulk() Value             { return Value{Type: TypeBulkString, IsNil: true} }
func NullArray() Value            { return Value{Type: TypeArray, IsNil: true} }

func BulkString(s string) Value {
	return Value{Type: TypeBulkString, Bulk: &s}
}

func Array(items ...Value) Value {
	return Value{Type: TypeArray, Array: items}
}

func Snapshot(b []byte) Value {
	return Value{Type: TypeSnapshot, Snapshot: b}
}

// Errorf builds an Error value with a formatted message.
func Errorf(format string, args ...any) Value {
	return Err(fmt.Sprintf(format, args...))
}

// AsString returns the textual payload of a Value for commands that need to
// coerce a stored value to text (e.g. GET on an Integer-typed key). It is
// only meaningful for SimpleString, Error, BulkString, and Integer.
func (v Value) AsString() (string, bool) {
	switch v.Type {
	case TypeSimpleString, TypeError:
		return v.Str, true
	case TypeBulkString:
		if v.IsNil || v.Bulk == nil {
			return "", false
		}
		return *v.Bulk, true
	case TypeInteger:
		return fmt.Sprintf("%d", v.Int), true
	default:
		return "", false
	}
}

// Equal reports whether two Values carry the same variant and payload.
// SnapshotBlob values are never equal to anything, including each other,
// per spec: hashing/equality is undefined for that variant.
func (v Value) Equal(o Value) bool {
	if v.Type == TypeSnapshot || o.Type == TypeSnapshot {
		return false
	}
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeSimpleString, TypeError:
		return v.Str == o.Str
	case TypeInteger:
		return v.Int == o.Int
	case TypeBulkString:
		if v.IsNil != o.IsNil {
			return false
		}
		if v.IsNil {
			return true
		}
		return *v.Bulk == *o.Bulk
	case TypeArray:
		if v.IsNil != o.IsNil {
			return false
		}
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	}
	return false
}
