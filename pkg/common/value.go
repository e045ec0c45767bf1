package common

import (
	"fmt"
	"time"
)

// ValueType identifies the runtime type of an attribute value.
type ValueType string

const (
	ValueTypeString    ValueType = "string"
	ValueTypeNumber    ValueType = "number"
	ValueTypeBoolean   ValueType = "boolean"
	ValueTypeTimestamp ValueType = "timestamp"
)

// AttributeValue is a tagged union over the value types an attribute can
// hold. The tag is recorded alongside the value so it round-trips through
// storage without losing type information.
//
// Values are created through the typed constructors; the zero value is a
// string value of "".
type AttributeValue struct {
	Type ValueType `json:"type"`

	Str  string    `json:"str,omitempty"`
	Num  float64   `json:"num,omitempty"`
	Bool bool      `json:"bool,omitempty"`
	Time time.Time `json:"time,omitempty"`
}

// StringValue creates an AttributeValue holding a string.
func StringValue(s string) AttributeValue {
	return AttributeValue{Type: ValueTypeString, Str: s}
}

// NumberValue creates an AttributeValue holding a number.
func NumberValue(n float64) AttributeValue {
	return AttributeValue{Type: ValueTypeNumber, Num: n}
}

// BoolValue creates an AttributeValue holding a boolean.
func BoolValue(b bool) AttributeValue {
	return AttributeValue{Type: ValueTypeBoolean, Bool: b}
}

// TimestampValue creates an AttributeValue holding a timestamp.
func TimestampValue(t time.Time) AttributeValue {
	return AttributeValue{Type: ValueTypeTimestamp, Time: t}
}

// Interface returns the value as an untyped Go value, dispatching on the tag.
func (v AttributeValue) Interface() any {
	switch v.Type {
	case ValueTypeNumber:
		return v.Num
	case ValueTypeBoolean:
		return v.Bool
	case ValueTypeTimestamp:
		return v.Time
	default:
		return v.Str
	}
}

// Text renders the value as a string for display and raw storage.
func (v AttributeValue) Text() string {
	switch v.Type {
	case ValueTypeNumber:
		return fmt.Sprintf("%g", v.Num)
	case ValueTypeBoolean:
		return fmt.Sprintf("%t", v.Bool)
	case ValueTypeTimestamp:
		return v.Time.Format(time.RFC3339)
	default:
		return v.Str
	}
}

// Equal reports whether two values have the same tag and payload.
func (v AttributeValue) Equal(other AttributeValue) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValueTypeNumber:
		return v.Num == other.Num
	case ValueTypeBoolean:
		return v.Bool == other.Bool
	case ValueTypeTimestamp:
		return v.Time.Equal(other.Time)
	default:
		return v.Str == other.Str
	}
}
