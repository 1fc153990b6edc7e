package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the concrete type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a heterogeneous attribute value as delivered by the hub:
// string, number, boolean or null. Nested structures (lists, maps) are
// flattened to their compact JSON text and held as strings.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the value rendered for display. Numbers drop a trailing
// ".0", booleans render lowercase, null renders as "none".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return "none"
	}
}

// Float returns the value as a float64. Strings are parsed; booleans and
// null do not coerce.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(v.str, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Truthy reports whether the value counts as true: non-empty strings,
// non-zero numbers and true booleans.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.str != ""
	case KindNumber:
		return v.num != 0
	case KindBool:
		return v.b
	default:
		return false
	}
}

// Equal compares two values. Numbers and numeric strings compare
// numerically, everything else by display text.
func (v Value) Equal(o Value) bool {
	if vf, ok := v.Float(); ok {
		if of, ok := o.Float(); ok {
			return vf == of
		}
	}
	return v.kind == o.kind && v.Text() == o.Text()
}

// UnmarshalJSON decodes any JSON scalar into the variant. Arrays and
// objects keep their raw JSON text as a string value.
func (v *Value) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		*v = Null()
		return nil
	}
	switch data[0] {
	case 'n':
		*v = Null()
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	case '{', '[':
		*v = String(string(data))
		return nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("attribute value: %w", err)
		}
		*v = Number(f)
		return nil
	}
}

// MarshalJSON encodes the variant back to its JSON scalar form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}
