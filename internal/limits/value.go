// Package limits extracts value domains (min, max, distinct values) from
// feature collections and tabular rows.
package limits

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

type kind uint8

const (
	kindNone kind = iota
	kindNumber
	kindString
)

// Value is a scalar taken from a feature property or a row column. It is
// either a number or a string, and is comparable so it can key a set.
type Value struct {
	kind kind
	num  float64
	str  string
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: kindNumber, num: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: kindString, str: s} }

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool { return v.kind == kindNumber }

// IsZero reports whether v is the zero Value (neither number nor string).
func (v Value) IsZero() bool { return v.kind == kindNone }

// Float returns the numeric value and whether v is a number.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == kindNumber
}

// String formats the value the way it is matched in a style expression.
func (v Value) String() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindString:
		return v.str
	default:
		return ""
	}
}

// Interface returns the value as a plain float64 or string.
func (v Value) Interface() any {
	switch v.kind {
	case kindNumber:
		return v.num
	case kindString:
		return v.str
	default:
		return nil
	}
}

// MarshalJSON writes the bare number or string.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts a JSON number or string.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	val, ok := ValueOf(raw)
	if !ok {
		return fmt.Errorf("limits: unsupported value %s", string(data))
	}
	*v = val
	return nil
}

// ValueOf converts a decoded property into a Value. Nil and unsupported types
// (maps, slices, bools) report false.
func ValueOf(raw any) (Value, bool) {
	switch n := raw.(type) {
	case nil:
		return Value{}, false
	case float64:
		return Number(n), true
	case float32:
		return Number(float64(n)), true
	case int:
		return Number(float64(n)), true
	case int8:
		return Number(float64(n)), true
	case int16:
		return Number(float64(n)), true
	case int32:
		return Number(float64(n)), true
	case int64:
		return Number(float64(n)), true
	case uint:
		return Number(float64(n)), true
	case uint8:
		return Number(float64(n)), true
	case uint16:
		return Number(float64(n)), true
	case uint32:
		return Number(float64(n)), true
	case uint64:
		return Number(float64(n)), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return String(n.String()), true
		}
		return Number(f), true
	case *big.Int:
		if n == nil {
			return Value{}, false
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return Number(f), true
	case *big.Float:
		if n == nil {
			return Value{}, false
		}
		f, _ := n.Float64()
		return Number(f), true
	case interface{ Float64() float64 }:
		return Number(n.Float64()), true
	case string:
		return String(n), true
	case fmt.Stringer:
		return String(n.String()), true
	default:
		return Value{}, false
	}
}
