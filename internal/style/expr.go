// Package style builds data-driven map style expressions.
//
// Expressions form a closed set of variants (literals, property accessors,
// interpolate, match and filters). Each variant marshals to the Mapbox GL
// style-spec array literal, so the JSON form is the wire format handed to the
// rendering engine. Interpolate and Match can only be built through their
// constructors, which reject malformed input.
package style

import (
	"encoding/json"
	"fmt"
)

// Expr is a style expression. The set of implementations is closed.
type Expr interface {
	json.Marshaler
	expr()
}

// ExprError reports a malformed expression.
type ExprError struct {
	Op     string
	Reason string
}

func (e *ExprError) Error() string {
	return fmt.Sprintf("style: invalid %s expression: %s", e.Op, e.Reason)
}

// Literal is a constant string, number or boolean.
type Literal struct {
	value any
}

// String returns a string literal.
func String(s string) Literal { return Literal{value: s} }

// Number returns a numeric literal.
func Number(f float64) Literal { return Literal{value: f} }

// Bool returns a boolean literal.
func Bool(b bool) Literal { return Literal{value: b} }

// Value returns the underlying constant.
func (l Literal) Value() any { return l.value }

func (Literal) expr() {}

func (l Literal) MarshalJSON() ([]byte, error) { return json.Marshal(l.value) }

// Get reads a feature property: ["get", name].
type Get struct {
	Property string
}

func (Get) expr() {}

func (g Get) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{"get", g.Property})
}

// ToNumber converts its input: ["to-number", input].
type ToNumber struct {
	Input Expr
}

func (ToNumber) expr() {}

func (t ToNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{"to-number", t.Input})
}

// ToString converts its input: ["to-string", input].
type ToString struct {
	Input Expr
}

func (ToString) expr() {}

func (t ToString) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{"to-string", t.Input})
}

// Zoom is the current map zoom: ["zoom"].
type Zoom struct{}

func (Zoom) expr() {}

func (Zoom) MarshalJSON() ([]byte, error) { return []byte(`["zoom"]`), nil }

// HeatmapDensity is the kernel density of a heatmap pixel: ["heatmap-density"].
type HeatmapDensity struct{}

func (HeatmapDensity) expr() {}

func (HeatmapDensity) MarshalJSON() ([]byte, error) { return []byte(`["heatmap-density"]`), nil }

// Curve is the interpolation type.
type Curve struct {
	base float64
}

// Linear interpolation: ["linear"].
func Linear() Curve { return Curve{} }

// Exponential interpolation: ["exponential", base].
func Exponential(base float64) Curve { return Curve{base: base} }

func (c Curve) MarshalJSON() ([]byte, error) {
	if c.base == 0 {
		return []byte(`["linear"]`), nil
	}
	return json.Marshal([]any{"exponential", c.base})
}

// Stop is one (input, output) pair of an interpolation.
type Stop struct {
	Input  float64
	Output Expr
}

// Interpolate is a continuous ramp:
// ["interpolate", curve, input, in1, out1, in2, out2, ...].
type Interpolate struct {
	curve Curve
	input Expr
	stops []Stop
}

// NewInterpolate validates that there is at least one stop and that stop
// inputs are strictly ascending. Stops are kept in the given order.
func NewInterpolate(curve Curve, input Expr, stops ...Stop) (Interpolate, error) {
	if input == nil {
		return Interpolate{}, &ExprError{Op: "interpolate", Reason: "missing input"}
	}
	if len(stops) == 0 {
		return Interpolate{}, &ExprError{Op: "interpolate", Reason: "no stops"}
	}
	for i, s := range stops {
		if s.Output == nil {
			return Interpolate{}, &ExprError{Op: "interpolate", Reason: fmt.Sprintf("stop %d has no output", i)}
		}
		if i > 0 && s.Input <= stops[i-1].Input {
			return Interpolate{}, &ExprError{
				Op:     "interpolate",
				Reason: fmt.Sprintf("stop %d input %g not above %g", i, s.Input, stops[i-1].Input),
			}
		}
	}
	out := make([]Stop, len(stops))
	copy(out, stops)
	return Interpolate{curve: curve, input: input, stops: out}, nil
}

// Stops returns a copy of the stops.
func (i Interpolate) Stops() []Stop {
	out := make([]Stop, len(i.stops))
	copy(out, i.stops)
	return out
}

func (Interpolate) expr() {}

func (i Interpolate) MarshalJSON() ([]byte, error) {
	arr := make([]any, 0, 3+2*len(i.stops))
	arr = append(arr, "interpolate", i.curve, i.input)
	for _, s := range i.stops {
		arr = append(arr, s.Input, s.Output)
	}
	return json.Marshal(arr)
}

// Case is one branch of a match expression.
type Case struct {
	Label  string
	Output Expr
}

// Match is an exact-match lookup:
// ["match", input, label1, out1, ..., default].
type Match struct {
	input    Expr
	cases    []Case
	fallback Expr
}

// NewMatch validates that there is at least one case, labels are unique and
// a default output is present.
func NewMatch(input Expr, fallback Expr, cases ...Case) (Match, error) {
	if input == nil {
		return Match{}, &ExprError{Op: "match", Reason: "missing input"}
	}
	if fallback == nil {
		return Match{}, &ExprError{Op: "match", Reason: "missing default"}
	}
	if len(cases) == 0 {
		return Match{}, &ExprError{Op: "match", Reason: "no cases"}
	}
	seen := make(map[string]struct{}, len(cases))
	for i, c := range cases {
		if c.Output == nil {
			return Match{}, &ExprError{Op: "match", Reason: fmt.Sprintf("case %d has no output", i)}
		}
		if _, dup := seen[c.Label]; dup {
			return Match{}, &ExprError{Op: "match", Reason: fmt.Sprintf("duplicate label %q", c.Label)}
		}
		seen[c.Label] = struct{}{}
	}
	out := make([]Case, len(cases))
	copy(out, cases)
	return Match{input: input, cases: out, fallback: fallback}, nil
}

// Cases returns a copy of the cases.
func (m Match) Cases() []Case {
	out := make([]Case, len(m.cases))
	copy(out, m.cases)
	return out
}

// Default returns the output for unmatched input.
func (m Match) Default() Expr { return m.fallback }

func (Match) expr() {}

func (m Match) MarshalJSON() ([]byte, error) {
	arr := make([]any, 0, 3+2*len(m.cases))
	arr = append(arr, "match", m.input)
	for _, c := range m.cases {
		arr = append(arr, c.Label, c.Output)
	}
	arr = append(arr, m.fallback)
	return json.Marshal(arr)
}

// Eq is a legacy property filter: ["==", property, value].
type Eq struct {
	Property string
	Value    any
}

func (Eq) expr() {}

func (e Eq) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{"==", e.Property, e.Value})
}

// All matches when every filter matches: ["all", f1, f2, ...].
type All []Expr

func (All) expr() {}

func (a All) MarshalJSON() ([]byte, error) {
	arr := make([]any, 0, len(a)+1)
	arr = append(arr, "all")
	for _, e := range a {
		arr = append(arr, e)
	}
	return json.Marshal(arr)
}

// Any matches when some filter matches: ["any", f1, f2, ...].
// An empty Any matches nothing.
type Any []Expr

func (Any) expr() {}

func (a Any) MarshalJSON() ([]byte, error) {
	arr := make([]any, 0, len(a)+1)
	arr = append(arr, "any")
	for _, e := range a {
		arr = append(arr, e)
	}
	return json.Marshal(arr)
}
