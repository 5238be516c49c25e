// Package classify computes class breaks for graduated color and size scales.
package classify

import (
	"fmt"
	"strings"
)

// Method selects how class breaks are placed.
type Method int

const (
	Quantile Method = iota
	Equidistant
	Logarithmic
	NaturalBreaks
)

var methodNames = map[Method]string{
	Quantile:      "quantile",
	Equidistant:   "equidistant",
	Logarithmic:   "logarithmic",
	NaturalBreaks: "naturalbreaks",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod accepts the method names, case-insensitively, plus "jenks" and
// "natural-breaks" for NaturalBreaks.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "quantile", "q":
		return Quantile, nil
	case "equidistant", "equal", "e":
		return Equidistant, nil
	case "logarithmic", "log", "l":
		return Logarithmic, nil
	case "naturalbreaks", "natural-breaks", "natural_breaks", "jenks", "k":
		return NaturalBreaks, nil
	}
	return Quantile, fmt.Errorf("unknown classification method %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	name, ok := methodNames[m]
	if !ok {
		return nil, fmt.Errorf("unknown classification method %d", int(m))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
