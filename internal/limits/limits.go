package limits

import (
	"github.com/paulmach/orb/geojson"
)

// Limits is the value domain of one field.
// Min and Max are nil when no numeric value was seen.
type Limits struct {
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Values []Value  `json:"values"`
}

// Zero returns the empty sentinel {min: null, max: null, values: []}.
func Zero() Limits {
	return Limits{Values: []Value{}}
}

// Degenerate reports whether the numeric domain is unusable for interpolation.
func (l Limits) Degenerate() bool {
	return l.Min == nil || l.Max == nil || *l.Min == *l.Max
}

// Numbers returns the numeric distinct values in first-occurrence order.
func (l Limits) Numbers() []float64 {
	out := make([]float64, 0, len(l.Values))
	for _, v := range l.Values {
		if f, ok := v.Float(); ok {
			out = append(out, f)
		}
	}
	return out
}

// Records is a read-only view over features or rows.
type Records interface {
	Len() int
	// Value returns the raw value of field in record i and whether it is set.
	Value(i int, field string) (any, bool)
}

// Features reads values from GeoJSON feature properties.
type Features []*geojson.Feature

func (f Features) Len() int { return len(f) }

func (f Features) Value(i int, field string) (any, bool) {
	if f[i] == nil || f[i].Properties == nil {
		return nil, false
	}
	v, ok := f[i].Properties[field]
	return v, ok
}

// Rows reads values directly from tabular records.
type Rows []map[string]any

func (r Rows) Len() int { return len(r) }

func (r Rows) Value(i int, field string) (any, bool) {
	v, ok := r[i][field]
	return v, ok
}

// RecordsOf wraps a supported collection. Feature collections and feature
// slices carry geometry; row slices are plain records.
func RecordsOf(data any) Records {
	switch d := data.(type) {
	case Records:
		return d
	case *geojson.FeatureCollection:
		if d == nil {
			return Features(nil)
		}
		return Features(d.Features)
	case []*geojson.Feature:
		return Features(d)
	case []map[string]any:
		return Rows(d)
	default:
		return Rows(nil)
	}
}

// Compute scans records for field and returns its Limits.
//
// Missing and null values are skipped; the number 0 is a value like any
// other. When min equals max the minimum is decremented by one so the
// domain stays usable for interpolation.
func Compute(records Records, field string) Limits {
	result := Zero()
	if field == "" || records == nil || records.Len() == 0 {
		return result
	}

	var lo, hi float64
	var seen bool
	distinct := make(map[Value]struct{})

	for i := 0; i < records.Len(); i++ {
		raw, ok := records.Value(i, field)
		if !ok || raw == nil {
			continue
		}
		v, ok := ValueOf(raw)
		if !ok {
			continue
		}
		if f, isNum := v.Float(); isNum {
			if !seen || f < lo {
				lo = f
			}
			if !seen || f > hi {
				hi = f
			}
			seen = true
		}
		if _, dup := distinct[v]; !dup {
			distinct[v] = struct{}{}
			result.Values = append(result.Values, v)
		}
	}

	if seen {
		if lo == hi {
			lo--
		}
		result.Min = &lo
		result.Max = &hi
	}
	return result
}
