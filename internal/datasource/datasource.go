// Package datasource manages geometry sources shared by several map layers.
//
// A datasource is Absent until the first holder ensures it and goes back to
// Absent when the last holder releases it. The holder set is the single
// source of truth for that lifecycle: a non-empty set implies the engine
// source exists.
package datasource

import (
	"errors"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostyle/internal/limits"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/rolemap"
	"github.com/joeblew999/geostyle/internal/settings"
)

// ErrSourceAbsent is the panic value of an update on a source that is not on
// the map. It is a programming error.
var ErrSourceAbsent = errors.New("datasource: update on absent source")

// Kind is the datasource variant.
type Kind string

const (
	KindPoint  Kind = "point"
	KindRaster Kind = "raster"
)

// Datasource is one logical source on the map.
type Datasource interface {
	// ID is the engine source id.
	ID() string
	Kind() Kind
	// Ensure registers holder and creates the engine source when absent.
	Ensure(m mapengine.Map, holder string, s settings.Settings) error
	// Release unregisters holder and removes the engine source once no
	// holder is left.
	Release(m mapengine.Map, holder string) error
	// Update recomputes cached limits and pushes features to the engine.
	Update(m mapengine.Map, features []*geojson.Feature, roles rolemap.RoleMap)
	ColorLimits(index int) limits.Limits
	SizeLimits(index int) limits.Limits
	// Bounds is the extent of the last update; false when there is none.
	Bounds() (orb.Bound, bool)
	Active(m mapengine.Map) bool
	Holders() []string
}

// holders is an owned reference set keyed by dependent id.
type holders map[string]struct{}

// add reports whether id was not yet registered.
func (h holders) add(id string) bool {
	if _, ok := h[id]; ok {
		return false
	}
	h[id] = struct{}{}
	return true
}

// remove reports whether the set became empty by removing id.
func (h holders) remove(id string) bool {
	if _, ok := h[id]; !ok {
		return false
	}
	delete(h, id)
	return len(h) == 0
}

func (h holders) sorted() []string {
	out := make([]string, 0, len(h))
	for id := range h {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func limitsAt(ls []limits.Limits, index int) limits.Limits {
	if index >= 0 && index < len(ls) {
		return ls[index]
	}
	return limits.Zero()
}
