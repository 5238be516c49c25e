package datasource

import (
	"fmt"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostyle/internal/limits"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/rolemap"
	"github.com/joeblew999/geostyle/internal/settings"
)

// PointSourceID is the GeoJSON source shared by circle and heatmap layers.
const PointSourceID = "data"

const sourceBuffer = 10

// minExtent gives zero-area features a rectangle the R-tree accepts
// (about 11 m at the equator).
const minExtent = 0.0001

// Point is the GeoJSON point datasource.
type Point struct {
	holders     holders
	colorLimits []limits.Limits
	sizeLimits  []limits.Limits
	bounds      orb.Bound
	hasBounds   bool
	features    []*geojson.Feature
	index       *rtreego.Rtree
}

// NewPoint returns an absent point datasource.
func NewPoint() *Point {
	return &Point{holders: make(holders)}
}

func (p *Point) ID() string { return PointSourceID }
func (p *Point) Kind() Kind { return KindPoint }

func (p *Point) Ensure(m mapengine.Map, holder string, _ settings.Settings) error {
	added := p.holders.add(holder)
	if _, ok := m.GetSource(PointSourceID); ok {
		return nil
	}
	err := m.AddSource(PointSourceID, mapengine.SourceDescriptor{
		Type:   mapengine.SourceGeoJSON,
		Data:   p.collection(),
		Buffer: sourceBuffer,
	})
	if err != nil {
		if added {
			p.holders.remove(holder)
		}
		return fmt.Errorf("add source %q: %w", PointSourceID, err)
	}
	return nil
}

func (p *Point) Release(m mapengine.Map, holder string) error {
	if !p.holders.remove(holder) {
		return nil
	}
	if _, ok := m.GetSource(PointSourceID); !ok {
		return nil
	}
	if err := m.RemoveSource(PointSourceID); err != nil {
		return fmt.Errorf("remove source %q: %w", PointSourceID, err)
	}
	return nil
}

// Update recomputes one Limits per bound color and size field, replaces the
// source data and rebuilds the spatial index. It panics with ErrSourceAbsent
// when the source is not on the map.
func (p *Point) Update(m mapengine.Map, features []*geojson.Feature, roles rolemap.RoleMap) {
	src, ok := m.GetSource(PointSourceID)
	if !ok {
		panic(fmt.Errorf("%w: %q", ErrSourceAbsent, PointSourceID))
	}

	p.features = features
	records := limits.Features(features)
	p.colorLimits = fieldLimits(records, roles.GetAll(rolemap.Color))
	p.sizeLimits = fieldLimits(records, roles.GetAll(rolemap.Size))

	if err := src.SetData(p.collection()); err != nil {
		panic(fmt.Errorf("%w: %v", ErrSourceAbsent, err))
	}
	p.bounds, p.hasBounds = boundOf(features)
	p.index = buildIndex(features)
}

func fieldLimits(records limits.Records, fields []rolemap.Field) []limits.Limits {
	out := make([]limits.Limits, len(fields))
	for i, f := range fields {
		out[i] = limits.Compute(records, f.DisplayName)
	}
	return out
}

func (p *Point) ColorLimits(index int) limits.Limits { return limitsAt(p.colorLimits, index) }
func (p *Point) SizeLimits(index int) limits.Limits  { return limitsAt(p.sizeLimits, index) }

func (p *Point) Bounds() (orb.Bound, bool) { return p.bounds, p.hasBounds }

func (p *Point) Active(m mapengine.Map) bool {
	_, ok := m.GetSource(PointSourceID)
	return ok
}

func (p *Point) Holders() []string { return p.holders.sorted() }

// Features returns the features of the last update.
func (p *Point) Features() []*geojson.Feature { return p.features }

// FeaturesIn returns the features whose geometry intersects b, in update
// order.
func (p *Point) FeaturesIn(b orb.Bound) []*geojson.Feature {
	if p.index == nil || p.index.Size() == 0 {
		return nil
	}
	hits := p.index.SearchIntersect(rectOf(b))
	seen := make(map[int]struct{}, len(hits))
	for _, h := range hits {
		e := h.(*indexedFeature)
		if e.bound.Intersects(b) {
			seen[e.pos] = struct{}{}
		}
	}
	out := make([]*geojson.Feature, 0, len(seen))
	for i, f := range p.features {
		if _, ok := seen[i]; ok {
			out = append(out, f)
		}
	}
	return out
}

func (p *Point) collection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range p.features {
		if f != nil {
			fc.Append(f)
		}
	}
	return fc
}

func boundOf(features []*geojson.Feature) (orb.Bound, bool) {
	var b orb.Bound
	found := false
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if !found {
			b = f.Geometry.Bound()
			found = true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b, found
}

type indexedFeature struct {
	pos   int
	bound orb.Bound
}

func (e *indexedFeature) Bounds() rtreego.Rect { return rectOf(e.bound) }

func rectOf(b orb.Bound) rtreego.Rect {
	lonLength := b.Max[0] - b.Min[0]
	latLength := b.Max[1] - b.Min[1]
	if lonLength < minExtent {
		lonLength = minExtent
	}
	if latLength < minExtent {
		latLength = minExtent
	}
	rect, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{lonLength, latLength})
	return rect
}

func buildIndex(features []*geojson.Feature) *rtreego.Rtree {
	tree := rtreego.NewTree(2, 25, 50)
	for i, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		tree.Insert(&indexedFeature{pos: i, bound: f.Geometry.Bound()})
	}
	return tree
}
