package mapengine

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/joeblew999/geostyle/internal/style"
)

// Operation names recorded by Memory.
const (
	OpAddSource         = "addSource"
	OpRemoveSource      = "removeSource"
	OpSetData           = "setData"
	OpAddLayer          = "addLayer"
	OpRemoveLayer       = "removeLayer"
	OpMoveLayer         = "moveLayer"
	OpSetLayerZoomRange = "setLayerZoomRange"
	OpSetPaintProperty  = "setPaintProperty"
	OpSetFilter         = "setFilter"
)

// Op is one engine call as seen by Memory.
type Op struct {
	Seq    uint64 `json:"seq"`
	Kind   string `json:"op"`
	ID     string `json:"id"`
	Before string `json:"before,omitempty"`
	Name   string `json:"name,omitempty"`
	Value  any    `json:"value,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Snapshot is the full in-memory style.
type Snapshot struct {
	Sources map[string]SourceDescriptor `json:"sources"`
	Layers  []LayerSpec                 `json:"layers"`
}

// Memory is a Map held in memory. Every call is recorded as an Op and fanned
// out to subscribers. It is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	sources  map[string]*memorySource
	layers   []LayerSpec
	ops      []Op
	seq      uint64
	subs     map[chan Op]struct{}
	log      zerolog.Logger
	observer func(Op)
}

// Option configures a Memory engine.
type Option func(*Memory)

// WithLogger logs rejected calls at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Memory) { m.log = l }
}

// WithObserver calls fn for every recorded Op, outside the engine lock.
func WithObserver(fn func(Op)) Option {
	return func(m *Memory) { m.observer = fn }
}

// WithBaseLayers seeds the style with basemap layers, bottom first.
func WithBaseLayers(layers ...LayerSpec) Option {
	return func(m *Memory) {
		for _, l := range layers {
			m.layers = append(m.layers, cloneLayer(l))
		}
	}
}

// BaseStyle is a small basemap with two label layers on top.
func BaseStyle() []LayerSpec {
	return []LayerSpec{
		{ID: "background", Type: "background"},
		{ID: "water", Type: TypeFill, Source: "composite"},
		{ID: "road", Type: TypeLine, Source: "composite"},
		{ID: "waterway-label", Type: TypeSymbol, Source: "composite"},
		{ID: "place-label", Type: TypeSymbol, Source: "composite"},
	}
}

// NewMemory returns an empty engine.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		sources: make(map[string]*memorySource),
		subs:    make(map[chan Op]struct{}),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) AddSource(id string, d SourceDescriptor) error {
	m.mu.Lock()
	var err error
	if _, ok := m.sources[id]; ok {
		err = fmt.Errorf("%w: %q", ErrSourceExists, id)
	} else {
		if d.Type == SourceGeoJSON && d.Data == nil {
			d.Data = geojson.NewFeatureCollection()
		}
		m.sources[id] = &memorySource{engine: m, id: id, desc: d}
	}
	return m.record(Op{Kind: OpAddSource, ID: id, Value: d.Type}, err)
}

func (m *Memory) RemoveSource(id string) error {
	m.mu.Lock()
	var err error
	if _, ok := m.sources[id]; !ok {
		err = fmt.Errorf("%w: %q", ErrSourceNotFound, id)
	} else {
		for _, l := range m.layers {
			if l.Source == id {
				err = fmt.Errorf("mapengine: source %q in use by layer %q", id, l.ID)
				break
			}
		}
		if err == nil {
			delete(m.sources, id)
		}
	}
	return m.record(Op{Kind: OpRemoveSource, ID: id}, err)
}

func (m *Memory) GetSource(id string) (Source, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return nil, false
	}
	return s, true
}

func (m *Memory) AddLayer(l LayerSpec, before string) error {
	m.mu.Lock()
	var err error
	switch {
	case m.indexOf(l.ID) >= 0:
		err = fmt.Errorf("%w: %q", ErrLayerExists, l.ID)
	case l.Source != "" && m.sources[l.Source] == nil && !m.isBaseSource(l.Source):
		err = fmt.Errorf("%w: %q", ErrSourceNotFound, l.Source)
	default:
		at, ierr := m.insertionIndex(before)
		if ierr != nil {
			err = ierr
			break
		}
		m.layers = slices.Insert(m.layers, at, cloneLayer(l))
	}
	return m.record(Op{Kind: OpAddLayer, ID: l.ID, Before: before, Value: l.Type}, err)
}

func (m *Memory) RemoveLayer(id string) error {
	m.mu.Lock()
	var err error
	if i := m.indexOf(id); i < 0 {
		err = fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	} else {
		m.layers = slices.Delete(m.layers, i, i+1)
	}
	return m.record(Op{Kind: OpRemoveLayer, ID: id}, err)
}

func (m *Memory) MoveLayer(id, before string) error {
	m.mu.Lock()
	var err error
	i := m.indexOf(id)
	switch {
	case i < 0:
		err = fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	case id == before:
	default:
		if _, ierr := m.insertionIndex(before); ierr != nil {
			err = ierr
			break
		}
		l := m.layers[i]
		m.layers = slices.Delete(m.layers, i, i+1)
		at, _ := m.insertionIndex(before)
		m.layers = slices.Insert(m.layers, at, l)
	}
	return m.record(Op{Kind: OpMoveLayer, ID: id, Before: before}, err)
}

func (m *Memory) GetLayer(id string) (LayerSpec, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return LayerSpec{}, false
	}
	return cloneLayer(m.layers[i]), true
}

func (m *Memory) SetLayerZoomRange(id string, minZoom, maxZoom float64) error {
	m.mu.Lock()
	var err error
	if i := m.indexOf(id); i < 0 {
		err = fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	} else {
		m.layers[i].MinZoom = minZoom
		m.layers[i].MaxZoom = maxZoom
	}
	return m.record(Op{Kind: OpSetLayerZoomRange, ID: id, Value: [2]float64{minZoom, maxZoom}}, err)
}

func (m *Memory) SetPaintProperty(id, name string, value style.Expr) error {
	m.mu.Lock()
	var err error
	if i := m.indexOf(id); i < 0 {
		err = fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	} else {
		if m.layers[i].Paint == nil {
			m.layers[i].Paint = make(map[string]style.Expr)
		}
		m.layers[i].Paint[name] = value
	}
	return m.record(Op{Kind: OpSetPaintProperty, ID: id, Name: name, Value: value}, err)
}

func (m *Memory) SetFilter(id string, filter style.Expr) error {
	m.mu.Lock()
	var err error
	if i := m.indexOf(id); i < 0 {
		err = fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	} else {
		m.layers[i].Filter = filter
	}
	return m.record(Op{Kind: OpSetFilter, ID: id, Value: filter}, err)
}

func (m *Memory) Layers() []LayerSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LayerSpec, len(m.layers))
	for i, l := range m.layers {
		out[i] = cloneLayer(l)
	}
	return out
}

// LayerIDs returns the layer ids, bottom first.
func (m *Memory) LayerIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.layers))
	for i, l := range m.layers {
		ids[i] = l.ID
	}
	return ids
}

// Snapshot returns a copy of the current style.
func (m *Memory) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{Sources: make(map[string]SourceDescriptor, len(m.sources)), Layers: make([]LayerSpec, len(m.layers))}
	for id, src := range m.sources {
		s.Sources[id] = src.desc
	}
	for i, l := range m.layers {
		s.Layers[i] = cloneLayer(l)
	}
	return s
}

// Ops returns the recorded operations in call order.
func (m *Memory) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ops)
}

// Count returns how many successful operations of kind were recorded.
func (m *Memory) Count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, op := range m.ops {
		if op.Kind == kind && op.Err == "" {
			n++
		}
	}
	return n
}

// ResetOps forgets the recorded operations. The style is kept.
func (m *Memory) ResetOps() {
	m.mu.Lock()
	m.ops = nil
	m.mu.Unlock()
}

// Subscribe returns a buffered channel that receives every new Op.
// Slow subscribers miss operations.
func (m *Memory) Subscribe() chan Op {
	ch := make(chan Op, 64)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *Memory) Unsubscribe(ch chan Op) {
	m.mu.Lock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
	m.mu.Unlock()
}

// record appends op and releases the lock taken by the caller.
func (m *Memory) record(op Op, err error) error {
	m.seq++
	op.Seq = m.seq
	if err != nil {
		op.Err = err.Error()
		m.log.Debug().Err(err).Str("op", op.Kind).Str("id", op.ID).Msg("engine call rejected")
	}
	m.ops = append(m.ops, op)
	for ch := range m.subs {
		select {
		case ch <- op:
		default:
		}
	}
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(op)
	}
	return err
}

func (m *Memory) indexOf(id string) int {
	return slices.IndexFunc(m.layers, func(l LayerSpec) bool { return l.ID == id })
}

func (m *Memory) insertionIndex(before string) (int, error) {
	if before == "" {
		return len(m.layers), nil
	}
	i := m.indexOf(before)
	if i < 0 {
		return 0, fmt.Errorf("%w: before %q", ErrLayerNotFound, before)
	}
	return i, nil
}

// isBaseSource reports whether a basemap layer already references id.
func (m *Memory) isBaseSource(id string) bool {
	return slices.ContainsFunc(m.layers, func(l LayerSpec) bool { return l.Source == id })
}

func cloneLayer(l LayerSpec) LayerSpec {
	if l.Paint != nil {
		l.Paint = maps.Clone(l.Paint)
	}
	return l
}

type memorySource struct {
	engine *Memory
	id     string
	desc   SourceDescriptor
}

func (s *memorySource) ID() string { return s.id }

func (s *memorySource) Descriptor() SourceDescriptor {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	return s.desc
}

func (s *memorySource) SetData(fc *geojson.FeatureCollection) error {
	m := s.engine
	m.mu.Lock()
	var err error
	switch {
	case m.sources[s.id] != s:
		err = fmt.Errorf("%w: %q", ErrSourceNotFound, s.id)
	case s.desc.Type != SourceGeoJSON:
		err = fmt.Errorf("%w: %q", ErrNotGeoJSON, s.id)
	default:
		s.desc.Data = fc
	}
	n := 0
	if fc != nil {
		n = len(fc.Features)
	}
	return m.record(Op{Kind: OpSetData, ID: s.id, Value: n}, err)
}
