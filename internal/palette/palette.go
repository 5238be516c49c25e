// Package palette assigns colors to categories and builds sequential ramps.
package palette

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// DefaultColor is returned when neither the service nor the cache has a color.
const DefaultColor = "#01B8AA"

const defaultCacheSize = 1024

// ColorService hands out a color for a category key. Implementations may be
// backed by a host theme and can fail.
type ColorService interface {
	Color(key string) (string, error)
}

// Palette caches category colors and applies per-category overrides.
type Palette struct {
	mu        sync.Mutex
	service   ColorService
	cache     *lru.Cache[string, string]
	overrides map[string]string
	groups    []string
	log       zerolog.Logger
}

// Option configures a Palette.
type Option func(*Palette)

// WithLogger sets the logger used to report color service failures.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Palette) { p.log = l }
}

// WithCacheSize bounds the number of cached category colors.
func WithCacheSize(n int) Option {
	return func(p *Palette) {
		if c, err := lru.New[string, string](n); err == nil {
			p.cache = c
		}
	}
}

// New creates a palette over service. A nil service uses NewDefaultService.
func New(service ColorService, opts ...Option) *Palette {
	if service == nil {
		service = NewDefaultService()
	}
	cache, _ := lru.New[string, string](defaultCacheSize)
	p := &Palette{
		service:   service,
		cache:     cache,
		overrides: make(map[string]string),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Color returns the color for key. Service failures are logged and answered
// from the cache or DefaultColor; they never propagate.
func (p *Palette) Color(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.overrides[key]; ok {
		return c
	}
	if c, ok := p.cache.Get(key); ok {
		return c
	}
	c, err := p.service.Color(key)
	if err != nil || c == "" {
		p.log.Warn().Err(err).Str("key", key).Msg("color service failed, using default")
		return DefaultColor
	}
	p.cache.Add(key, c)
	return c
}

// SetOverrides replaces the pinned category colors. Pinned colors take
// precedence over the service; empty colors are ignored.
func (p *Palette) SetOverrides(overrides map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.overrides)
	for key, color := range overrides {
		if color != "" {
			p.overrides[key] = color
		}
	}
}

// SetGroups records the distinct category names currently bound to color.
func (p *Palette) SetGroups(groups []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.groups = append(p.groups[:0], groups...)
}

// Groups returns the category names with their assigned colors, in order.
func (p *Palette) Groups() []Group {
	p.mu.Lock()
	names := append([]string(nil), p.groups...)
	p.mu.Unlock()

	out := make([]Group, 0, len(names))
	for _, name := range names {
		out = append(out, Group{Name: name, Color: p.Color(name)})
	}
	return out
}

// Group is a category and its color.
type Group struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// DefaultService cycles through a qualitative palette in request order.
type DefaultService struct {
	mu       sync.Mutex
	colors   []string
	assigned map[string]string
}

// Qualitative is the default category palette.
var Qualitative = []string{
	"#01B8AA", "#374649", "#FD625E", "#F2C80F", "#5F6B6D",
	"#8AD4EB", "#FE9666", "#A66999", "#3599B8", "#DFBFBF",
}

// NewDefaultService returns a service over Qualitative.
func NewDefaultService() *DefaultService {
	return &DefaultService{colors: Qualitative, assigned: make(map[string]string)}
}

// Color implements ColorService.
func (s *DefaultService) Color(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.assigned[key]; ok {
		return c, nil
	}
	c := s.colors[len(s.assigned)%len(s.colors)]
	s.assigned[key] = c
	return c, nil
}
