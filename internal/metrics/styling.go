package metrics

import "github.com/prometheus/client_golang/prometheus"

// Styling counts map engine calls, style fallbacks and datasource work.
// A nil *Styling is valid and records nothing.
type Styling struct {
	EngineOps         *prometheus.CounterVec
	EngineErrors      *prometheus.CounterVec
	StyleFallbacks    *prometheus.CounterVec
	DatasourceUpdates prometheus.Counter
	SelectionSize     prometheus.Gauge
	ActiveSources     prometheus.Gauge
}

// NewStyling creates the styling collectors and registers them on p.
func NewStyling(p *Provider) *Styling {
	s := &Styling{
		EngineOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geostyle_engine_ops_total",
			Help: "Map engine operations issued, by operation.",
		}, []string{"op"}),
		EngineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geostyle_engine_errors_total",
			Help: "Map engine operations that were rejected and ignored, by operation.",
		}, []string{"op"}),
		StyleFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geostyle_style_fallbacks_total",
			Help: "Style expressions that degraded to a constant or zoom-only style, by reason.",
		}, []string{"reason"}),
		DatasourceUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geostyle_datasource_updates_total",
			Help: "Datasource updates pushed to the map.",
		}),
		SelectionSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "geostyle_selection_features",
			Help: "Features in the current selection.",
		}),
		ActiveSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "geostyle_active_sources",
			Help: "Datasources currently present on the map.",
		}),
	}
	if p != nil {
		p.Register(s.EngineOps, s.EngineErrors, s.StyleFallbacks, s.DatasourceUpdates, s.SelectionSize, s.ActiveSources)
	}
	return s
}

func (s *Styling) EngineOp(op string) {
	if s != nil {
		s.EngineOps.WithLabelValues(op).Inc()
	}
}

func (s *Styling) EngineError(op string) {
	if s != nil {
		s.EngineErrors.WithLabelValues(op).Inc()
	}
}

func (s *Styling) Fallback(reason string) {
	if s != nil {
		s.StyleFallbacks.WithLabelValues(reason).Inc()
	}
}

func (s *Styling) Updated() {
	if s != nil {
		s.DatasourceUpdates.Inc()
	}
}

func (s *Styling) Selected(n int) {
	if s != nil {
		s.SelectionSize.Set(float64(n))
	}
}

func (s *Styling) Sources(n int) {
	if s != nil {
		s.ActiveSources.Set(float64(n))
	}
}
