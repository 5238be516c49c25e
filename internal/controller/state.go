package controller

import (
	"github.com/joeblew999/geostyle/internal/datasource"
)

// LayerState describes one layer.
type LayerState struct {
	ID        string   `json:"id" doc:"Layer id"`
	Index     int      `json:"index" doc:"Stacking priority, higher renders above"`
	Visible   bool     `json:"visible" doc:"Shown by the current settings"`
	Exists    bool     `json:"exists" doc:"Sub-layers present on the map"`
	SubLayers []string `json:"subLayers" doc:"Engine layer ids, top-most first"`
	Source    string   `json:"source" doc:"Datasource id"`
}

// SourceState describes one datasource.
type SourceState struct {
	ID      string          `json:"id"`
	Kind    datasource.Kind `json:"kind"`
	Active  bool            `json:"active"`
	Holders []string        `json:"holders"`
}

// State is a point-in-time view of the controller.
type State struct {
	Ready       bool          `json:"ready"`
	Fingerprint string        `json:"fingerprint" doc:"Fingerprint of the current settings"`
	Features    int           `json:"features"`
	Selected    int           `json:"selected"`
	Layers      []LayerState  `json:"layers"`
	Sources     []SourceState `json:"sources"`
	StyleOrder  []string      `json:"styleOrder" doc:"Engine layer ids, bottom first"`
}

// State returns the current layer and datasource state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		Ready:       c.ready,
		Fingerprint: c.settings.Fingerprint(),
		Features:    len(c.features),
		Selected:    len(c.selected),
	}
	for _, l := range c.layers {
		st.Layers = append(st.Layers, LayerState{
			ID:        l.ID(),
			Index:     l.Index(),
			Visible:   l.Visible(c.settings),
			Exists:    l.Exists(),
			SubLayers: l.LayerIDs(),
			Source:    l.Source().ID(),
		})
	}
	for _, src := range c.sources() {
		st.Sources = append(st.Sources, SourceState{
			ID:      src.ID(),
			Kind:    src.Kind(),
			Active:  src.Active(c.m),
			Holders: src.Holders(),
		})
	}
	for _, l := range c.m.Layers() {
		st.StyleOrder = append(st.StyleOrder, l.ID)
	}
	return st
}
