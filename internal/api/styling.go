package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geostyle/internal/controller"
	"github.com/joeblew999/geostyle/internal/convert"
	"github.com/joeblew999/geostyle/internal/humastar"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/palette"
	"github.com/joeblew999/geostyle/internal/rolemap"
	"github.com/joeblew999/geostyle/internal/service"
	"github.com/joeblew999/geostyle/internal/settings"
	"github.com/joeblew999/geostyle/internal/style"
)

// Types

type SettingsOutput struct {
	ETag string `header:"ETag" doc:"Settings fingerprint"`
	Body settings.Settings
}

type PutSettingsInput struct {
	IfMatch string `header:"If-Match" doc:"Apply only if the current settings still carry this ETag"`
	Body    settings.Settings
}

type DataBody struct {
	Columns []rolemap.Column `json:"columns" minItems:"1" doc:"Bound columns; latitude and longitude roles are required"`
	Rows    []map[string]any `json:"rows,omitempty" doc:"Tabular rows keyed by column display name"`
	GeoJSON map[string]any   `json:"geojson,omitempty" doc:"GeoJSON FeatureCollection; geometry centers fill the latitude and longitude columns"`
}

type DataResult struct {
	Features int `json:"features" doc:"Features with valid coordinates"`
	Skipped  int `json:"skipped" doc:"Rows dropped for missing or invalid coordinates"`
}

type SourceDataInput struct {
	Name string `path:"name" doc:"Source file name" example:"stations.csv"`
	Body service.Binding
}

// LayersBody is the layer state with its state-dependent actions.
type LayersBody struct {
	controller.State
}

func (b LayersBody) Actions() []humastar.Action {
	actions := []humastar.Action{
		{Rel: "reorder", Href: "/api/v1/layers/reorder", Method: "POST", Title: "Restack layers"},
	}
	if b.Ready && b.Features > 0 {
		actions = append(actions, humastar.Action{Rel: "legend", Href: "/api/v1/legend", Method: "GET", Title: "Legend"})
	}
	if b.Selected > 0 {
		actions = append(actions, humastar.Action{Rel: "clear-selection", Href: "/api/v1/selection", Method: "DELETE", Title: "Clear the selection"})
	}
	return actions
}

type SelectionBody struct {
	IDs   []any `json:"ids" doc:"Selected feature ids"`
	Count int   `json:"count" doc:"Number of selected features"`
}

type SelectIDsInput struct {
	Body struct {
		IDs []any `json:"ids" doc:"Feature ids to select"`
	}
}

type BoxInput struct {
	Body struct {
		MinLon float64 `json:"minLon" minimum:"-180" maximum:"180"`
		MinLat float64 `json:"minLat" minimum:"-90" maximum:"90"`
		MaxLon float64 `json:"maxLon" minimum:"-180" maximum:"180"`
		MaxLat float64 `json:"maxLat" minimum:"-90" maximum:"90"`
	}
}

type HoverInput struct {
	Body struct {
		ID any `json:"id" doc:"Feature id to highlight"`
	}
}

// RegisterSettings registers the settings snapshot routes.
func (h *APIHandler) RegisterSettings(api huma.API) {
	huma.Get(api, "/api/v1/settings", h.GetSettings, huma.OperationTags("settings"))
	huma.Put(api, "/api/v1/settings", h.PutSettings, huma.OperationTags("settings"))
}

// RegisterData registers the data update routes.
func (h *APIHandler) RegisterData(api huma.API) {
	huma.Post(api, "/api/v1/data", h.PostData, huma.OperationTags("data"))
	huma.Post(api, "/api/v1/data/source/{name}", h.PostSourceData, huma.OperationTags("data"))
}

// RegisterLayers registers layer state routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/reorder", h.ReorderLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/legend", h.GetLegend, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/palette", h.GetPalette, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/map/style", h.GetStyle, huma.OperationTags("layers"))
}

// RegisterSelection registers selection and highlight routes.
func (h *APIHandler) RegisterSelection(api huma.API) {
	huma.Get(api, "/api/v1/selection", h.GetSelection, huma.OperationTags("selection"))
	huma.Post(api, "/api/v1/selection", h.SelectIDs, huma.OperationTags("selection"))
	huma.Post(api, "/api/v1/selection/box", h.SelectBox, huma.OperationTags("selection"))
	huma.Delete(api, "/api/v1/selection", h.ClearSelection, huma.OperationTags("selection"))
	huma.Post(api, "/api/v1/hover", h.Hover, huma.OperationTags("selection"))
}

// Handlers

func (h *APIHandler) GetSettings(ctx context.Context, input *struct{}) (*SettingsOutput, error) {
	s := h.svc.Controller.Settings()
	return &SettingsOutput{ETag: etag(s), Body: s}, nil
}

func (h *APIHandler) PutSettings(ctx context.Context, input *PutSettingsInput) (*SettingsOutput, error) {
	if input.IfMatch != "" && strings.Trim(input.IfMatch, `"`) != h.svc.Controller.Settings().Fingerprint() {
		return nil, huma.Error412PreconditionFailed("settings changed since they were read")
	}
	if err := h.svc.Controller.ApplySettings(input.Body); err != nil {
		var verr *settings.ValidationError
		if errors.As(err, &verr) {
			return nil, huma.Error422UnprocessableEntity(verr.Error())
		}
		h.svc.Log.Warn().Err(err).Msg("settings applied with engine errors")
	}
	s := h.svc.Controller.Settings()
	return &SettingsOutput{ETag: etag(s), Body: s}, nil
}

func (h *APIHandler) PostData(ctx context.Context, input *struct{ Body DataBody }) (*struct{ Body DataResult }, error) {
	roles := rolemap.New(input.Body.Columns)
	if roles.Latitude() == "" || roles.Longitude() == "" {
		return nil, huma.Error422UnprocessableEntity("latitude and longitude columns are required")
	}

	rows := input.Body.Rows
	if input.Body.GeoJSON != nil {
		fc, err := decodeFeatureCollection(input.Body.GeoJSON)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid geojson: " + err.Error())
		}
		rows = append(rows, service.GeoJSONRows(fc, service.Binding{Latitude: roles.Latitude(), Longitude: roles.Longitude()})...)
	}

	features, skipped := convert.Features(rows, roles)
	if err := h.svc.Controller.Update(features, roles); err != nil {
		h.svc.Log.Warn().Err(err).Msg("data applied with engine errors")
	}
	return &struct{ Body DataResult }{Body: DataResult{Features: len(features), Skipped: skipped}}, nil
}

func (h *APIHandler) PostSourceData(ctx context.Context, input *SourceDataInput) (*struct{ Body DataResult }, error) {
	if h.svc.Sources == nil {
		return nil, huma.Error503ServiceUnavailable("sources not available")
	}
	loaded, err := h.svc.Sources.Load(ctx, input.Name, input.Body)
	switch {
	case errors.Is(err, service.ErrSourceNotFound):
		return nil, huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrNoDatabase):
		return nil, huma.Error503ServiceUnavailable(err.Error())
	case err != nil:
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	if err := h.svc.Controller.Update(loaded.Features, loaded.Roles); err != nil {
		h.svc.Log.Warn().Err(err).Str("source", input.Name).Msg("data applied with engine errors")
	}
	return &struct{ Body DataResult }{Body: DataResult{Features: len(loaded.Features), Skipped: loaded.Skipped}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body LayersBody }, error) {
	return &struct{ Body LayersBody }{Body: LayersBody{h.svc.Controller.State()}}, nil
}

func (h *APIHandler) ReorderLayers(ctx context.Context, input *struct{}) (*struct{ Body LayersBody }, error) {
	h.svc.Controller.Reorder()
	return &struct{ Body LayersBody }{Body: LayersBody{h.svc.Controller.State()}}, nil
}

func (h *APIHandler) GetLegend(ctx context.Context, input *struct{}) (*struct{ Body []style.LegendModel }, error) {
	legends := h.svc.Controller.Legends()
	if legends == nil {
		legends = []style.LegendModel{}
	}
	return &struct{ Body []style.LegendModel }{Body: legends}, nil
}

func (h *APIHandler) GetPalette(ctx context.Context, input *struct{}) (*struct{ Body []palette.Group }, error) {
	groups := h.svc.Controller.Palette()
	if groups == nil {
		groups = []palette.Group{}
	}
	return &struct{ Body []palette.Group }{Body: groups}, nil
}

func (h *APIHandler) GetStyle(ctx context.Context, input *struct{}) (*struct{ Body mapengine.Snapshot }, error) {
	if h.svc.Engine == nil {
		return nil, huma.Error503ServiceUnavailable("map engine not inspectable")
	}
	return &struct{ Body mapengine.Snapshot }{Body: h.svc.Engine.Snapshot()}, nil
}

func (h *APIHandler) GetSelection(ctx context.Context, input *struct{}) (*struct{ Body SelectionBody }, error) {
	return selection(h.svc.Controller.Selected()), nil
}

func (h *APIHandler) SelectIDs(ctx context.Context, input *SelectIDsInput) (*struct{ Body SelectionBody }, error) {
	return selection(h.svc.Controller.SelectIDs(input.Body.IDs)), nil
}

func (h *APIHandler) SelectBox(ctx context.Context, input *BoxInput) (*struct{ Body SelectionBody }, error) {
	b := input.Body
	if b.MinLon > b.MaxLon || b.MinLat > b.MaxLat {
		return nil, huma.Error422UnprocessableEntity("box minimum exceeds maximum")
	}
	box := orb.Bound{Min: orb.Point{b.MinLon, b.MinLat}, Max: orb.Point{b.MaxLon, b.MaxLat}}
	return selection(h.svc.Controller.SelectBox(box)), nil
}

func (h *APIHandler) ClearSelection(ctx context.Context, input *struct{}) (*struct{ Body SelectionBody }, error) {
	h.svc.Controller.RemoveHighlight()
	return selection(nil), nil
}

func (h *APIHandler) Hover(ctx context.Context, input *HoverInput) (*struct{ Body MessageBody }, error) {
	f, ok := h.svc.Controller.Feature(input.Body.ID)
	if !ok {
		return nil, huma.Error404NotFound("feature not found")
	}
	h.svc.Controller.HoverHighlight(f)
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Highlighted"}}, nil
}

func selection(features []*geojson.Feature) *struct{ Body SelectionBody } {
	ids := make([]any, len(features))
	for i, f := range features {
		ids[i] = f.ID
	}
	return &struct{ Body SelectionBody }{Body: SelectionBody{IDs: ids, Count: len(ids)}}
}

func etag(s settings.Settings) string {
	return `"` + s.Fingerprint() + `"`
}

func decodeFeatureCollection(v map[string]any) (*geojson.FeatureCollection, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(data)
}
