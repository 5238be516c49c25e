package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	svc *Services
}

func NewInfoHandler(svc *Services) *InfoHandler {
	return &InfoHandler{svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name        string   `json:"name" doc:"Service name"`
	Version     string   `json:"version" doc:"Service version"`
	DataDir     string   `json:"data_dir" doc:"Data directory path"`
	DB          bool     `json:"db" doc:"Whether database is available"`
	Fingerprint string   `json:"fingerprint" doc:"Fingerprint of the current settings"`
	Features    []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"circle", "heatmap", "raster", "selection", "legend"}
	if h.svc.DB != nil {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:        "geostyle",
		Version:     h.svc.Version,
		DataDir:     h.svc.DataDir,
		DB:          h.svc.DB != nil,
		Fingerprint: h.svc.Controller.Settings().Fingerprint(),
		Features:    features,
	}}, nil
}
