// Package server wires the map controller, the in-memory engine and the
// HTTP API into one service.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/joeblew999/geostyle/internal/api"
	"github.com/joeblew999/geostyle/internal/controller"
	"github.com/joeblew999/geostyle/internal/db"
	"github.com/joeblew999/geostyle/internal/humastar"
	"github.com/joeblew999/geostyle/internal/logger"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/metrics"
	"github.com/joeblew999/geostyle/internal/palette"
	"github.com/joeblew999/geostyle/internal/service"
	"github.com/joeblew999/geostyle/internal/settings"
)

// Config holds the server configuration.
type Config struct {
	Host         string
	Port         string
	DataDir      string
	SettingsFile string // optional YAML, TOML or JSON settings snapshot
	DisableDB    bool
	Version      string
	Log          zerolog.Logger
	Metrics      *metrics.Provider
}

// Server is the geostyle HTTP server.
type Server struct {
	config     Config
	router     chi.Router
	humaAPI    huma.API
	db         *sql.DB
	engine     *mapengine.Memory
	controller *controller.Controller
	log        zerolog.Logger
}

// New creates the server, applies the settings file if any and marks the map
// loaded.
func New(cfg Config) (*Server, error) {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Init(metrics.Config{Build: metrics.BuildInfo{Version: cfg.Version}})
	}
	log := cfg.Log

	s := &Server{config: cfg, log: log}
	styling := metrics.NewStyling(cfg.Metrics)
	bus := service.NewEventBus()

	engineLog := logger.Component(log, "engine")
	s.engine = mapengine.NewMemory(
		mapengine.WithLogger(engineLog),
		mapengine.WithBaseLayers(mapengine.BaseStyle()...),
		mapengine.WithObserver(func(op mapengine.Op) {
			engineLog.Trace().Uint64("seq", op.Seq).Str("op", op.Kind).Str("id", op.ID).Str("error", op.Err).Msg("engine op")
		}),
	)

	initial := settings.Default()
	if cfg.SettingsFile != "" {
		loaded, err := settings.Load(cfg.SettingsFile)
		if err != nil {
			return nil, err
		}
		initial = loaded
	}

	s.controller = controller.New(s.engine,
		controller.WithLogger(logger.Component(log, "controller")),
		controller.WithMetrics(styling),
		controller.WithEventBus(bus),
		controller.WithPalette(palette.New(nil, palette.WithLogger(log))),
		controller.WithSettings(initial),
	)

	if !cfg.DisableDB {
		conn, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "geostyle", Log: logger.Component(log, "db")})
		if err != nil {
			log.Warn().Err(err).Msg("database not available")
		} else {
			s.db = conn
		}
	}

	humaConfig := huma.DefaultConfig("geostyle API", cfg.Version)
	humaConfig.Info.Description = "Data-driven map styling: settings snapshots, point data, layer stacking, selection and legends."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer(), humastar.ActionTransformer())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger.Component(log, "http")))
	r.Handle("/metrics", cfg.Metrics.Handler())
	s.router = r
	s.humaAPI = humachi.New(r, humaConfig)

	api.RegisterRoutes(s.humaAPI, &api.Services{
		Controller: s.controller,
		Engine:     s.engine,
		Sources:    service.NewSourceService(cfg.DataDir, s.db, logger.Component(log, "sources")),
		Bus:        bus,
		DB:         s.db,
		Log:        log,
		Version:    cfg.Version,
		DataDir:    cfg.DataDir,
	})

	if err := s.controller.MapLoaded(); err != nil {
		log.Warn().Err(err).Msg("initial apply reported engine errors")
	}
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Controller returns the layer orchestrator.
func (s *Server) Controller() *controller.Controller {
	return s.controller
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
