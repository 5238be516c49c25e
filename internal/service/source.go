package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/joeblew999/geostyle/internal/convert"
	"github.com/joeblew999/geostyle/internal/db"
	"github.com/joeblew999/geostyle/internal/limits"
	"github.com/joeblew999/geostyle/internal/rolemap"
)

var (
	ErrSourceNotFound = errors.New("source file not found")
	ErrUnsupported    = errors.New("unsupported source file")
	ErrNoDatabase     = errors.New("database not available")
)

// Default coordinate columns for GeoJSON sources.
const (
	DefaultLatitude  = "latitude"
	DefaultLongitude = "longitude"
)

// extToType maps supported source file extensions to their types.
var extToType = map[string]string{
	".geojson":    "GeoJSON",
	".json":       "GeoJSON",
	".csv":        "CSV",
	".parquet":    "GeoParquet",
	".geoparquet": "GeoParquet",
}

// SourceFile represents a source data file.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"stations.csv"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type: GeoJSON, CSV or GeoParquet" example:"CSV"`
}

// Binding names the columns that fill each role when a file is loaded.
type Binding struct {
	Latitude  string   `json:"latitude,omitempty" doc:"Latitude column; GeoJSON geometry is exposed under this name" example:"lat"`
	Longitude string   `json:"longitude,omitempty" doc:"Longitude column; GeoJSON geometry is exposed under this name" example:"lon"`
	Color     []string `json:"color,omitempty" doc:"Columns bound to color"`
	Size      []string `json:"size,omitempty" doc:"Columns bound to size"`
	Tooltips  []string `json:"tooltips,omitempty" doc:"Columns shown in tooltips"`
}

func (b Binding) withDefaults() Binding {
	if b.Latitude == "" {
		b.Latitude = DefaultLatitude
	}
	if b.Longitude == "" {
		b.Longitude = DefaultLongitude
	}
	return b
}

// Loaded is the result of loading a source file.
type Loaded struct {
	Features []*geojson.Feature
	Roles    rolemap.RoleMap
	Rows     int
	Skipped  int
}

// SourceService lists source data files and loads them as point features.
type SourceService struct {
	sourcesDir string
	db         *sql.DB
	log        zerolog.Logger
}

// NewSourceService creates a new source service. conn may be nil, in which
// case only GeoJSON files can be loaded.
func NewSourceService(dataDir string, conn *sql.DB, log zerolog.Logger) *SourceService {
	return &SourceService{
		sourcesDir: filepath.Join(dataDir, "sources"),
		db:         conn,
		log:        log,
	}
}

// List returns all available source files.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileType, ok := extToType[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, SourceFile{
			Name:     entry.Name(),
			Size:     formatSize(info.Size()),
			FileType: fileType,
		})
	}
	return files, nil
}

// SourcesDir returns the path to the sources directory.
func (s *SourceService) SourcesDir() string {
	return s.sourcesDir
}

// Load reads the named file and converts it to features bound by b.
func (s *SourceService) Load(ctx context.Context, name string, b Binding) (Loaded, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return Loaded{}, fmt.Errorf("%w: %q", ErrSourceNotFound, name)
	}
	path := filepath.Join(s.sourcesDir, name)
	if _, err := os.Stat(path); err != nil {
		return Loaded{}, fmt.Errorf("%w: %q", ErrSourceNotFound, name)
	}

	b = b.withDefaults()
	var (
		rows []map[string]any
		err  error
	)
	switch extToType[strings.ToLower(filepath.Ext(name))] {
	case "GeoJSON":
		rows, err = s.geoJSONRows(path, b)
	case "CSV", "GeoParquet":
		rows, err = s.tabularRows(ctx, path)
	default:
		return Loaded{}, fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
	if err != nil {
		return Loaded{}, err
	}

	l := FromRows(rows, b)
	s.log.Info().Str("source", name).Int("rows", l.Rows).Int("skipped", l.Skipped).Msg("source loaded")
	return l, nil
}

func (s *SourceService) geoJSONRows(path string, b Binding) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", filepath.Base(path), err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", filepath.Base(path), err)
	}
	return GeoJSONRows(fc, b), nil
}

func (s *SourceService) tabularRows(ctx context.Context, path string) ([]map[string]any, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	q, err := db.ReadFileQuery(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	_, rows, err := db.Rows(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// GeoJSONRows flattens features into rows: the properties plus the geometry
// center under the binding's coordinate columns.
func GeoJSONRows(fc *geojson.FeatureCollection, b Binding) []map[string]any {
	b = b.withDefaults()
	rows := make([]map[string]any, 0, len(fc.Features))
	for _, f := range fc.Features {
		row := make(map[string]any, len(f.Properties)+2)
		for k, v := range f.Properties {
			row[k] = v
		}
		if f.Geometry != nil {
			c := f.Geometry.Bound().Center()
			row[b.Latitude] = c.Lat()
			row[b.Longitude] = c.Lon()
		}
		rows = append(rows, row)
	}
	return rows
}

// FromRows binds the columns named by b and converts rows to features.
// Columns whose values are all numeric are marked continuous.
func FromRows(rows []map[string]any, b Binding) Loaded {
	b = b.withDefaults()
	roles := Roles(rows, b)
	features, skipped := convert.Features(rows, roles)
	return Loaded{Features: features, Roles: roles, Rows: len(rows), Skipped: skipped}
}

// Roles builds the role map for b over rows.
func Roles(rows []map[string]any, b Binding) rolemap.RoleMap {
	b = b.withDefaults()
	var (
		order  []string
		byName = map[string]*rolemap.Column{}
	)
	bind := func(role string, names ...string) {
		for _, n := range names {
			if n == "" {
				continue
			}
			c, ok := byName[n]
			if !ok {
				c = &rolemap.Column{DisplayName: n}
				byName[n] = c
				order = append(order, n)
			}
			c.Roles = append(c.Roles, role)
		}
	}
	bind(rolemap.Latitude, b.Latitude)
	bind(rolemap.Longitude, b.Longitude)
	bind(rolemap.Color, b.Color...)
	bind(rolemap.Size, b.Size...)
	bind(rolemap.Tooltips, b.Tooltips...)

	records := limits.Rows(rows)
	columns := make([]rolemap.Column, 0, len(order))
	for _, n := range order {
		c := byName[n]
		if numericColumn(rows, n) {
			l := limits.Compute(records, n)
			c.Aggregates = &rolemap.Aggregates{Min: l.Min, Max: l.Max}
		}
		columns = append(columns, *c)
	}
	return rolemap.New(columns)
}

func numericColumn(rows []map[string]any, name string) bool {
	seen := false
	for _, row := range rows {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		if _, isString := v.(string); isString {
			return false
		}
		if _, ok := convert.Float(v); !ok {
			return false
		}
		seen = true
	}
	return seen
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
