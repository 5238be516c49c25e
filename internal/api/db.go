package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geostyle/internal/classify"
	"github.com/joeblew999/geostyle/internal/db"
	"github.com/joeblew999/geostyle/internal/limits"
)

// DBHandler handles database and analysis endpoints.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a new database handler. conn may be nil.
func NewDBHandler(conn *sql.DB) *DBHandler {
	return &DBHandler{db: conn}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("analysis"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("analysis"))
	huma.Post(api, "/api/v1/limits/query", h.QueryLimits, huma.OperationTags("analysis"))
	huma.Post(api, "/api/v1/classify", h.Classify, huma.OperationTags("analysis"))
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	tables, err := db.Tables(ctx, h.db)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	out := &TablesOutput{}
	out.Body.Tables = tables
	return out, nil
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"SQL query to execute"`
	}
}

// QueryOutput is the response for SQL queries.
type QueryOutput struct {
	Body struct {
		Columns []string         `json:"columns" doc:"Column names"`
		Rows    []map[string]any `json:"rows" doc:"Query results"`
		Count   int              `json:"count" doc:"Number of rows returned"`
	}
}

// Query executes a SQL query against DuckDB.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	columns, rows, err := db.Rows(ctx, h.db, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	out := &QueryOutput{}
	out.Body.Columns = columns
	out.Body.Rows = rows
	out.Body.Count = len(rows)
	return out, nil
}

// LimitsQueryInput computes the value domain of one column of a query.
type LimitsQueryInput struct {
	Body struct {
		Query string `json:"query" minLength:"1" doc:"SQL query producing the records" example:"SELECT * FROM read_csv_auto('stations.csv')"`
		Field string `json:"field" minLength:"1" doc:"Column to compute limits for" example:"pop"`
	}
}

// QueryLimits runs a query and returns the limits of one of its columns.
func (h *DBHandler) QueryLimits(ctx context.Context, input *LimitsQueryInput) (*struct{ Body limits.Limits }, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	_, rows, err := db.Rows(ctx, h.db, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	return &struct{ Body limits.Limits }{Body: limits.Compute(limits.Rows(rows), input.Body.Field)}, nil
}

// ClassifyInput classifies a list of numbers.
type ClassifyInput struct {
	Body struct {
		Values  []float64       `json:"values" minItems:"1" doc:"Values to classify"`
		Method  classify.Method `json:"method" doc:"Classification method"`
		Classes int             `json:"classes,omitempty" minimum:"0" doc:"Number of classes; 0 derives it from the values"`
	}
}

// ClassifyBody holds the class breaks.
type ClassifyBody struct {
	Classes int       `json:"classes" doc:"Number of classes used"`
	Breaks  []float64 `json:"breaks" doc:"Non-decreasing class bounds, classes+1 long"`
}

// Classify returns the class breaks of the given values.
func (h *DBHandler) Classify(ctx context.Context, input *ClassifyInput) (*struct{ Body ClassifyBody }, error) {
	n := input.Body.Classes
	if n == 0 {
		n = classify.ClassCount(input.Body.Values)
	}
	breaks := classify.Breaks(input.Body.Values, input.Body.Method, n)
	return &struct{ Body ClassifyBody }{Body: ClassifyBody{Classes: n, Breaks: breaks}}, nil
}
