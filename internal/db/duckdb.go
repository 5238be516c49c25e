// Package db opens the DuckDB connection used to read tabular sources.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"
)

// Config holds database configuration. An empty DBName opens an in-memory
// database.
type Config struct {
	DataDir    string
	DBName     string
	Extensions []string
	Log        zerolog.Logger
}

// DefaultExtensions are loaded on open when Config.Extensions is nil.
var DefaultExtensions = []string{"spatial", "parquet"}

// Open returns a DuckDB connection with the configured extensions loaded.
func Open(cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DBName != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0o755); err != nil {
			return nil, fmt.Errorf("create duckdb directory: %w", err)
		}
		dsn = filepath.Join(duckdbDir, cfg.DBName+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	exts := cfg.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		// Extensions may be unavailable offline; reads that need them fail later.
		if _, err := conn.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			cfg.Log.Warn().Err(err).Str("extension", ext).Msg("duckdb extension not loaded")
		}
	}
	return conn, nil
}

// Rows runs query and returns every row keyed by column name.
func Rows(ctx context.Context, conn *sql.DB, query string, args ...any) ([]string, []map[string]any, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("columns: %w", err)
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = scalar(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows: %w", err)
	}
	return columns, out, nil
}

// scalar turns DECIMAL and HUGEINT values into float64 so they read as
// numbers downstream.
func scalar(v any) any {
	switch n := v.(type) {
	case duckdb.Decimal:
		return decimalFloat(n)
	case *big.Int:
		if n == nil {
			return nil
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return f
	}
	return v
}

func decimalFloat(d duckdb.Decimal) float64 {
	if d.Value == nil {
		return 0
	}
	f := new(big.Float).SetInt(d.Value)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil))
	out, _ := f.Quo(f, scale).Float64()
	return out
}

// Tables lists the tables of the open database.
func Tables(ctx context.Context, conn *sql.DB) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("show tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// ReadFileQuery builds the SELECT that reads a CSV or Parquet file.
func ReadFileQuery(path string) (string, error) {
	lit := Quote(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return "SELECT * FROM read_csv_auto(" + lit + ")", nil
	case ".parquet", ".geoparquet":
		return "SELECT * FROM read_parquet(" + lit + ")", nil
	}
	return "", fmt.Errorf("unsupported tabular file %q", filepath.Base(path))
}

// Quote returns s as a SQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
