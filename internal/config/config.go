// Package config defines the canonical, JSON/YAML-serializable configuration
// model for the sales ETL. A pipeline file describes the three sources, the
// relational store, the columnar export, and the report queries; environment
// variables fill in connection details and sizing overrides.
//
// Example (trimmed):
//
//	{
//	  "job": "vendas",
//	  "sources": { "sales": { "path": "data/vendas.csv" } },
//	  "parser":  { "comma": ";", "chunk_size": 50000 },
//	  "storage": { "kind": "postgres", "schema": "public", "load_mode": "append" },
//	  "export":  { "path": "output/vendas_enriquecidas", "chunk_size": 100000 }
//	}
package config

import "encoding/json"

// Load modes for the sales table.
const (
	LoadAppend  = "append"
	LoadReplace = "replace"
	LoadUpsert  = "upsert"
)

// Schema-violation policies for the sales load.
const (
	OnSchemaAbort     = "abort"
	OnSchemaSkipChunk = "skip-chunk"
)

// Pipeline is the top-level object decoded from a pipeline file
// (configs/pipelines/*.json or *.yaml).
type Pipeline struct {
	// Job names the run; it labels metrics and log lines.
	Job string `json:"job" yaml:"job"`

	Sources Sources       `json:"sources" yaml:"sources"`
	Parser  Parser        `json:"parser" yaml:"parser"`
	Storage Storage       `json:"storage" yaml:"storage"`
	Export  Export        `json:"export" yaml:"export"`
	Reports Reports       `json:"reports" yaml:"reports"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// Sources lists the three input files. An empty path disables that stage.
type Sources struct {
	Sales     SourceFile `json:"sales" yaml:"sales"`
	Products  SourceFile `json:"products" yaml:"products"`
	Customers SourceFile `json:"customers" yaml:"customers"`
}

// SourceFile holds configuration for a local file source.
type SourceFile struct {
	// Path is the local filesystem path to the input file.
	Path string `json:"path" yaml:"path"`

	// Encoding is the source character set: "utf-8" (default), "latin1" or
	// "windows-1252".
	Encoding string `json:"encoding" yaml:"encoding"`
}

// Parser configures delimited-file reading.
type Parser struct {
	// Comma is the field separator; the retail extracts use ";".
	Comma string `json:"comma" yaml:"comma"`

	// ChunkSize is the maximum number of data rows handed to the transform
	// stage at once.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// SyntheticColumns is a regular expression matched against header names;
	// matching columns are dropped before normalization.
	SyntheticColumns string `json:"synthetic_columns" yaml:"synthetic_columns"`

	// OnSchemaError selects what happens after a chunk fails normalization:
	// "abort" stops the stage, "skip-chunk" moves on to the next chunk.
	OnSchemaError string `json:"on_schema_error" yaml:"on_schema_error"`

	// Options is a free-form bag for reader knobs such as trim_space (bool)
	// and lazy_quotes (bool).
	Options Options `json:"options" yaml:"options"`
}

// Storage selects the relational backend and load behavior.
type Storage struct {
	// Kind selects the backend: "postgres", "sqlite", "mssql" or "mysql".
	Kind string `json:"kind" yaml:"kind"`

	DB DBConfig `json:"db" yaml:"db"`
}

// DBConfig configures the relational sink.
type DBConfig struct {
	// DSN is the connection string. When empty for postgres it is assembled
	// from POSTGRES_* environment variables.
	DSN string `json:"dsn" yaml:"dsn"`

	// Schema qualifies every table name (e.g. "public"). Empty means the
	// backend default.
	Schema string `json:"schema" yaml:"schema"`

	// SalesTable, ProductsTable and CustomersTable name the three tables.
	SalesTable     string `json:"sales_table" yaml:"sales_table"`
	ProductsTable  string `json:"products_table" yaml:"products_table"`
	CustomersTable string `json:"customers_table" yaml:"customers_table"`

	// LoadMode controls how sales batches reach the table: "append",
	// "replace" or "upsert".
	LoadMode string `json:"load_mode" yaml:"load_mode"`

	// KeyColumns identifies the logical key used by the "upsert" mode.
	KeyColumns []string `json:"key_columns" yaml:"key_columns"`

	// AutoCreateTable runs the schema DDL before loading.
	AutoCreateTable bool `json:"auto_create_table" yaml:"auto_create_table"`

	// ConnectRetries and ConnectDelayMS bound the connection bootstrap.
	ConnectRetries int `json:"connect_retries" yaml:"connect_retries"`
	ConnectDelayMS int `json:"connect_delay_ms" yaml:"connect_delay_ms"`
}

// Export configures the partitioned columnar export.
type Export struct {
	// Disabled skips the export stage.
	Disabled bool `json:"disabled" yaml:"disabled"`

	// Path is the root directory of the partitioned dataset.
	Path string `json:"path" yaml:"path"`

	// ChunkSize is the number of rows fetched per cursor round trip.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// Query overrides the default enrichment query.
	Query string `json:"query" yaml:"query"`

	// DateColumn names the column partition keys are derived from.
	DateColumn string `json:"date_column" yaml:"date_column"`

	// YearColumn and MonthColumn name the partition directories.
	YearColumn  string `json:"year_column" yaml:"year_column"`
	MonthColumn string `json:"month_column" yaml:"month_column"`

	// Compression is one of "snappy" (default), "zstd", "gzip", "none".
	Compression string `json:"compression" yaml:"compression"`

	S3 S3Publish `json:"s3" yaml:"s3"`
}

// S3Publish configures the optional upload of the finished dataset.
type S3Publish struct {
	Bucket   string `json:"bucket" yaml:"bucket"`
	Prefix   string `json:"prefix" yaml:"prefix"`
	Region   string `json:"region" yaml:"region"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// Reports configures the flat-file report dumps.
type Reports struct {
	OutputDir   string        `json:"output_dir" yaml:"output_dir"`
	Parallelism int           `json:"parallelism" yaml:"parallelism"`
	Queries     []ReportQuery `json:"queries" yaml:"queries"`
}

// ReportQuery is one named report; its result is written to <name>.csv.
type ReportQuery struct {
	Name string `json:"name" yaml:"name"`
	SQL  string `json:"sql" yaml:"sql"`
}

// RuntimeConfig holds process-level knobs.
type RuntimeConfig struct {
	// MaxChunks stops the sales load after this many chunks (0 = no limit).
	MaxChunks int `json:"max_chunks" yaml:"max_chunks"`
}

// Options is a small helper to fetch typed values from arbitrary maps
// without introducing third-party configuration libraries. It performs only
// minimal type coercion and returns provided defaults when a key is absent
// or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json and YAML integers as int, so both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// "options" object decodes to a non-nil, empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
