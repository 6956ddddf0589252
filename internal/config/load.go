package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultChunkSize        = 50000
	DefaultExportChunkSize  = 100000
	DefaultSyntheticColumns = `^(Unnamed|$)`
	DefaultSchema           = "public"
	DefaultConnectRetries   = 5
	DefaultConnectDelayMS   = 2000
)

// Load reads a pipeline file. Files ending in .yaml or .yml are decoded as
// YAML; everything else as JSON.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	p, err := Decode(f, format)
	if err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

// Decode reads a pipeline from r in the given format ("json" or "yaml").
func Decode(r io.Reader, format string) (Pipeline, error) {
	var p Pipeline
	switch format {
	case "yaml":
		dec := yaml.NewDecoder(r)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return Pipeline{}, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&p); err != nil {
			return Pipeline{}, err
		}
	default:
		return Pipeline{}, fmt.Errorf("unsupported config format %q", format)
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	return p, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyDefaults fills zero values with the documented defaults.
func (p *Pipeline) ApplyDefaults() {
	if p.Job == "" {
		p.Job = "vendas"
	}
	if p.Parser.Comma == "" {
		p.Parser.Comma = ";"
	}
	if p.Parser.ChunkSize <= 0 {
		p.Parser.ChunkSize = DefaultChunkSize
	}
	if p.Parser.SyntheticColumns == "" {
		p.Parser.SyntheticColumns = DefaultSyntheticColumns
	}
	if p.Parser.OnSchemaError == "" {
		p.Parser.OnSchemaError = OnSchemaAbort
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}

	db := &p.Storage.DB
	if p.Storage.Kind == "" {
		p.Storage.Kind = "postgres"
	}
	if db.Schema == "" && p.Storage.Kind == "postgres" {
		db.Schema = DefaultSchema
	}
	if db.SalesTable == "" {
		db.SalesTable = "vendas"
	}
	if db.ProductsTable == "" {
		db.ProductsTable = "produtos"
	}
	if db.CustomersTable == "" {
		db.CustomersTable = "clientes"
	}
	if db.LoadMode == "" {
		db.LoadMode = LoadAppend
	}
	if len(db.KeyColumns) == 0 {
		db.KeyColumns = []string{"cod_id_venda_unico", "cod_id_produto"}
	}
	if db.ConnectRetries <= 0 {
		db.ConnectRetries = DefaultConnectRetries
	}
	if db.ConnectDelayMS <= 0 {
		db.ConnectDelayMS = DefaultConnectDelayMS
	}

	e := &p.Export
	if e.Path == "" {
		e.Path = "output/vendas_enriquecidas"
	}
	if e.ChunkSize <= 0 {
		e.ChunkSize = DefaultExportChunkSize
	}
	if e.DateColumn == "" {
		e.DateColumn = "data_venda"
	}
	if e.YearColumn == "" {
		e.YearColumn = "year"
	}
	if e.MonthColumn == "" {
		e.MonthColumn = "month"
	}
	if e.Compression == "" {
		e.Compression = "snappy"
	}

	if p.Reports.OutputDir == "" {
		p.Reports.OutputDir = "output"
	}
	if p.Reports.Parallelism <= 0 {
		p.Reports.Parallelism = 1
	}
}

// ApplyEnv overlays environment variables onto the pipeline (12-factor
// style). getenv is usually os.Getenv.
//
// Recognized variables:
//
//	POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB
//	ETL_DSN, ETL_CHUNK_SIZE, ETL_EXPORT_CHUNK_SIZE, ETL_LOAD_MODE
func (p *Pipeline) ApplyEnv(getenv func(string) string) error {
	if s := getenv("ETL_DSN"); s != "" {
		p.Storage.DB.DSN = s
	}
	if p.Storage.DB.DSN == "" && p.Storage.Kind == "postgres" {
		dsn, err := PostgresDSNFromEnv(getenv)
		if err != nil {
			return err
		}
		p.Storage.DB.DSN = dsn
	}
	p.Parser.ChunkSize = pickInt(envInt(getenv, "ETL_CHUNK_SIZE"), p.Parser.ChunkSize)
	p.Export.ChunkSize = pickInt(envInt(getenv, "ETL_EXPORT_CHUNK_SIZE"), p.Export.ChunkSize)
	if s := getenv("ETL_LOAD_MODE"); s != "" {
		p.Storage.DB.LoadMode = s
	}
	return nil
}

// PostgresDSNFromEnv assembles a postgres URL from POSTGRES_* variables.
// User, password and database are required; host and port default to
// localhost:5432.
func PostgresDSNFromEnv(getenv func(string) string) (string, error) {
	user := getenv("POSTGRES_USER")
	password := getenv("POSTGRES_PASSWORD")
	db := getenv("POSTGRES_DB")
	if user == "" || password == "" || db == "" {
		return "", errors.New("postgres environment (POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DB) is not set")
	}
	host := getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	port := getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   host + ":" + port,
		Path:   "/" + db,
	}
	return u.String(), nil
}

// QualifiedTable joins the configured schema and a table name.
func (d DBConfig) QualifiedTable(table string) string {
	if d.Schema == "" {
		return table
	}
	return d.Schema + "." + table
}

func envInt(getenv func(string) string, k string) int {
	if s := getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
