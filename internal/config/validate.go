package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "reports.queries[1].sql"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation / linting of a Pipeline. It is
// meant to run after ApplyDefaults and ApplyEnv.
//
// It does not mutate the pipeline.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSources(p.Sources)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateExport(p.Export)...)
	issues = append(issues, validateExportRoot(p)...)
	issues = append(issues, validateReports(p.Reports)...)

	return issues
}

func validateSources(s Sources) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Sales.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "sources.sales.path",
			Message:  "no sales source configured; the sales load will be skipped",
		})
	}
	for name, f := range map[string]SourceFile{"sales": s.Sales, "products": s.Products, "customers": s.Customers} {
		switch strings.ToLower(f.Encoding) {
		case "", "utf-8", "utf8", "latin1", "iso-8859-1", "windows-1252", "cp1252":
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("sources.%s.encoding", name),
				Message:  fmt.Sprintf("unsupported encoding %q", f.Encoding),
			})
		}
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	if utf8.RuneCountInString(p.Comma) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.comma",
			Message:  fmt.Sprintf("comma must be a single character, got %q", p.Comma),
		})
	}
	if p.ChunkSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.chunk_size",
			Message:  "chunk_size must be positive",
		})
	}
	if _, err := regexp.Compile(p.SyntheticColumns); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.synthetic_columns",
			Message:  fmt.Sprintf("invalid pattern: %v", err),
		})
	}
	switch p.OnSchemaError {
	case OnSchemaAbort, OnSchemaSkipChunk:
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.on_schema_error",
			Message:  fmt.Sprintf("unknown policy %q; want %q or %q", p.OnSchemaError, OnSchemaAbort, OnSchemaSkipChunk),
		})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q", s.Kind),
		})
	}

	db := s.DB
	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty (set it or the POSTGRES_* environment)",
		})
	}
	for path, name := range map[string]string{
		"storage.db.sales_table":     db.SalesTable,
		"storage.db.products_table":  db.ProductsTable,
		"storage.db.customers_table": db.CustomersTable,
	} {
		if strings.TrimSpace(name) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  "table name must not be empty",
			})
		}
	}

	switch db.LoadMode {
	case LoadAppend:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.db.load_mode",
			Message:  "append mode does not deduplicate across runs; repeated runs accumulate duplicate sales",
		})
	case LoadReplace:
	case LoadUpsert:
		if len(db.KeyColumns) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.db.key_columns",
				Message:  "upsert mode requires key_columns",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.load_mode",
			Message:  fmt.Sprintf("unknown load mode %q; want append, replace or upsert", db.LoadMode),
		})
	}
	return issues
}

func validateExport(e Export) []Issue {
	if e.Disabled {
		return nil
	}
	var issues []Issue
	if strings.TrimSpace(e.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.path",
			Message:  "export.path must not be empty",
		})
	}
	if e.ChunkSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.chunk_size",
			Message:  "chunk_size must be positive",
		})
	}
	if e.YearColumn == e.MonthColumn {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.month_column",
			Message:  "year and month partition columns must differ",
		})
	}
	switch e.Compression {
	case "snappy", "zstd", "gzip", "none":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.compression",
			Message:  fmt.Sprintf("unknown compression %q", e.Compression),
		})
	}
	if e.S3.Bucket != "" && e.S3.Region == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "export.s3.region",
			Message:  "no region configured; AWS_REGION will be used",
		})
	}
	return issues
}

// validateExportRoot rejects an export path that would cover the report
// directory or a source file, since the export clears its partitions there.
func validateExportRoot(p Pipeline) []Issue {
	if p.Export.Disabled || strings.TrimSpace(p.Export.Path) == "" {
		return nil
	}
	root := filepath.Clean(p.Export.Path)
	var issues []Issue
	if root == "." || root == string(filepath.Separator) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.path",
			Message:  fmt.Sprintf("export.path %q must be a dedicated directory", p.Export.Path),
		})
		return issues
	}
	within := func(path string) bool {
		if path == "" {
			return false
		}
		rel, err := filepath.Rel(root, filepath.Clean(path))
		return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
	}
	if within(p.Reports.OutputDir) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.path",
			Message:  fmt.Sprintf("export.path %q contains reports.output_dir %q", p.Export.Path, p.Reports.OutputDir),
		})
	}
	for name, f := range map[string]SourceFile{"sales": p.Sources.Sales, "products": p.Sources.Products, "customers": p.Sources.Customers} {
		if within(f.Path) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "export.path",
				Message:  fmt.Sprintf("export.path %q contains sources.%s.path %q", p.Export.Path, name, f.Path),
			})
		}
	}
	return issues
}

func validateReports(r Reports) []Issue {
	var issues []Issue
	seen := make(map[string]int, len(r.Queries))
	for i, q := range r.Queries {
		if strings.TrimSpace(q.Name) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("reports.queries[%d].name", i),
				Message:  "report name must not be empty",
			})
		} else if strings.ContainsAny(q.Name, `/\`) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("reports.queries[%d].name", i),
				Message:  "report name must not contain path separators",
			})
		}
		if prev, dup := seen[q.Name]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("reports.queries[%d].name", i),
				Message:  fmt.Sprintf("duplicate report name (also at index %d)", prev),
			})
		}
		seen[q.Name] = i
		if strings.TrimSpace(q.SQL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("reports.queries[%d].sql", i),
				Message:  "report sql must not be empty",
			})
		}
	}
	return issues
}
