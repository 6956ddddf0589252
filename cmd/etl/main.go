package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"salesetl/internal/config"
	"salesetl/internal/metrics"
	"salesetl/internal/metrics/datadog"
	"salesetl/internal/metrics/prompush"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "salesetl/internal/storage/all"
)

// main is the entry point for the ETL binary. It loads the pipeline config,
// optionally initializes a metrics backend, and executes the run.
func main() {
	var (
		cfgPath           string
		envPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		dogstatsdAddrFlg  string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/vendas.json", "pipeline config path (.json, .yaml, .yml)")
	flag.StringVar(&envPath, "env", ".env", "dotenv file with connection variables (ignored when missing)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&dogstatsdAddrFlg, "dogstatsd-addr", "", "DogStatsD address (overrides env DD_DOGSTATSD_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := loadPipeline(cfgPath, envPath, os.Getenv)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	backendName := pick(metricsBackendFlg, os.Getenv("METRICS_BACKEND"))
	if b := newMetricsBackend(backendName, p.Job, pushGatewayURLFlg, dogstatsdAddrFlg, os.Getenv); b != nil {
		metrics.SetBackend(b)
	} else if *verbose {
		log.Printf("metrics: disabled (backend=%q)", backendName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *verbose {
		log.Printf("pipeline: job=%s storage=%s schema=%s load_mode=%s chunk=%d export=%s",
			p.Job, p.Storage.Kind, p.Storage.DB.Schema, p.Storage.DB.LoadMode, p.Parser.ChunkSize, p.Export.Path)
	}

	sum, err := run(ctx, p, *verbose)
	if err != nil {
		log.Printf("run aborted: %v", err)
	}
	logSummary(sum)

	if ferr := metrics.Flush(); ferr != nil {
		log.Printf("metrics: flush error: %v", ferr)
	}
	code := exitCode(sum, err)
	stop()
	os.Exit(code)
}

// loadPipeline reads the config file, the dotenv file and the environment,
// in that order, and applies defaults.
func loadPipeline(cfgPath, envPath string, getenv func(string) string) (config.Pipeline, error) {
	if envPath != "" {
		if err := config.LoadDotEnv(envPath); err != nil {
			return config.Pipeline{}, fmt.Errorf("load env: %w", err)
		}
	}
	p, err := config.Load(cfgPath)
	if err != nil {
		return p, err
	}
	p.ApplyDefaults()
	if err := p.ApplyEnv(getenv); err != nil {
		return p, fmt.Errorf("environment: %w", err)
	}
	return p, nil
}

// newMetricsBackend builds the selected backend. Flags win over the
// environment. It returns nil when metrics are disabled or the backend
// cannot be created.
func newMetricsBackend(name, job, gwURL, ddAddr string, getenv func(string) string) metrics.Backend {
	switch name {
	case "pushgateway":
		url := pick(gwURL, getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err := prompush.NewBackend(job, url)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return nil
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", url, name, job)
		return b
	case "datadog":
		addr := pick(ddAddr, getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125")
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "salesetl.",
			GlobalTags: []string{"job:" + job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return nil
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, name, job)
		return b
	case "", "none":
		return nil
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
		return nil
	}
}

// pick returns the first non-empty value.
func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
