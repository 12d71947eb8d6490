package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/equinax/stockmigrate/internal/config"
	"github.com/equinax/stockmigrate/internal/metrics"
	"github.com/equinax/stockmigrate/internal/metrics/prompush"
	"github.com/equinax/stockmigrate/internal/migrate"
)

// main is the entry point for the migration binary. It resolves the run
// configuration from flags and environment, optionally initializes a metrics
// backend, and executes the migration.
func main() {
	var (
		sourcePath        string
		databaseURLFlg    string
		batchSize         int
		jobName           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
	)

	flag.StringVar(&sourcePath, "source", config.DefaultSourcePath, "path to the source SQLite database")
	flag.StringVar(&databaseURLFlg, "database-url", "", "destination Postgres URL (overrides env DATABASE_URL)")
	flag.IntVar(&batchSize, "batch-size", config.DefaultBatchSize, "rows per daily-bar read/write batch")
	flag.StringVar(&jobName, "job", config.DefaultJob, "job name for metrics labeling")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (e.g. pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// Decide destination URL: flag → env → default.
	databaseURL := databaseURLFlg
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = config.DefaultDatabaseURL
	}

	cfg := config.Config{
		SourcePath:  sourcePath,
		DatabaseURL: databaseURL,
		BatchSize:   batchSize,
		Job:         jobName,
	}.WithDefaults()

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		log.Printf("Configuration is invalid")
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid")
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		b, err := prompush.NewBackend(cfg.Job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, cfg.Job)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	log.Printf("source: %s", cfg.SourcePath)
	log.Printf("destination: %s", maskPassword(cfg.DatabaseURL))
	if *verbose {
		log.Printf("batch size: %s", humanize.Comma(int64(cfg.BatchSize)))
	}

	sum, err := migrate.Run(context.Background(), cfg)
	if err != nil {
		switch {
		case errors.Is(err, migrate.ErrSource):
			log.Printf("source error: %v", err)
		case errors.Is(err, migrate.ErrDest):
			log.Printf("destination error: %v", err)
		default:
			log.Printf("%v", err)
		}
		os.Exit(1)
	}

	log.Printf("migration complete in %s", sum.Elapsed.Truncate(time.Millisecond))
	log.Printf("  stock_basic:   %s rows", humanize.Comma(sum.Instruments))
	log.Printf("  daily_k_data:  %s rows", humanize.Comma(sum.DailyBars))
	log.Printf("  adjust_factor: %s rows", humanize.Comma(sum.AdjustFactors))
}

// maskPassword hides the password component of a connection URL for logging.
func maskPassword(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
