// Package migrate orchestrates the full migration run: schema bootstrap,
// then the three tables in fixed order (stock_basic, daily_k_data,
// adjust_factor). The small tables are read whole; the daily-bar table is
// streamed in fixed-size pages so memory stays bounded regardless of how
// many bars the source holds.
//
// The orchestrator is written against narrow Source and Dest interfaces so
// its control flow is testable without either database.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/equinax/stockmigrate/internal/config"
	"github.com/equinax/stockmigrate/internal/dest"
	"github.com/equinax/stockmigrate/internal/metrics"
	"github.com/equinax/stockmigrate/internal/model"
	"github.com/equinax/stockmigrate/internal/normalize"
	"github.com/equinax/stockmigrate/internal/source"
)

// Sentinel errors classifying which side of the pipeline failed. Both are
// always wrapped with context; test with errors.Is.
var (
	// ErrSource marks failures reading the source SQLite database.
	ErrSource = errors.New("source failure")
	// ErrDest marks failures connecting to or writing the destination.
	ErrDest = errors.New("destination failure")
)

// Phase names the orchestrator's position in the run, for logging.
type Phase string

const (
	PhaseInit        Phase = "init"
	PhaseSchemaReady Phase = "schema_ready"
	PhaseMigrating   Phase = "migrating"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// Summary reports what one migration run accomplished.
type Summary struct {
	Instruments   int64
	DailyBars     int64
	AdjustFactors int64
	Elapsed       time.Duration
}

// Source is the read side of the pipeline.
type Source interface {
	Count(ctx context.Context, table string) (int64, error)
	FetchAll(ctx context.Context, table string) ([]normalize.Row, error)
	Pages(ctx context.Context, table string, size int) (Pager, error)
}

// Pager yields successive pages of raw rows; (nil, nil) means exhausted.
type Pager interface {
	Next() ([]normalize.Row, error)
	Close() error
}

// Dest is the write side of the pipeline.
type Dest interface {
	EnsureSchema(ctx context.Context) error
	UpsertInstruments(ctx context.Context, recs []model.Instrument) (int, error)
	InsertDailyBars(ctx context.Context, recs []model.DailyBar) (int, error)
	InsertAdjustFactors(ctx context.Context, recs []model.AdjustFactor) (int, error)
}

// Run executes a complete migration described by cfg: open both stores,
// bootstrap the destination schema, migrate the three tables, and return a
// summary. Connectivity failures on either side surface before any migration
// work starts.
func Run(ctx context.Context, cfg config.Config) (Summary, error) {
	cfg = cfg.WithDefaults()
	if issues := config.Validate(cfg); config.HasError(issues) {
		return Summary{}, fmt.Errorf("migrate: invalid config: %v", issues)
	}

	src, closeSrc, err := source.Open(ctx, cfg.SourcePath)
	if err != nil {
		return Summary{}, fmt.Errorf("migrate: %w: %w", ErrSource, err)
	}
	defer closeSrc()

	repo, closeRepo, err := dest.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		return Summary{}, fmt.Errorf("migrate: %w: %w", ErrDest, err)
	}
	defer closeRepo()

	return run(ctx, cfg, sqliteSource{src}, repo)
}

// run is the transport-free core of Run.
func run(ctx context.Context, cfg config.Config, src Source, dst Dest) (Summary, error) {
	start := time.Now()
	phase := PhaseInit

	log.Printf("phase=%s creating destination schema", phase)
	stepStart := time.Now()
	err := dst.EnsureSchema(ctx)
	metrics.RecordStep(cfg.Job, "schema", err, time.Since(stepStart))
	if err != nil {
		return Summary{}, fmt.Errorf("migrate: schema: %w: %w", ErrDest, err)
	}
	phase = PhaseSchemaReady
	log.Printf("phase=%s schema ready", phase)

	phase = PhaseMigrating
	log.Printf("phase=%s batch_size=%s", phase, humanize.Comma(int64(cfg.BatchSize)))
	var sum Summary

	sum.Instruments, err = migrateInstruments(ctx, cfg, src, dst)
	if err != nil {
		log.Printf("phase=%s table=stock_basic error=%v", PhaseFailed, err)
		return sum, err
	}

	sum.DailyBars, err = migrateDailyBars(ctx, cfg, src, dst)
	if err != nil {
		log.Printf("phase=%s table=daily_k_data error=%v", PhaseFailed, err)
		return sum, err
	}

	sum.AdjustFactors, err = migrateAdjustFactors(ctx, cfg, src, dst)
	if err != nil {
		log.Printf("phase=%s table=adjust_factor error=%v", PhaseFailed, err)
		return sum, err
	}

	sum.Elapsed = time.Since(start)
	phase = PhaseDone
	log.Printf("phase=%s elapsed=%s", phase, sum.Elapsed.Round(time.Millisecond))
	return sum, nil
}

// migrateInstruments moves the instrument metadata table in one fetch; it is
// small (thousands of rows) and paging it would only complicate the upsert.
func migrateInstruments(ctx context.Context, cfg config.Config, src Source, dst Dest) (n int64, err error) {
	stepStart := time.Now()
	defer func() { metrics.RecordStep(cfg.Job, "stock_basic", err, time.Since(stepStart)) }()

	log.Printf("migrating stock_basic...")
	rows, err := src.FetchAll(ctx, "stock_basic")
	if err != nil {
		return 0, fmt.Errorf("migrate: stock_basic: %w: %w", ErrSource, err)
	}
	if len(rows) == 0 {
		log.Printf("no data in stock_basic")
		return 0, nil
	}
	log.Printf("found %s records", humanize.Comma(int64(len(rows))))

	recs := make([]model.Instrument, len(rows))
	for i, row := range rows {
		recs[i] = normalize.Instrument(row)
	}

	written, err := dst.UpsertInstruments(ctx, recs)
	if err != nil {
		return 0, fmt.Errorf("migrate: stock_basic: %w: %w", ErrDest, err)
	}
	metrics.RecordRows(cfg.Job, "stock_basic", int64(written))
	metrics.RecordBatches(cfg.Job, 1)
	log.Printf("stock_basic done: %s rows", humanize.Comma(int64(written)))
	return int64(written), nil
}

// migrateDailyBars streams the daily-bar table page by page. Each page is
// normalized and written as one batch, so at most cfg.BatchSize rows are in
// memory at a time.
func migrateDailyBars(ctx context.Context, cfg config.Config, src Source, dst Dest) (n int64, err error) {
	stepStart := time.Now()
	defer func() { metrics.RecordStep(cfg.Job, "daily_k_data", err, time.Since(stepStart)) }()

	log.Printf("migrating daily_k_data...")
	total, err := src.Count(ctx, "daily_k_data")
	if err != nil {
		return 0, fmt.Errorf("migrate: daily_k_data: %w: %w", ErrSource, err)
	}
	if total == 0 {
		log.Printf("no data in daily_k_data")
		return 0, nil
	}
	log.Printf("found %s records", humanize.Comma(total))

	pager, err := src.Pages(ctx, "daily_k_data", cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("migrate: daily_k_data: %w: %w", ErrSource, err)
	}
	defer pager.Close()

	var migrated int64
	for {
		page, err := pager.Next()
		if err != nil {
			return migrated, fmt.Errorf("migrate: daily_k_data: %w: %w", ErrSource, err)
		}
		if page == nil {
			break
		}

		recs := make([]model.DailyBar, len(page))
		for i, row := range page {
			recs[i] = normalize.DailyBar(row)
		}

		written, err := dst.InsertDailyBars(ctx, recs)
		if err != nil {
			return migrated, fmt.Errorf("migrate: daily_k_data: %w: %w", ErrDest, err)
		}
		migrated += int64(written)
		metrics.RecordRows(cfg.Job, "daily_k_data", int64(written))
		metrics.RecordBatches(cfg.Job, 1)

		log.Printf("  progress: %s/%s (%.1f%%)",
			humanize.Comma(migrated), humanize.Comma(total),
			float64(migrated)/float64(total)*100)
	}

	log.Printf("daily_k_data done: %s rows", humanize.Comma(migrated))
	return migrated, nil
}

// migrateAdjustFactors moves the adjustment-factor table in one fetch, same
// reasoning as the instrument table.
func migrateAdjustFactors(ctx context.Context, cfg config.Config, src Source, dst Dest) (n int64, err error) {
	stepStart := time.Now()
	defer func() { metrics.RecordStep(cfg.Job, "adjust_factor", err, time.Since(stepStart)) }()

	log.Printf("migrating adjust_factor...")
	rows, err := src.FetchAll(ctx, "adjust_factor")
	if err != nil {
		return 0, fmt.Errorf("migrate: adjust_factor: %w: %w", ErrSource, err)
	}
	if len(rows) == 0 {
		log.Printf("no data in adjust_factor")
		return 0, nil
	}
	log.Printf("found %s records", humanize.Comma(int64(len(rows))))

	recs := make([]model.AdjustFactor, len(rows))
	for i, row := range rows {
		recs[i] = normalize.AdjustFactor(row)
	}

	written, err := dst.InsertAdjustFactors(ctx, recs)
	if err != nil {
		return 0, fmt.Errorf("migrate: adjust_factor: %w: %w", ErrDest, err)
	}
	metrics.RecordRows(cfg.Job, "adjust_factor", int64(written))
	metrics.RecordBatches(cfg.Job, 1)
	log.Printf("adjust_factor done: %s rows", humanize.Comma(int64(written)))
	return int64(written), nil
}

// sqliteSource adapts *source.DB to the Source interface; the concrete Pages
// returns *source.Pager, which Go will not lift to the interface on its own.
type sqliteSource struct {
	db *source.DB
}

func (s sqliteSource) Count(ctx context.Context, table string) (int64, error) {
	return s.db.Count(ctx, table)
}

func (s sqliteSource) FetchAll(ctx context.Context, table string) ([]normalize.Row, error) {
	return s.db.FetchAll(ctx, table)
}

func (s sqliteSource) Pages(ctx context.Context, table string, size int) (Pager, error) {
	p, err := s.db.Pages(ctx, table, size)
	if err != nil {
		return nil, err
	}
	return p, nil
}
