// Package dest writes typed record batches into the destination Postgres
// schema using pgx v5. Each batch is persisted with one logical multi-row
// INSERT carrying the table's conflict policy:
//
//   - stock_basic: refresh-subset. On a code conflict only the display name
//     and updated_at are refreshed, everything else is immutable.
//   - daily_k_data, adjust_factor: insert-if-absent. A conflicting compound
//     key leaves the existing row untouched.
//
// A batch larger than the wire protocol allows is split into several
// statements, but always inside one transaction, so the batch remains the
// atomicity unit the orchestrator relies on.
package dest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/equinax/stockmigrate/internal/model"
)

// maxParams is the Postgres extended-protocol bind limit (uint16).
const maxParams = 65535

// Repository is a Postgres-backed destination for the three entity tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects to the destination and returns the repository plus
// a Close function for cleanup. The pool is pinged so an unreachable
// destination fails here, before any migration work starts.
func NewRepository(ctx context.Context, dsn string) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("dest: pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("dest: ping: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool}, closeFn, nil
}

// UpsertInstruments writes one batch of instruments with the refresh-subset
// policy and returns the number of records handed in.
func (r *Repository) UpsertInstruments(ctx context.Context, recs []model.Instrument) (int, error) {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		rows[i] = rec.Values()
	}
	if err := r.insertBatch(ctx, "stock_basic", model.InstrumentColumns, conflictInstruments, rows); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// InsertDailyBars writes one batch of daily bars with the insert-if-absent
// policy and returns the number of records handed in. Rows whose compound
// key already exists are skipped silently; the count deliberately does not
// reflect that.
func (r *Repository) InsertDailyBars(ctx context.Context, recs []model.DailyBar) (int, error) {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		rows[i] = rec.Values()
	}
	if err := r.insertBatch(ctx, "daily_k_data", model.DailyBarColumns, conflictDailyBars, rows); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// InsertAdjustFactors writes one batch of adjustment factors with the
// insert-if-absent policy and returns the number of records handed in.
func (r *Repository) InsertAdjustFactors(ctx context.Context, recs []model.AdjustFactor) (int, error) {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		rows[i] = rec.Values()
	}
	if err := r.insertBatch(ctx, "adjust_factor", model.AdjustFactorColumns, conflictAdjustFactors, rows); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Conflict policies per destination table. The instrument
// policy refreshes the mutable subset; the compound-key tables never update.
const (
	conflictInstruments = `ON CONFLICT (code) DO UPDATE SET code_name = EXCLUDED.code_name, updated_at = CURRENT_TIMESTAMP`

	conflictDailyBars = `ON CONFLICT (code, date) DO NOTHING`

	conflictAdjustFactors = `ON CONFLICT (code, divid_operate_date) DO NOTHING`
)

// insertBatch writes rows into table inside a single transaction, splitting
// the multi-row INSERT into chunks that stay under the bind-parameter limit.
func (r *Repository) insertBatch(ctx context.Context, table string, cols []string, conflict string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dest: begin %s: %w", table, err)
	}
	defer tx.Rollback(ctx)

	chunk := rowsPerStatement(len(cols))
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}
		part := rows[start:end]

		sql := insertSQL(table, cols, len(part), conflict)
		args := make([]any, 0, len(part)*len(cols))
		for _, row := range part {
			args = append(args, row...)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Detail != "" {
				return fmt.Errorf("dest: insert %s: %s (%s)", table, pgErr.Detail, pgErr.SQLState())
			}
			return fmt.Errorf("dest: insert %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dest: commit %s: %w", table, err)
	}
	return nil
}

// rowsPerStatement returns how many rows fit into one statement without
// exceeding the bind-parameter limit.
func rowsPerStatement(cols int) int {
	n := maxParams / cols
	if n < 1 {
		n = 1
	}
	return n
}

// insertSQL builds a multi-row parameterized INSERT with the given conflict
// clause, e.g.
//
//	INSERT INTO t ("a","b") VALUES ($1,$2),($3,$4) ON CONFLICT ... DO NOTHING
func insertSQL(table string, cols []string, nRows int, conflict string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(mapIdent(cols), ", "))
	b.WriteString(") VALUES ")

	arg := 1
	for r := 0; r < nRows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteString(")")
	}

	b.WriteString(" ")
	b.WriteString(conflict)
	return b.String()
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
