// Package source reads raw rows from the SQLite store being migrated. It
// uses database/sql with the cgo-free modernc driver and exposes the two
// access patterns the migration needs: a whole-table fetch for the small
// tables and fixed-size paging for the large one.
//
// Rows come back as column-name → value maps; typing them is the
// normalizer's job, not the reader's.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	// SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// Row is one raw source record keyed by source column name.
type Row = map[string]any

// DB is a read-only handle on the source SQLite database.
type DB struct {
	db *sql.DB
}

// Open validates that path exists and opens it, returning the handle plus a
// Close function for cleanup. The driver would happily create a missing file,
// which for a migration source is always a mistake, so absence is an error.
func Open(ctx context.Context, path string) (*DB, func(), error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil, fmt.Errorf("source: path must not be empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("source: database not found at %s: %w", path, err)
	}
	return open(ctx, path)
}

// open connects to the given DSN and pings with a short timeout to fail fast
// on unreadable files.
func open(ctx context.Context, dsn string) (*DB, func(), error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("source: open: %w", err)
	}
	// The paged reader holds one *sql.Rows across calls; a single connection
	// keeps every query on the same snapshot of the file.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("source: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &DB{db: db}, closeFn, nil
}

// Count reports the total number of rows in table, for progress reporting.
func (d *DB) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := d.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("source: count %s: %w", table, err)
	}
	return n, nil
}

// FetchAll reads every row of table into memory. Intended for the small
// tables only (instrument metadata, adjustment factors); the large daily-bar
// table goes through Pages.
func (d *DB) FetchAll(ctx context.Context, table string) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("source: select %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("source: columns %s: %w", table, err)
	}

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows, cols)
		if err != nil {
			return nil, fmt.Errorf("source: scan %s: %w", table, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source: read %s: %w", table, err)
	}
	return out, nil
}

// Pages starts a forward-only, non-restartable paged read over table. Each
// Next call yields up to size rows; a short or empty page signals
// exhaustion. The caller must Close the pager when done.
func (d *DB) Pages(ctx context.Context, table string, size int) (*Pager, error) {
	if size <= 0 {
		return nil, fmt.Errorf("source: page size must be > 0, got %d", size)
	}
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("source: select %s: %w", table, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("source: columns %s: %w", table, err)
	}
	return &Pager{rows: rows, cols: cols, size: size, table: table}, nil
}

// Pager is a finite, lazy sequence of raw-row chunks over one table.
type Pager struct {
	rows  *sql.Rows
	cols  []string
	size  int
	table string
	done  bool
}

// Next returns the next page of rows, or (nil, nil) once the sequence is
// exhausted. A page shorter than the configured size is the final one.
func (p *Pager) Next() ([]Row, error) {
	if p.done {
		return nil, nil
	}

	page := make([]Row, 0, p.size)
	for len(page) < p.size && p.rows.Next() {
		r, err := scanRow(p.rows, p.cols)
		if err != nil {
			p.done = true
			return nil, fmt.Errorf("source: scan %s: %w", p.table, err)
		}
		page = append(page, r)
	}
	if err := p.rows.Err(); err != nil {
		p.done = true
		return nil, fmt.Errorf("source: read %s: %w", p.table, err)
	}

	if len(page) < p.size {
		p.done = true
		p.rows.Close()
	}
	if len(page) == 0 {
		return nil, nil
	}
	return page, nil
}

// Close releases the underlying cursor. Safe to call after exhaustion.
func (p *Pager) Close() error {
	p.done = true
	return p.rows.Close()
}

// scanRow reads the current cursor position into a Row keyed by cols.
func scanRow(rows *sql.Rows, cols []string) (Row, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	r := make(Row, len(cols))
	for i, c := range cols {
		r[c] = vals[i]
	}
	return r, nil
}
