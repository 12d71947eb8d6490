package dest

import (
	"context"
	"fmt"
)

// schemaDDL creates the destination tables and indexes. Every statement is
// declarative ("IF NOT EXISTS"), so EnsureSchema is safe to run on every
// migration, populated destination or not.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS stock_basic (
		code VARCHAR(20) PRIMARY KEY,
		code_name VARCHAR(100),
		ipo_date DATE,
		out_date DATE,
		stock_type INTEGER,
		status INTEGER,
		exchange VARCHAR(10),
		sector VARCHAR(50),
		industry VARCHAR(100),
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS daily_k_data (
		id BIGSERIAL PRIMARY KEY,
		date DATE NOT NULL,
		code VARCHAR(20) NOT NULL,
		open NUMERIC(12, 4),
		high NUMERIC(12, 4),
		low NUMERIC(12, 4),
		close NUMERIC(12, 4),
		preclose NUMERIC(12, 4),
		volume BIGINT,
		amount NUMERIC(18, 2),
		turn NUMERIC(8, 4),
		trade_status INTEGER,
		pct_chg NUMERIC(8, 4),
		pe_ttm NUMERIC(12, 4),
		pb_mrq NUMERIC(12, 4),
		ps_ttm NUMERIC(12, 4),
		pcf_ncf_ttm NUMERIC(12, 4),
		is_st INTEGER,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(code, date)
	)`,

	`CREATE TABLE IF NOT EXISTS adjust_factor (
		id BIGSERIAL PRIMARY KEY,
		code VARCHAR(20) NOT NULL,
		divid_operate_date DATE,
		fore_adjust_factor NUMERIC(12, 6),
		back_adjust_factor NUMERIC(12, 6),
		adjust_factor NUMERIC(12, 6),
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(code, divid_operate_date)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_daily_k_date ON daily_k_data(date)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_k_code ON daily_k_data(code)`,
	`CREATE INDEX IF NOT EXISTS idx_adjust_factor_code ON adjust_factor(code)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_basic_exchange ON stock_basic(exchange)`,
}

// EnsureSchema creates the destination tables and indexes if absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaDDL {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("dest: ddl: %w", err)
		}
	}
	return nil
}
