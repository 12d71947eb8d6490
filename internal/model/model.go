// Package model defines the typed destination records for the migration.
//
// Each source table maps to exactly one fixed-field record type with named,
// explicitly nullable attributes (pointer fields map to destination NULL).
// Raw map-shaped source rows never escape the normalizer boundary; everything
// downstream of it works with these types only.
//
// The ordered column lists here are the single source of truth for the
// multi-row INSERTs issued by the destination writer; Values() on each record
// must stay aligned with the matching column list.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Instrument is one row of the destination stock_basic table.
//
// Code is the globally unique identity ("sh.600000"). On re-migration only
// Name (and the DB-side updated_at) may change; every other attribute is
// immutable after first insert.
type Instrument struct {
	Code     string
	Name     string
	IPODate  *time.Time
	OutDate  *time.Time // delisting date; nil while listed
	Type     *int64
	Status   *int64
	Exchange *string // derived from the code prefix; nil for unknown venues
	Sector   *string // always nil today; placeholder for enrichment
	Industry *string // always nil today; placeholder for enrichment
}

// InstrumentColumns is the destination column order for stock_basic inserts.
var InstrumentColumns = []string{
	"code", "code_name", "ipo_date", "out_date",
	"stock_type", "status", "exchange", "sector", "industry",
}

// Values returns the record's fields aligned with InstrumentColumns.
func (r Instrument) Values() []any {
	return []any{
		r.Code, r.Name, r.IPODate, r.OutDate,
		r.Type, r.Status, r.Exchange, r.Sector, r.Industry,
	}
}

// DailyBar is one row of the destination daily_k_data table, keyed by
// (code, date). Prices carry 4 decimal places, amount 2; all value fields are
// nullable because the source is allowed to be dirty.
type DailyBar struct {
	Date        *time.Time
	Code        string
	Open        *decimal.Decimal
	High        *decimal.Decimal
	Low         *decimal.Decimal
	Close       *decimal.Decimal
	PreClose    *decimal.Decimal
	Volume      *int64
	Amount      *decimal.Decimal
	Turn        *decimal.Decimal
	TradeStatus *int64
	PctChg      *decimal.Decimal
	PETTM       *decimal.Decimal
	PBMRQ       *decimal.Decimal
	PSTTM       *decimal.Decimal
	PCFNcfTTM   *decimal.Decimal
	IsST        *int64
}

// DailyBarColumns is the destination column order for daily_k_data inserts.
var DailyBarColumns = []string{
	"date", "code", "open", "high", "low", "close", "preclose",
	"volume", "amount", "turn", "trade_status", "pct_chg",
	"pe_ttm", "pb_mrq", "ps_ttm", "pcf_ncf_ttm", "is_st",
}

// Values returns the record's fields aligned with DailyBarColumns.
func (r DailyBar) Values() []any {
	return []any{
		r.Date, r.Code, r.Open, r.High, r.Low, r.Close, r.PreClose,
		r.Volume, r.Amount, r.Turn, r.TradeStatus, r.PctChg,
		r.PETTM, r.PBMRQ, r.PSTTM, r.PCFNcfTTM, r.IsST,
	}
}

// AdjustFactor is one row of the destination adjust_factor table, keyed by
// (code, divid_operate_date). Each factor is a 6-decimal fixed-point ratio.
type AdjustFactor struct {
	Code             string
	DividOperateDate *time.Time
	ForeAdjustFactor *decimal.Decimal
	BackAdjustFactor *decimal.Decimal
	AdjustFactor     *decimal.Decimal
}

// AdjustFactorColumns is the destination column order for adjust_factor inserts.
var AdjustFactorColumns = []string{
	"code", "divid_operate_date",
	"fore_adjust_factor", "back_adjust_factor", "adjust_factor",
}

// Values returns the record's fields aligned with AdjustFactorColumns.
func (r AdjustFactor) Values() []any {
	return []any{
		r.Code, r.DividOperateDate,
		r.ForeAdjustFactor, r.BackAdjustFactor, r.AdjustFactor,
	}
}
