// Package normalize maps raw source rows onto the typed destination records
// in internal/model. A raw row is a column-name → value map exactly as read
// from the source store; the mapping from that shape to fixed fields happens
// here, once, and nowhere else.
//
// All field conversion goes through internal/coerce, so a bad cell becomes a
// NULL instead of failing the row.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/equinax/stockmigrate/internal/coerce"
	"github.com/equinax/stockmigrate/internal/model"
)

// Row is a raw source record: source column name → untyped value.
type Row = map[string]any

// Instrument maps a stock_basic source row to a typed Instrument record.
//
// The exchange is derived from the code prefix convention: "sh." → "sh",
// "sz." → "sz", any other prefix → NULL. Sector and industry are emitted as
// NULL placeholders until an enrichment source exists.
func Instrument(row Row) model.Instrument {
	code := str(row["code"])
	return model.Instrument{
		Code:     code,
		Name:     cleanName(str(row["code_name"])),
		IPODate:  coerce.Date(row["ipo_date"]),
		OutDate:  coerce.Date(row["out_date"]),
		Type:     coerce.Int(row["type"]),
		Status:   coerce.Int(row["status"]),
		Exchange: exchangeFor(code),
		Sector:   nil,
		Industry: nil,
	}
}

// DailyBar maps a daily_k_data source row to a typed DailyBar record. Source
// column names keep baostock's mixed-case convention (pctChg, peTTM, ...).
func DailyBar(row Row) model.DailyBar {
	return model.DailyBar{
		Date:        coerce.Date(row["date"]),
		Code:        str(row["code"]),
		Open:        coerce.Decimal(row["open"]),
		High:        coerce.Decimal(row["high"]),
		Low:         coerce.Decimal(row["low"]),
		Close:       coerce.Decimal(row["close"]),
		PreClose:    coerce.Decimal(row["preclose"]),
		Volume:      coerce.Int(row["volume"]),
		Amount:      coerce.Decimal(row["amount"]),
		Turn:        coerce.Decimal(row["turn"]),
		TradeStatus: coerce.Int(row["tradestatus"]),
		PctChg:      coerce.Decimal(row["pctChg"]),
		PETTM:       coerce.Decimal(row["peTTM"]),
		PBMRQ:       coerce.Decimal(row["pbMRQ"]),
		PSTTM:       coerce.Decimal(row["psTTM"]),
		PCFNcfTTM:   coerce.Decimal(row["pcfNcfTTM"]),
		IsST:        coerce.Int(row["isST"]),
	}
}

// AdjustFactor maps an adjust_factor source row to a typed record.
func AdjustFactor(row Row) model.AdjustFactor {
	return model.AdjustFactor{
		Code:             str(row["code"]),
		DividOperateDate: coerce.Date(row["dividOperateDate"]),
		ForeAdjustFactor: coerce.Decimal(row["foreAdjustFactor"]),
		BackAdjustFactor: coerce.Decimal(row["backAdjustFactor"]),
		AdjustFactor:     coerce.Decimal(row["adjustFactor"]),
	}
}

// exchangeFor derives the exchange code from the instrument code prefix.
func exchangeFor(code string) *string {
	switch {
	case strings.HasPrefix(code, "sh."):
		sh := "sh"
		return &sh
	case strings.HasPrefix(code, "sz."):
		sz := "sz"
		return &sz
	default:
		return nil
	}
}

// nameCleaner normalizes display names to NFC and strips control characters
// that occasionally leak into source dumps.
var nameCleaner = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.C)), norm.NFC)

// cleanName returns a normalized display name. On a transform error the
// input is returned unchanged; a messy name is better than a lost one.
func cleanName(s string) string {
	out, _, err := transform.String(nameCleaner, s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(out)
}

// str reads a string-ish value out of a raw row.
func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	default:
		return ""
	}
}
