// Package coerce converts untyped source values into destination-typed
// values. Every function here is total: unparsable, empty, or absent input
// yields nil (destination NULL) rather than an error. The source store is
// allowed to be dirty and a single bad cell must never abort a migration, so
// the swallow-on-failure decision is made visible in the signatures instead
// of hidden behind recover/ignore idioms.
package coerce

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only textual date format the source emits.
const DateLayout = "2006-01-02"

// Date accepts a YYYY-MM-DD string or an already-structured time.Time.
// Anything else, including the empty string, yields nil.
func Date(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return &t
	case *time.Time:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil
		}
		return &d
	case []byte:
		return Date(string(t))
	default:
		return nil
	}
}

// Decimal accepts numeric text or a numeric value and preserves the exact
// decimal representation; string input is never round-tripped through binary
// floating point. Empty, absent, or unparsable input yields nil.
func Decimal(v any) *decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return &t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil
		}
		return &d
	case []byte:
		return Decimal(string(t))
	case float64:
		d := decimal.NewFromFloat(t)
		return &d
	case float32:
		d := decimal.NewFromFloat32(t)
		return &d
	case int64:
		d := decimal.NewFromInt(t)
		return &d
	case int:
		d := decimal.NewFromInt(int64(t))
		return &d
	default:
		return nil
	}
}

// Int accepts numeric text or a numeric value, tolerating a trailing
// fractional component ("1.0") by truncating through a float parse. Empty,
// absent, or unparsable input yields nil.
func Int(v any) *int64 {
	switch t := v.(type) {
	case nil:
		return nil
	case int64:
		return &t
	case int:
		n := int64(t)
		return &n
	case float64:
		n := int64(t)
		return &n
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		n := int64(f)
		return &n
	case []byte:
		return Int(string(t))
	default:
		return nil
	}
}
