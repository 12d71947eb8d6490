package coerce

import (
	"testing"
	"time"
)

// TestDate verifies the accepted inputs (YYYY-MM-DD text, structured time)
// and that everything else coerces to nil instead of erroring.
func TestDate(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if got := Date("2024-03-15"); got == nil || !got.Equal(want) {
		t.Fatalf("Date(%q) = %v, want %v", "2024-03-15", got, want)
	}
	if got := Date(want); got == nil || !got.Equal(want) {
		t.Fatalf("Date(time.Time) = %v, want %v", got, want)
	}

	for _, bad := range []any{nil, "", "  ", "15.03.2024", "2024-13-40", "soon", 42.0} {
		if got := Date(bad); got != nil {
			t.Errorf("Date(%v) = %v, want nil", bad, got)
		}
	}
}

// TestDecimal verifies exact decimal text is preserved (no float rounding on
// the string path) and that garbage coerces to nil.
func TestDecimal(t *testing.T) {
	t.Parallel()

	d := Decimal("10.5800")
	if d == nil {
		t.Fatal("Decimal(\"10.5800\") = nil")
	}
	if d.String() != "10.5800" {
		t.Fatalf("Decimal(\"10.5800\") = %s, want the exact source representation 10.5800", d)
	}
	if !d.Equal(*Decimal("10.58")) {
		t.Fatalf("Decimal(\"10.5800\") != 10.58 numerically")
	}

	// 0.1 is not representable in binary floating point; the string path must
	// still produce exactly 0.1.
	if got := Decimal("0.1"); got == nil || got.String() != "0.1" {
		t.Fatalf("Decimal(\"0.1\") = %v, want exactly 0.1", got)
	}

	if got := Decimal(int64(7)); got == nil || got.String() != "7" {
		t.Fatalf("Decimal(int64(7)) = %v, want 7", got)
	}
	if got := Decimal(2.5); got == nil || got.String() != "2.5" {
		t.Fatalf("Decimal(2.5) = %v, want 2.5", got)
	}

	for _, bad := range []any{nil, "", "   ", "n/a", "12,5", struct{}{}} {
		if got := Decimal(bad); got != nil {
			t.Errorf("Decimal(%v) = %v, want nil", bad, got)
		}
	}
}

// TestInt verifies integer coercion including the float-truncation path for
// values like "123.0" that some source dumps produce for integer columns.
func TestInt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want int64
	}{
		{"123", 123},
		{"123.0", 123},
		{"123.9", 123}, // truncation, not rounding
		{"-4.2", -4},
		{int64(9), 9},
		{7, 7},
		{15.99, 15},
	}
	for _, c := range cases {
		got := Int(c.in)
		if got == nil || *got != c.want {
			t.Errorf("Int(%v) = %v, want %d", c.in, got, c.want)
		}
	}

	for _, bad := range []any{nil, "", " ", "abc", "1e", []string{}} {
		if got := Int(bad); got != nil {
			t.Errorf("Int(%v) = %v, want nil", bad, got)
		}
	}
}
