package migrate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/equinax/stockmigrate/internal/config"
	"github.com/equinax/stockmigrate/internal/model"
	"github.com/equinax/stockmigrate/internal/normalize"
)

// fakeSource serves canned rows per table and records nothing; paging splits
// the daily rows the same way the real pager does.
type fakeSource struct {
	tables   map[string][]normalize.Row
	countErr error
	fetchErr error
}

func (f *fakeSource) Count(_ context.Context, table string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.tables[table])), nil
}

func (f *fakeSource) FetchAll(_ context.Context, table string) ([]normalize.Row, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.tables[table], nil
}

func (f *fakeSource) Pages(_ context.Context, table string, size int) (Pager, error) {
	return &fakePager{rows: f.tables[table], size: size}, nil
}

type fakePager struct {
	rows []normalize.Row
	size int
	pos  int
}

func (p *fakePager) Next() ([]normalize.Row, error) {
	if p.pos >= len(p.rows) {
		return nil, nil
	}
	end := p.pos + p.size
	if end > len(p.rows) {
		end = len(p.rows)
	}
	page := p.rows[p.pos:end]
	p.pos = end
	return page, nil
}

func (p *fakePager) Close() error { return nil }

// fakeDest counts what it is handed and records call order.
type fakeDest struct {
	calls []string

	schemaErr error
	barsErr   error

	instruments   int
	dailyBars     int
	adjustFactors int
	barBatches    int
}

func (f *fakeDest) EnsureSchema(context.Context) error {
	f.calls = append(f.calls, "schema")
	return f.schemaErr
}

func (f *fakeDest) UpsertInstruments(_ context.Context, recs []model.Instrument) (int, error) {
	f.calls = append(f.calls, "instruments")
	f.instruments += len(recs)
	return len(recs), nil
}

func (f *fakeDest) InsertDailyBars(_ context.Context, recs []model.DailyBar) (int, error) {
	f.calls = append(f.calls, "bars")
	if f.barsErr != nil {
		return 0, f.barsErr
	}
	f.dailyBars += len(recs)
	f.barBatches++
	return len(recs), nil
}

func (f *fakeDest) InsertAdjustFactors(_ context.Context, recs []model.AdjustFactor) (int, error) {
	f.calls = append(f.calls, "factors")
	f.adjustFactors += len(recs)
	return len(recs), nil
}

func barRows(n int) []normalize.Row {
	rows := make([]normalize.Row, n)
	for i := range rows {
		rows[i] = normalize.Row{
			"date":  "2024-01-02",
			"code":  fmt.Sprintf("sh.%06d", i),
			"close": "10.58",
		}
	}
	return rows
}

func testConfig() config.Config {
	return config.Config{
		SourcePath:  "unused.db",
		DatabaseURL: "postgres://unused",
		BatchSize:   10000,
		Job:         "test",
	}.WithDefaults()
}

func TestRunMigratesAllTablesInOrder(t *testing.T) {
	src := &fakeSource{tables: map[string][]normalize.Row{
		"stock_basic": {
			{"code": "sh.600000", "code_name": "浦发银行", "ipo_date": "1999-11-10"},
			{"code": "sz.000001", "code_name": "平安银行"},
			{"code": "bj.430047", "code_name": "诺思兰德"},
		},
		"daily_k_data": barRows(25000),
		"adjust_factor": {
			{"code": "sh.600000", "dividOperateDate": "2023-06-15", "adjustFactor": "1.25"},
			{"code": "sz.000001", "dividOperateDate": "2023-07-01", "adjustFactor": "1.10"},
		},
	}}
	dst := &fakeDest{}

	sum, err := run(context.Background(), testConfig(), src, dst)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if sum.Instruments != 3 || sum.DailyBars != 25000 || sum.AdjustFactors != 2 {
		t.Errorf("summary = %+v; want 3/25000/2", sum)
	}
	if sum.Elapsed <= 0 {
		t.Error("summary elapsed not set")
	}

	// 25,000 rows at batch size 10,000 is exactly three write batches.
	if dst.barBatches != 3 {
		t.Errorf("daily bar batches = %d, want 3", dst.barBatches)
	}

	want := []string{"schema", "instruments", "bars", "bars", "bars", "factors"}
	if len(dst.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", dst.calls, want)
	}
	for i, c := range want {
		if dst.calls[i] != c {
			t.Fatalf("calls[%d] = %q, want %q (full: %v)", i, dst.calls[i], c, dst.calls)
		}
	}
}

func TestRunEmptySourceTables(t *testing.T) {
	src := &fakeSource{tables: map[string][]normalize.Row{}}
	dst := &fakeDest{}

	sum, err := run(context.Background(), testConfig(), src, dst)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Instruments != 0 || sum.DailyBars != 0 || sum.AdjustFactors != 0 {
		t.Errorf("summary = %+v; want all zero", sum)
	}

	// Schema is still bootstrapped; no writes happen for empty tables.
	if len(dst.calls) != 1 || dst.calls[0] != "schema" {
		t.Errorf("calls = %v, want [schema]", dst.calls)
	}
}

func TestRunSchemaFailureIsDestFailure(t *testing.T) {
	src := &fakeSource{tables: map[string][]normalize.Row{"stock_basic": barRows(1)}}
	dst := &fakeDest{schemaErr: errors.New("connection refused")}

	sum, err := run(context.Background(), testConfig(), src, dst)
	if !errors.Is(err, ErrDest) {
		t.Fatalf("err = %v, want ErrDest", err)
	}
	if errors.Is(err, ErrSource) {
		t.Fatal("schema failure must not classify as source failure")
	}
	if sum.Instruments != 0 || sum.DailyBars != 0 {
		t.Errorf("no table may migrate after schema failure, got %+v", sum)
	}
}

func TestRunSourceReadFailure(t *testing.T) {
	src := &fakeSource{
		tables:   map[string][]normalize.Row{"stock_basic": barRows(1)},
		fetchErr: errors.New("database disk image is malformed"),
	}
	dst := &fakeDest{}

	_, err := run(context.Background(), testConfig(), src, dst)
	if !errors.Is(err, ErrSource) {
		t.Fatalf("err = %v, want ErrSource", err)
	}
	if dst.instruments != 0 {
		t.Errorf("instruments written despite read failure: %d", dst.instruments)
	}
}

func TestRunDailyBarWriteFailureKeepsPartialCount(t *testing.T) {
	src := &fakeSource{tables: map[string][]normalize.Row{
		"daily_k_data": barRows(5),
	}}
	dst := &fakeDest{barsErr: errors.New("out of disk")}

	sum, err := run(context.Background(), testConfig(), src, dst)
	if !errors.Is(err, ErrDest) {
		t.Fatalf("err = %v, want ErrDest", err)
	}
	if sum.DailyBars != 0 {
		t.Errorf("DailyBars = %d, want 0 for first-batch failure", sum.DailyBars)
	}
}
