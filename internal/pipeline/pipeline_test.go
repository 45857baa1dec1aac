package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/pgedge-starload/internal/extract"
	"github.com/pgEdge/pgedge-starload/internal/star"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

const dataDir = "/data"

// olistFixture is a tiny but complete set of extracts: one order with two
// line items, two payments, two reviews and a few noisy rows.
var olistFixture = map[string][]string{
	extract.Customers: {
		"c1,u1,1000,sao paulo,sp",
		"c1,u1,1000,sao paulo,sp",
		"c2,u2,20000, rio de janeiro ,rj",
	},
	extract.Geolocation: {
		"1000,-23.50,-46.60,sao paulo,SP",
		"1000,-23.60,-46.70,sao paulo,SP",
		"1000,-23.70,-46.80,são paulo,SP",
		"20000,-22.90,-43.20,rio de janeiro,RJ",
	},
	extract.Orders: {
		"o1,c1,delivered,2018-01-15 10:00:00,2018-01-15 11:00:00,2018-01-16 09:00:00,2018-01-20 10:00:00,2018-01-25 00:00:00",
		"o2,c2,teleported,2018-02-03 08:00:00,,,,",
	},
	extract.OrderItems: {
		"o1,1,p1,s1,2018-01-17 00:00:00,100.00,10.00",
		"o1,2,p2,s1,2018-01-17 00:00:00,180.00,10.00",
		"o2,1,p1,s1,2018-02-05 00:00:00,-20.00,5.00",
	},
	extract.OrderPayments: {
		"o1,1,credit_card,3,250.00",
		"o1,2,voucher,1,50.00",
		"o2,1,boleto,1,20.00",
	},
	extract.OrderReviews: {
		"r1,o1,3,,,2018-02-01 00:00:00,2018-02-02 00:00:00",
		"r2,o1,5,,great,2018-02-10 00:00:00,2018-02-11 00:00:00",
	},
	extract.Products: {
		"p1,beleza_saude,40,300,2,500,20,10,15",
		"p2,,,,,,,,",
	},
	extract.Sellers: {
		"s1,20000,rio de janeiro,RJ",
	},
	extract.CategoryTranslation: {
		"beleza_saude,health_beauty",
	},
}

// fixture returns the default extracts with some sources replaced. A nil
// replacement removes the source file.
func fixture(overrides map[string][]string) map[string][]string {
	files := make(map[string][]string, len(olistFixture))
	for name, rows := range olistFixture {
		files[name] = rows
	}
	for name, rows := range overrides {
		if rows == nil {
			delete(files, name)
			continue
		}
		files[name] = rows
	}
	return files
}

func writeFixture(t *testing.T, fs afero.Fs, files map[string][]string) {
	t.Helper()
	for _, src := range extract.Catalog {
		rows, ok := files[src.Name]
		if !ok {
			continue
		}
		body := strings.Join(src.Columns, ",") + "\n" + strings.Join(rows, "\n") + "\n"
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dataDir, src.File), []byte(body), 0o644))
	}
}

type fakeStore struct {
	calls  int
	tables []warehouse.Table
	err    error
}

func (f *fakeStore) Load(ctx context.Context, ddl string, tables []warehouse.Table) (*warehouse.LoadResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.tables = tables
	rows := map[string]int64{}
	for _, t := range tables {
		rows[t.Name] = int64(len(t.Rows))
	}
	return &warehouse.LoadResult{RunID: "run-1", Rows: rows}, nil
}

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) PhaseStarted(p Phase) { r.events = append(r.events, "start:"+string(p)) }

func (r *recordingObserver) PhaseCompleted(p Phase, _ time.Duration) {
	r.events = append(r.events, "done:"+string(p))
}

func (r *recordingObserver) PhaseFailed(p Phase, _ error) {
	r.events = append(r.events, "fail:"+string(p))
}

func newTestPipeline(t *testing.T, store Store, cfg Config, files map[string][]string) (*Pipeline, *recordingObserver) {
	t.Helper()
	fs := afero.NewMemMapFs()
	writeFixture(t, fs, files)
	obs := &recordingObserver{}
	return New(extract.NewReader(fs, dataDir, nil), store, cfg, obs), obs
}

func factTable(t *testing.T, tables []warehouse.Table) warehouse.Table {
	t.Helper()
	for _, tbl := range tables {
		if tbl.Name == warehouse.TableFacts {
			return tbl
		}
	}
	t.Fatalf("fact table not loaded")
	return warehouse.Table{}
}

func column(tbl warehouse.Table, name string) int {
	for i, c := range tbl.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func TestRunEndToEnd(t *testing.T) {
	store := &fakeStore{}
	p, obs := newTestPipeline(t, store, Config{ParallelTransform: true}, fixture(nil))

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"start:extract", "done:extract",
		"start:transform", "done:transform",
		"start:build", "done:build",
		"start:load", "done:load",
	}, obs.events)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, "run-1", report.Load.RunID)
	for _, ph := range Phases {
		assert.Contains(t, report.Elapsed, ph)
	}

	assert.Equal(t, 1, report.Transform.Get(extract.Customers).DuplicatesDropped)
	assert.Equal(t, 1, report.Transform.Get(extract.Orders).DomainViolations["order_status"])
	assert.Equal(t, 1, report.Transform.Get(extract.OrderItems).Clipped["price"])

	facts := factTable(t, store.tables)
	require.Len(t, facts.Rows, 3, "one fact row per line item")

	orderCol := column(facts, "order_id")
	deliveryCol := column(facts, "delivery_days")
	totalCol := column(facts, "order_payment_total")
	scoreCol := column(facts, "review_score")
	for _, row := range facts.Rows {
		if row[orderCol] != "o1" {
			continue
		}
		assert.InDelta(t, 5.0, *row[deliveryCol].(*float64), 1e-9)
		assert.InDelta(t, 300.0, *row[totalCol].(*float64), 1e-9)
		assert.Equal(t, 5, *row[scoreCol].(*int))
	}

	var price float64
	priceCol := column(facts, "price")
	for _, row := range facts.Rows {
		price += row[priceCol].(float64)
	}
	assert.InDelta(t, 280.0, price, 1e-9, "negative price is clipped to zero")
}

func TestRunMissingSourceFailsFast(t *testing.T) {
	store := &fakeStore{}
	p, obs := newTestPipeline(t, store, Config{}, fixture(map[string][]string{extract.Sellers: nil}))

	report, err := p.Run(context.Background())
	require.Error(t, err)

	var pe *PhaseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, PhaseExtract, pe.Phase)
	assert.ErrorIs(t, err, extract.ErrMissingSource)
	assert.Contains(t, err.Error(), "extract phase failed")

	assert.Equal(t, []string{"start:extract", "fail:extract"}, obs.events)
	assert.Nil(t, report.Transform)
	assert.Zero(t, store.calls)
}

func TestRunLoadFailure(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("failed to load fact_orders: %w", errors.New("check violation"))}
	p, obs := newTestPipeline(t, store, Config{}, fixture(nil))

	report, err := p.Run(context.Background())

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseLoad, pe.Phase)
	assert.Contains(t, err.Error(), "check violation")
	assert.Equal(t, "fail:load", obs.events[len(obs.events)-1])
	assert.NotNil(t, report.Fact)
	assert.Nil(t, report.Load)
}

func TestRunUnresolvedThreshold(t *testing.T) {
	store := &fakeStore{}
	// Every line item references seller s1, which no longer exists.
	files := fixture(map[string][]string{extract.Sellers: {"s9,99999,nowhere,XX"}})
	p, _ := newTestPipeline(t, store, Config{MaxUnresolvedRatio: 0.01}, files)
	report, err := p.Run(context.Background())

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseBuild, pe.Phase)
	assert.ErrorIs(t, err, star.ErrUnresolvedThreshold)
	require.NotNil(t, report.Fact)
	assert.Equal(t, 3, report.Fact.Unresolved[star.ColSellerKey])
	assert.Zero(t, store.calls)
}

func TestPhasesCallableIndividually(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeStore{}, Config{}, fixture(nil))
	ctx := context.Background()

	raw, err := p.Extract(ctx)
	require.NoError(t, err)
	require.Len(t, raw, len(extract.Catalog))

	cleaned, rep, err := p.Transform(ctx, raw)
	require.NoError(t, err)
	require.NotNil(t, rep)

	schema, err := p.Build(ctx, cleaned)
	require.NoError(t, err)
	assert.Len(t, schema.Customers, 2)
	assert.Len(t, schema.Geo, 2)

	res, err := p.Load(ctx, schema)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Rows[warehouse.TableFacts])
}

type fixedTimes time.Time

func (f fixedTimes) LatestModTime() (time.Time, error) { return time.Time(f), nil }

func TestCheckFreshness(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	never := func(context.Context) (time.Time, bool, error) { return time.Time{}, false, nil }
	loadedAt := func(ts time.Time) LastLoadFunc {
		return func(context.Context) (time.Time, bool, error) { return ts, true, nil }
	}

	tests := []struct {
		name     string
		sources  time.Time
		lastLoad LastLoadFunc
		rebuild  bool
	}{
		{name: "never loaded", sources: base, lastLoad: never, rebuild: true},
		{name: "sources newer", sources: base.Add(time.Hour), lastLoad: loadedAt(base), rebuild: true},
		{name: "load newer", sources: base, lastLoad: loadedAt(base.Add(time.Hour)), rebuild: false},
		{name: "same instant", sources: base, lastLoad: loadedAt(base), rebuild: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := CheckFreshness(context.Background(), fixedTimes(tt.sources), tt.lastLoad)
			require.NoError(t, err)
			assert.Equal(t, tt.rebuild, f.Rebuild, f.Reason)
		})
	}
}

func TestCheckFreshnessError(t *testing.T) {
	failing := func(context.Context) (time.Time, bool, error) {
		return time.Time{}, false, errors.New("connection refused")
	}
	_, err := CheckFreshness(context.Background(), fixedTimes(time.Now()), failing)
	require.ErrorContains(t, err, "connection refused")
}
