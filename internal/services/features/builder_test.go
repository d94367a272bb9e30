package features

import (
	"math"
	"testing"
	"time"

	"GridSpend/internal/domain/models"
)

func alignedConstant(n int, load, price float64) *models.AlignedSeries {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := &models.AlignedSeries{Start: start, Columns: []string{"load", "price"}}
	for i := 0; i < n; i++ {
		out.Records = append(out.Records, models.AlignedRecord{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Values:    map[string]float64{"load": load, "price": price},
		})
	}
	return out
}

func testConfig() BuilderConfig {
	return BuilderConfig{
		KWhPerHour:    1.2,
		LoadColumn:    "load",
		PriceColumn:   "price",
		LagHours:      []int{1, 3},
		RollingWindow: 4,
	}
}

func TestBuildHourlyTargetFormula(t *testing.T) {
	cfg := testConfig()
	table, err := BuildHourly(alignedConstant(12, 500, 25), cfg)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	// Constant load means load/mean_load == 1.
	want := 1.2 * 25 / 100.0
	for _, row := range table.Rows {
		if !row.HasTarget {
			t.Fatalf("expected target at %v", row.Period)
		}
		if math.Abs(row.Target-want) > 1e-12 {
			t.Fatalf("expected target %v, got %v", want, row.Target)
		}
	}
}

func TestBuildHourlyWarmupDropped(t *testing.T) {
	cfg := testConfig() // warmup = max(3, 4) = 4
	table, err := BuildHourly(alignedConstant(12, 500, 25), cfg)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(table.Rows) != 12-4 {
		t.Fatalf("expected %d rows after warmup, got %d", 12-4, len(table.Rows))
	}
	wantFirst := time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC)
	if !table.Rows[0].Period.Equal(wantFirst) {
		t.Fatalf("expected first row at %v, got %v", wantFirst, table.Rows[0].Period)
	}
}

func TestBuildHourlyNonPositiveLagFailsClosed(t *testing.T) {
	cfg := testConfig()
	cfg.LagHours = []int{-15, 1}
	_, err := BuildHourly(alignedConstant(12, 500, 25), cfg)
	if err == nil {
		t.Fatalf("expected error for non-positive lag offset")
	}
	guard, ok := err.(*models.LeakageGuardError)
	if !ok {
		t.Fatalf("expected LeakageGuardError, got %T: %v", err, err)
	}
	if guard.Ref.Before(guard.Row) {
		t.Fatalf("guard fired on a past reference: row %v ref %v", guard.Row, guard.Ref)
	}
}

func TestBuildHourlyTooShortForWarmup(t *testing.T) {
	cfg := testConfig()
	table, err := BuildHourly(alignedConstant(4, 500, 25), cfg)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(table.Rows) != 0 {
		t.Fatalf("expected no rows when span fits inside warmup, got %d", len(table.Rows))
	}
}

func TestBuildHourlyLagsReferThePast(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	series := &models.AlignedSeries{Start: start, Columns: []string{"load", "price"}}
	for i := 0; i < 10; i++ {
		series.Records = append(series.Records, models.AlignedRecord{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Values:    map[string]float64{"load": float64(100 + i), "price": 10},
		})
	}
	cfg := BuilderConfig{
		KWhPerHour:    1,
		LoadColumn:    "load",
		PriceColumn:   "price",
		LagHours:      []int{2},
		RollingWindow: 2,
	}
	table, err := BuildHourly(series, cfg)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	idx := table.Schema.Index("load_lag_2h")
	if idx < 0 {
		t.Fatalf("missing load_lag_2h column")
	}
	// Row at hour i carries the load of hour i-2.
	row := table.Rows[0] // hour 2
	if row.Features[idx] != 100 {
		t.Fatalf("expected lagged load 100, got %v", row.Features[idx])
	}
}

func TestBuildHourlyRollingIsCausal(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	series := &models.AlignedSeries{Start: start, Columns: []string{"load", "price"}}
	// Price spikes at the final hour; a causal window must not see it.
	for i := 0; i < 6; i++ {
		price := 10.0
		if i == 5 {
			price = 1000
		}
		series.Records = append(series.Records, models.AlignedRecord{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Values:    map[string]float64{"load": 100, "price": price},
		})
	}
	cfg := BuilderConfig{
		KWhPerHour:    1,
		LoadColumn:    "load",
		PriceColumn:   "price",
		LagHours:      []int{1},
		RollingWindow: 3,
	}
	table, err := BuildHourly(series, cfg)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	idx := table.Schema.Index("cost_roll_mean_3h")
	if idx < 0 {
		t.Fatalf("missing cost_roll_mean_3h column")
	}
	last := table.Rows[len(table.Rows)-1] // hour 5, the spike hour
	// Trailing hours 2..4 all cost 0.1, so the mean excludes the spike.
	if math.Abs(last.Features[idx]-0.1) > 1e-12 {
		t.Fatalf("rolling mean saw the current row: got %v", last.Features[idx])
	}
}

func TestBuildHourlyMissingTargetPropagates(t *testing.T) {
	series := alignedConstant(10, 500, 25)
	series.Records[7].Values["price"] = models.Missing()
	cfg := testConfig()
	table, err := BuildHourly(series, cfg)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	var found bool
	for _, row := range table.Rows {
		if row.Period.Hour() == 7 {
			found = true
			if row.HasTarget {
				t.Fatalf("expected no target where price is missing")
			}
			if !models.IsMissing(row.Target) {
				t.Fatalf("expected missing target, got %v", row.Target)
			}
		}
	}
	if !found {
		t.Fatalf("row with missing price not present")
	}
}

func TestBuildHourlyForwardFill(t *testing.T) {
	series := alignedConstant(10, 500, 25)
	series.Records[6].Values["price"] = models.Missing()
	cfg := testConfig()
	cfg.FillPolicies = map[string]FillPolicy{"price": FillForward}
	table, err := BuildHourly(series, cfg)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	for _, row := range table.Rows {
		if !row.HasTarget {
			t.Fatalf("forward fill should leave no gaps, missing at %v", row.Period)
		}
	}
}

func TestBuildHourlyRejectsBadConfig(t *testing.T) {
	if _, err := BuildHourly(alignedConstant(5, 1, 1), BuilderConfig{KWhPerHour: 0, LoadColumn: "load", PriceColumn: "price"}); err == nil {
		t.Fatalf("expected error for zero kwh per hour")
	}
	cfg := testConfig()
	cfg.LoadColumn = "nope"
	if _, err := BuildHourly(alignedConstant(5, 1, 1), cfg); err == nil {
		t.Fatalf("expected error for unknown load column")
	}
}
