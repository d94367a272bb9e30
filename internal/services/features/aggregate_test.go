package features

import (
	"math"
	"testing"
	"time"

	"GridSpend/internal/domain/models"
)

func hourlyTable(start time.Time, n int) *models.Table {
	table := &models.Table{
		Granularity: models.Hourly,
		Schema:      models.Schema{Version: models.SchemaVersion, Columns: []string{"hour", "dayofweek", "month", "year", "load"}},
	}
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		table.Rows = append(table.Rows, models.FeatureRow{
			Period: ts,
			Features: []float64{
				float64(ts.Hour()),
				float64((int(ts.Weekday()) + 6) % 7),
				float64(int(ts.Month())),
				float64(ts.Year()),
				100 + float64(i),
			},
			Target:    1,
			HasTarget: true,
		})
	}
	return table
}

func TestAggregateDailySumsTarget(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	daily, err := Aggregate(hourlyTable(start, 48), models.Daily)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(daily.Rows) != 2 {
		t.Fatalf("expected 2 days, got %d", len(daily.Rows))
	}
	for _, row := range daily.Rows {
		if row.Target != 24 {
			t.Fatalf("expected summed target 24, got %v", row.Target)
		}
		if row.Incomplete {
			t.Fatalf("full day flagged incomplete")
		}
	}
}

func TestAggregateAveragesNonTemporal(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	daily, err := Aggregate(hourlyTable(start, 24), models.Daily)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	idx := daily.Schema.Index("load")
	want := 100 + 11.5 // mean of 100..123
	if math.Abs(daily.Rows[0].Features[idx]-want) > 1e-9 {
		t.Fatalf("expected averaged load %v, got %v", want, daily.Rows[0].Features[idx])
	}
	hidx := daily.Schema.Index("hour")
	if daily.Rows[0].Features[hidx] != 0 {
		t.Fatalf("temporal column should come from the first row, got %v", daily.Rows[0].Features[hidx])
	}
}

func TestAggregateFinalPartialFlagged(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	daily, err := Aggregate(hourlyTable(start, 30), models.Daily)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(daily.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(daily.Rows))
	}
	last := daily.Rows[1]
	if !last.Incomplete {
		t.Fatalf("6-hour final day should be flagged incomplete")
	}
	if last.Target != 6 {
		t.Fatalf("expected partial sum 6, got %v", last.Target)
	}
}

func TestAggregateMidHistoryPartialDropped(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	table := hourlyTable(start, 72)
	// Remove hour 30 so day two is a 23-hour partial mid-history.
	rows := append([]models.FeatureRow(nil), table.Rows[:30]...)
	table.Rows = append(rows, table.Rows[31:]...)
	daily, err := Aggregate(table, models.Daily)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(daily.Rows) != 2 {
		t.Fatalf("expected the partial middle day to be dropped, got %d rows", len(daily.Rows))
	}
	if !daily.Rows[1].Period.Equal(start.Add(48 * time.Hour)) {
		t.Fatalf("expected day three after the dropped day, got %v", daily.Rows[1].Period)
	}
}

func TestAggregateWeeklyMondayAnchor(t *testing.T) {
	// 2024-03-04 is a Monday.
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	weekly, err := Aggregate(hourlyTable(start, 7*24), models.Weekly)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(weekly.Rows) != 1 {
		t.Fatalf("expected one complete week, got %d", len(weekly.Rows))
	}
	row := weekly.Rows[0]
	if !row.Period.Equal(start) {
		t.Fatalf("expected week anchored at Monday %v, got %v", start, row.Period)
	}
	if row.Incomplete {
		t.Fatalf("full week flagged incomplete")
	}
	if row.Target != 7*24 {
		t.Fatalf("expected weekly target %v, got %v", 7*24, row.Target)
	}
}

func TestAggregateMissingHourBreaksPeriodTarget(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	table := hourlyTable(start, 24)
	table.Rows[5].Target = models.Missing()
	table.Rows[5].HasTarget = false
	daily, err := Aggregate(table, models.Daily)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if daily.Rows[0].HasTarget {
		t.Fatalf("day with a missing hourly target should have no target")
	}
}

func TestAggregateHourlyPassthrough(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	table := hourlyTable(start, 5)
	got, err := Aggregate(table, models.Hourly)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got != table {
		t.Fatalf("hourly aggregation should be a passthrough")
	}
}
