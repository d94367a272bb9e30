package timeline

import (
	"testing"
	"time"

	"GridSpend/internal/domain/models"
)

func hourlyObs(start time.Time, col string, vals []float64) *models.SourceSeries {
	s := &models.SourceSeries{Source: col, Columns: []string{col}}
	for i, v := range vals {
		s.Obs = append(s.Obs, models.RawObservation{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Values:    map[string]float64{col: v},
		})
	}
	return s
}

func TestAlignHourlySpine(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := Align([]*models.SourceSeries{hourlyObs(start, "load", []float64{1, 2, 3})})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(got.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got.Records))
	}
	for i, rec := range got.Records {
		want := start.Add(time.Duration(i) * time.Hour)
		if !rec.Timestamp.Equal(want) {
			t.Fatalf("record %d: expected %v, got %v", i, want, rec.Timestamp)
		}
	}
}

func TestAlignGapGetsMissingMarker(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := &models.SourceSeries{Source: "load", Columns: []string{"load"}}
	s.Obs = append(s.Obs,
		models.RawObservation{Timestamp: start, Values: map[string]float64{"load": 1}},
		models.RawObservation{Timestamp: start.Add(2 * time.Hour), Values: map[string]float64{"load": 3}},
	)
	got, err := Align([]*models.SourceSeries{s})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(got.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got.Records))
	}
	if !models.IsMissing(got.Records[1].Values["load"]) {
		t.Fatalf("expected missing marker at gap, got %v", got.Records[1].Values["load"])
	}
	if got.Records[2].Values["load"] != 3 {
		t.Fatalf("expected 3 after gap, got %v", got.Records[2].Values["load"])
	}
}

func TestAlignUnionOfSpans(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	load := hourlyObs(start, "load", []float64{1, 2})
	price := hourlyObs(start.Add(time.Hour), "price", []float64{10, 11})
	got, err := Align([]*models.SourceSeries{load, price})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(got.Records) != 3 {
		t.Fatalf("expected 3 records over the union span, got %d", len(got.Records))
	}
	if !models.IsMissing(got.Records[0].Values["price"]) {
		t.Fatalf("price should be missing before its first observation")
	}
	if !models.IsMissing(got.Records[2].Values["load"]) {
		t.Fatalf("load should be missing after its last observation")
	}
}

func TestAlignDuplicateKeepsLast(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := &models.SourceSeries{Source: "load", Columns: []string{"load"}}
	s.Obs = append(s.Obs,
		models.RawObservation{Timestamp: start, Values: map[string]float64{"load": 1}},
		models.RawObservation{Timestamp: start, Values: map[string]float64{"load": 9}},
	)
	got, err := Align([]*models.SourceSeries{s})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got.Records[0].Values["load"] != 9 {
		t.Fatalf("expected duplicate to keep last value, got %v", got.Records[0].Values["load"])
	}
}

func TestAlignEmptySourceFails(t *testing.T) {
	_, err := Align([]*models.SourceSeries{{Source: "load", Columns: []string{"load"}}})
	if err == nil {
		t.Fatalf("expected error for empty source")
	}
	if _, ok := err.(*models.DataGapError); !ok {
		t.Fatalf("expected DataGapError, got %T", err)
	}
}
