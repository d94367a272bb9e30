package repository

import (
	"context"
	"testing"
	"time"

	"GridSpend/internal/domain/models"
)

func sampleArtifact(g models.Granularity) *models.ModelArtifact {
	schema := models.Schema{Version: models.SchemaVersion, Columns: []string{"hour", "load"}}
	return &models.ModelArtifact{
		Granularity:       g,
		SchemaVersion:     schema.Version,
		SchemaFingerprint: schema.Fingerprint(),
		Columns:           schema.Columns,
		Cutoff:            time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Calibration:       1.03,
		RegressorKind:     "gbrt",
		RegressorParams:   []byte(`{"trees":10}`),
		TrainedAt:         time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFSModelStoreRoundTrip(t *testing.T) {
	store := NewFSModelStore(t.TempDir())
	ctx := context.Background()

	want := sampleArtifact(models.Hourly)
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, models.Hourly)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.SchemaFingerprint != want.SchemaFingerprint {
		t.Fatalf("fingerprint changed: %s vs %s", got.SchemaFingerprint, want.SchemaFingerprint)
	}
	if got.Calibration != want.Calibration {
		t.Fatalf("calibration changed: %v vs %v", got.Calibration, want.Calibration)
	}
	if string(got.RegressorParams) != string(want.RegressorParams) {
		t.Fatalf("params changed: %s", got.RegressorParams)
	}
}

func TestFSModelStoreReplace(t *testing.T) {
	store := NewFSModelStore(t.TempDir())
	ctx := context.Background()

	first := sampleArtifact(models.Daily)
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := sampleArtifact(models.Daily)
	second.Calibration = 0.97
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("save replacement: %v", err)
	}
	got, err := store.Load(ctx, models.Daily)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Calibration != 0.97 {
		t.Fatalf("expected the replacement artifact, got calibration %v", got.Calibration)
	}
}

func TestFSModelStoreMissing(t *testing.T) {
	store := NewFSModelStore(t.TempDir())
	if _, err := store.Load(context.Background(), models.Weekly); err == nil {
		t.Fatalf("expected error for missing artifact")
	}
}

func TestFSModelStoreGranularitiesIsolated(t *testing.T) {
	store := NewFSModelStore(t.TempDir())
	ctx := context.Background()

	hourly := sampleArtifact(models.Hourly)
	daily := sampleArtifact(models.Daily)
	daily.Calibration = 2
	if err := store.Save(ctx, hourly); err != nil {
		t.Fatalf("save hourly: %v", err)
	}
	if err := store.Save(ctx, daily); err != nil {
		t.Fatalf("save daily: %v", err)
	}
	got, err := store.Load(ctx, models.Hourly)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Calibration != 1.03 {
		t.Fatalf("hourly artifact overwritten by daily one")
	}
}
