package repository

import (
	"context"
	"time"

	"GridSpend/internal/domain/models"
)

// ObservationStore provides read access to already-fetched raw observations,
// one series per source. Acquisition from external APIs is the fetcher
// collaborator's job; the pipeline only consumes what is stored.
type ObservationStore interface {
	Init(ctx context.Context) error // ensure tables exist
	GetSeries(ctx context.Context, source string, from, to time.Time) (*models.SourceSeries, error)
	StoreBatch(ctx context.Context, series *models.SourceSeries) error
	Span(ctx context.Context, source string) (from, to time.Time, err error)
	Health(ctx context.Context) error
	Close() error
}

// ModelStore persists trained model artifacts. Save must be atomic: a reader
// never observes a half-written artifact.
type ModelStore interface {
	Save(ctx context.Context, a *models.ModelArtifact) error
	Load(ctx context.Context, g models.Granularity) (*models.ModelArtifact, error)
}

// ResultStore persists prediction rows and evaluation reports for the
// dashboard collaborator.
type ResultStore interface {
	Init(ctx context.Context) error
	StorePredictions(ctx context.Context, rows []models.PredictionRow) error
	GetPredictions(ctx context.Context, g models.Granularity, from, to time.Time) ([]models.PredictionRow, error)
	StoreReports(ctx context.Context, reports []models.EvaluationReport) error
	GetReports(ctx context.Context, g models.Granularity) ([]models.EvaluationReport, error)
	Close() error
}

// Metrics records pipeline observability counters.
type Metrics interface {
	RecordRowsAligned(n int)
	RecordRowsDropped(g string, reason string, n int)
	RecordTrainDuration(g string, seconds float64)
	RecordCalibration(g string, factor float64)
	RecordPredictions(g string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
