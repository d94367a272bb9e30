package usecase

import (
	"context"
	"fmt"
	"time"

	applogger "GridSpend/pkg/logger"
	pkgqueue "GridSpend/pkg/queue"
)

// RetrainMessageType is the queue message type that triggers a pipeline rerun.
const RetrainMessageType = "pipeline.retrain"

// RetrainPayload is the queue message body. Reason is informational only.
type RetrainPayload struct {
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// PipelineRunner is the slice of the application the retrain job needs:
// rebuild, retrain, republish.
type PipelineRunner interface {
	Train(ctx context.Context) error
	Forecast(ctx context.Context) error
	Evaluate(ctx context.Context) error
}

// RetrainJob reruns the full pipeline when a retrain message arrives, so a
// dashboard or a data-load cron can request fresh models without restarting
// the service.
type RetrainJob struct {
	runner PipelineRunner
	l      *applogger.Logger
}

func NewRetrainJob(runner PipelineRunner, l *applogger.Logger) *RetrainJob {
	return &RetrainJob{runner: runner, l: l}
}

func (j *RetrainJob) Name() string { return "retrain" }

func (j *RetrainJob) Type() string { return RetrainMessageType }

func (j *RetrainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := pkgqueue.ParsePayload[RetrainPayload](payload)
	if err != nil {
		return fmt.Errorf("retrain payload: %w", err)
	}
	start := time.Now()
	j.l.Info("retrain requested",
		applogger.String("reason", p.Reason),
		applogger.String("requested_at", p.RequestedAt.Format(time.RFC3339)),
	)

	if err := j.runner.Train(ctx); err != nil {
		return fmt.Errorf("retrain: %w", err)
	}
	if err := j.runner.Forecast(ctx); err != nil {
		return fmt.Errorf("retrain forecast: %w", err)
	}
	if err := j.runner.Evaluate(ctx); err != nil {
		return fmt.Errorf("retrain evaluate: %w", err)
	}

	j.l.Info("retrain complete", applogger.Duration("duration_ms", time.Since(start)))
	return nil
}
