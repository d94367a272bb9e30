package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"GridSpend/internal/domain/models"
	domrepo "GridSpend/internal/domain/repository"
	"GridSpend/internal/services/features"
	"GridSpend/internal/services/model"
	"GridSpend/internal/services/timeline"
	applogger "GridSpend/pkg/logger"
)

// PipelineConfig is the end-to-end pipeline surface: which sources feed the
// alignment step, how features are derived, and how each granularity trains.
type PipelineConfig struct {
	Sources []string
	Builder features.BuilderConfig
	MinRows map[models.Granularity]int
	Hyper   map[models.Granularity]model.Hyperparams
}

// Pipeline runs align -> build -> aggregate -> train across granularities.
type Pipeline struct {
	obs     domrepo.ObservationStore
	modelSt domrepo.ModelStore
	metrics domrepo.Metrics
	cfg     PipelineConfig
	l       *applogger.Logger
}

func NewPipeline(obs domrepo.ObservationStore, modelSt domrepo.ModelStore, metrics domrepo.Metrics, cfg PipelineConfig, l *applogger.Logger) *Pipeline {
	return &Pipeline{obs: obs, modelSt: modelSt, metrics: metrics, cfg: cfg, l: l}
}

// FullSpan returns the union of the stored spans of every configured source.
// A source with zero coverage surfaces as a DataGapError.
func (p *Pipeline) FullSpan(ctx context.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	for _, src := range p.cfg.Sources {
		f, t, err := p.obs.Span(ctx, src)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if from.IsZero() || f.Before(from) {
			from = f
		}
		if t.After(to) {
			to = t
		}
	}
	return from, to, nil
}

// BuildTables loads every configured source, aligns them on the hourly spine
// and derives the feature table for each granularity. Aggregation always
// starts from the hourly table, never from another aggregate.
func (p *Pipeline) BuildTables(ctx context.Context, from, to time.Time) (map[models.Granularity]*models.Table, error) {
	if len(p.cfg.Sources) == 0 {
		return nil, fmt.Errorf("pipeline: no sources configured")
	}

	series := make([]*models.SourceSeries, 0, len(p.cfg.Sources))
	for _, src := range p.cfg.Sources {
		s, err := p.obs.GetSeries(ctx, src, from, to)
		if err != nil {
			p.metrics.RecordError("load_source")
			return nil, fmt.Errorf("load source %q: %w", src, err)
		}
		series = append(series, s)
	}

	aligned, err := timeline.Align(series)
	if err != nil {
		p.metrics.RecordError("align")
		return nil, err
	}
	p.metrics.RecordRowsAligned(len(aligned.Records))
	if p.l != nil {
		p.l.Info("aligned hourly spine",
			applogger.Int("sources", len(series)),
			applogger.Int("hours", len(aligned.Records)),
			applogger.String("from", aligned.Start.Format(time.RFC3339)),
			applogger.String("to", aligned.End().Format(time.RFC3339)),
		)
	}

	hourly, err := features.BuildHourly(aligned, p.cfg.Builder)
	if err != nil {
		p.metrics.RecordError("build_features")
		return nil, err
	}
	p.metrics.RecordRowsDropped(string(models.Hourly), "warmup", len(aligned.Records)-len(hourly.Rows))

	tables := make(map[models.Granularity]*models.Table, 4)
	for _, g := range models.Granularities() {
		t, err := features.Aggregate(hourly, g)
		if err != nil {
			p.metrics.RecordError("aggregate")
			return nil, fmt.Errorf("aggregate %s: %w", g, err)
		}
		tables[g] = t
		if p.l != nil {
			p.l.Info("feature table ready",
				applogger.String("granularity", string(g)),
				applogger.Int("rows", len(t.Rows)),
				applogger.Int("trainable", len(t.Trainable())),
			)
		}
	}
	return tables, nil
}

// TrainAll trains one model per granularity concurrently and persists each
// artifact. A granularity with too little data is reported but does not stop
// the others.
func (p *Pipeline) TrainAll(ctx context.Context, tables map[models.Granularity]*models.Table) (map[models.Granularity]*model.TrainedModel, error) {
	type result struct {
		g   models.Granularity
		m   *model.TrainedModel
		err error
	}

	grans := models.Granularities()
	results := make(chan result, len(grans))
	var wg sync.WaitGroup
	for _, g := range grans {
		table, ok := tables[g]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(g models.Granularity, table *models.Table) {
			defer wg.Done()
			m, err := p.trainOne(ctx, g, table)
			results <- result{g: g, m: m, err: err}
		}(g, table)
	}
	wg.Wait()
	close(results)

	trained := make(map[models.Granularity]*model.TrainedModel, len(grans))
	var firstErr error
	for r := range results {
		if r.err != nil {
			p.metrics.RecordError("train")
			if p.l != nil {
				p.l.Warn("training skipped",
					applogger.String("granularity", string(r.g)),
					applogger.Error(r.err),
				)
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("train %s: %w", r.g, r.err)
			}
			continue
		}
		trained[r.g] = r.m
	}
	if len(trained) == 0 {
		return nil, firstErr
	}
	return trained, nil
}

func (p *Pipeline) trainOne(ctx context.Context, g models.Granularity, table *models.Table) (*model.TrainedModel, error) {
	start := time.Now()
	cfg := model.TrainerConfig{Hyper: p.cfg.Hyper[g]}
	if min, ok := p.cfg.MinRows[g]; ok {
		cfg.MinRows = min
	}

	res, err := model.Train(table, cfg)
	if err != nil {
		return nil, err
	}
	p.metrics.RecordTrainDuration(string(g), time.Since(start).Seconds())
	p.metrics.RecordCalibration(string(g), res.Model.Calibration)

	artifact, err := res.Model.Artifact()
	if err != nil {
		return nil, err
	}
	if err := p.modelSt.Save(ctx, artifact); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	if p.l != nil {
		p.l.Info("model trained",
			applogger.String("granularity", string(g)),
			applogger.String("kind", res.Model.Regressor.Kind()),
			applogger.Int("holdout", res.Model.Holdout.N),
			applogger.Any("calibration", res.Model.Calibration),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return res.Model, nil
}

// TrainBefore fits a throwaway model whose regressor only sees the rows
// strictly before cutoff. The artifact is not persisted; backtests use this
// so the window they score was never part of fitting.
func (p *Pipeline) TrainBefore(table *models.Table, cutoff time.Time) (*model.TrainedModel, error) {
	cfg := model.TrainerConfig{Hyper: p.cfg.Hyper[table.Granularity], Cutoff: cutoff}
	if min, ok := p.cfg.MinRows[table.Granularity]; ok {
		cfg.MinRows = min
	}
	res, err := model.Train(table, cfg)
	if err != nil {
		return nil, err
	}
	return res.Model, nil
}

// LoadModel restores a persisted model for one granularity.
func (p *Pipeline) LoadModel(ctx context.Context, g models.Granularity) (*model.TrainedModel, error) {
	a, err := p.modelSt.Load(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("load %s artifact: %w", g, err)
	}
	return model.FromArtifact(a)
}
