package usecase

import (
	"context"
	"fmt"
	"time"

	"GridSpend/internal/domain/models"
	domrepo "GridSpend/internal/domain/repository"
	"GridSpend/internal/services/model"
	applogger "GridSpend/pkg/logger"
)

// BacktestUseCase evaluates trained models against historical windows and
// publishes the reports.
type BacktestUseCase struct {
	pipeline *Pipeline
	results  domrepo.ResultStore
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewBacktestUseCase(pipeline *Pipeline, results domrepo.ResultStore, metrics domrepo.Metrics, l *applogger.Logger) *BacktestUseCase {
	return &BacktestUseCase{pipeline: pipeline, results: results, metrics: metrics, l: l}
}

type BacktestParams struct {
	Granularity models.Granularity
	// LastYearOnly restricts evaluation to the most recent complete calendar
	// year, scored by a model fitted only on the rows before that year.
	LastYearOnly bool
}

// Backtest evaluates held-out history for one granularity per calendar year
// and publishes the reports, pooled aggregate included. The default path
// loads the persisted model and scores its post-cutoff rows; LastYearOnly
// fits a fresh model on everything strictly before the evaluated year so the
// scored year never leaks into fitting.
func (uc *BacktestUseCase) Backtest(ctx context.Context, table *models.Table, p BacktestParams) ([]models.EvaluationReport, error) {
	if !models.IsValidGranularity(p.Granularity) {
		return nil, fmt.Errorf("unknown granularity %q", p.Granularity)
	}
	if table.Granularity != p.Granularity {
		return nil, fmt.Errorf("table granularity %s does not match requested %s", table.Granularity, p.Granularity)
	}

	start := time.Now()
	var (
		m       *model.TrainedModel
		err     error
		periods []model.Period
	)
	if p.LastYearOnly {
		year, ok := LastCompleteYear(table)
		if !ok {
			return nil, fmt.Errorf("%s: no complete calendar year to evaluate", p.Granularity)
		}
		jan1 := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		m, err = uc.pipeline.TrainBefore(table, jan1)
		if err != nil {
			return nil, fmt.Errorf("backtest %s: train before %d: %w", p.Granularity, year, err)
		}
		periods = []model.Period{{
			Label: fmt.Sprintf("%d", year),
			From:  jan1,
			To:    jan1.AddDate(1, 0, 0),
		}}
	} else {
		m, err = uc.pipeline.LoadModel(ctx, p.Granularity)
		if err != nil {
			return nil, err
		}
	}

	reports, err := model.NewEvaluator(m).Backtest(table, periods)
	if err != nil {
		uc.metrics.RecordError("backtest")
		return nil, err
	}
	if err := uc.results.StoreReports(ctx, reports); err != nil {
		uc.metrics.RecordError("store_reports")
		return nil, err
	}
	uc.metrics.RecordLatency("backtest", time.Since(start).Seconds())
	if uc.l != nil {
		for _, rep := range reports {
			uc.l.Info("backtest report",
				applogger.String("granularity", string(rep.Granularity)),
				applogger.String("period", rep.Period),
				applogger.Int("n", rep.N),
				applogger.Int("excluded", rep.Excluded),
				applogger.Any("mae", rep.MAE),
				applogger.Any("rmse", rep.RMSE),
				applogger.Any("mape", rep.MAPE),
				applogger.Any("r2", rep.R2),
			)
		}
	}
	return reports, nil
}

// GetReports reads previously published reports back from the result store.
func (uc *BacktestUseCase) GetReports(ctx context.Context, g models.Granularity) ([]models.EvaluationReport, error) {
	if !models.IsValidGranularity(g) {
		return nil, fmt.Errorf("unknown granularity %q", g)
	}
	return uc.results.GetReports(ctx, g)
}

// LastCompleteYear finds the most recent calendar year covering at least 11
// distinct months of rows with targets. The 11-month bar tolerates a ragged
// first or last few days without discarding an otherwise full year.
func LastCompleteYear(table *models.Table) (int, bool) {
	months := map[int]map[time.Month]bool{}
	for _, r := range table.Rows {
		if !r.HasTarget || r.Incomplete {
			continue
		}
		y := r.Period.Year()
		if months[y] == nil {
			months[y] = map[time.Month]bool{}
		}
		months[y][r.Period.Month()] = true
	}
	best, found := 0, false
	for y, ms := range months {
		if len(ms) >= 11 && y > best {
			best = y
			found = true
		}
	}
	return best, found
}
