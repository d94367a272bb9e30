package model

import (
	"fmt"
	"math"
	"time"

	"GridSpend/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// Period is a labeled half-open evaluation window [From, To).
type Period struct {
	Label string
	From  time.Time
	To    time.Time
}

// YearPeriods returns one Period per calendar year that has at least one
// complete row with a known target, in ascending order.
func YearPeriods(table *models.Table) []Period {
	years := map[int]bool{}
	for _, r := range table.Rows {
		if r.HasTarget && !r.Incomplete {
			years[r.Period.Year()] = true
		}
	}
	out := make([]Period, 0, len(years))
	min, max := 0, 0
	for y := range years {
		if min == 0 || y < min {
			min = y
		}
		if y > max {
			max = y
		}
	}
	for y := min; y <= max && min != 0; y++ {
		if !years[y] {
			continue
		}
		out = append(out, Period{
			Label: fmt.Sprintf("%d", y),
			From:  time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC),
			To:    time.Date(y+1, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

// Evaluator backtests a trained model against held-out windows of a table.
type Evaluator struct {
	model *TrainedModel
}

func NewEvaluator(m *TrainedModel) *Evaluator {
	return &Evaluator{model: m}
}

// Backtest scores each period independently and appends a pooled report
// labeled "aggregate" over all of them. Only complete rows with a known
// target at or after the model's training cutoff participate; rows the
// regressor was fitted on are never scored. A period that falls entirely
// inside the fit window produces no report.
func (e *Evaluator) Backtest(table *models.Table, periods []Period) ([]models.EvaluationReport, error) {
	if len(periods) == 0 {
		periods = YearPeriods(table)
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("backtest: %s table has no evaluable rows", table.Granularity)
	}

	pred := NewPredictor(e.model)
	reports := make([]models.EvaluationReport, 0, len(periods)+1)
	var pooled []models.PredictionRow

	for _, p := range periods {
		window := &models.Table{Granularity: table.Granularity, Schema: table.Schema}
		for _, r := range table.Rows {
			if r.Incomplete || !r.HasTarget {
				continue
			}
			if r.Period.Before(e.model.Cutoff) {
				continue
			}
			if r.Period.Before(p.From) || !r.Period.Before(p.To) {
				continue
			}
			window.Rows = append(window.Rows, r)
		}
		if len(window.Rows) == 0 {
			continue
		}
		rows, err := pred.Predict(window)
		if err != nil {
			return nil, fmt.Errorf("backtest %s %s: %w", table.Granularity, p.Label, err)
		}
		reports = append(reports, Summarize(table.Granularity, p.Label, rows))
		pooled = append(pooled, rows...)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("backtest: no period of the %s table has evaluable rows after the training cutoff", table.Granularity)
	}
	reports = append(reports, Summarize(table.Granularity, "aggregate", pooled))
	return reports, nil
}

// Summarize computes MAE, RMSE, MAPE and R² of calibrated predictions
// against actuals. MAPE skips rows whose actual is zero and reports how many
// were skipped; R² follows the coefficient-of-determination convention and
// can go negative when predictions underperform the mean.
func Summarize(g models.Granularity, label string, rows []models.PredictionRow) models.EvaluationReport {
	rep := models.EvaluationReport{Granularity: g, Period: label, Rows: rows}

	var absSum, sqSum, apeSum float64
	actuals := make([]float64, 0, len(rows))
	estimates := make([]float64, 0, len(rows))
	for _, r := range rows {
		if !r.HasActual {
			continue
		}
		err := r.Actual - r.Predicted
		absSum += math.Abs(err)
		sqSum += err * err
		actuals = append(actuals, r.Actual)
		estimates = append(estimates, r.Predicted)
		if r.Actual == 0 {
			rep.Excluded++
		} else {
			apeSum += math.Abs(err / r.Actual)
		}
		rep.N++
	}
	if rep.N == 0 {
		return rep
	}

	n := float64(rep.N)
	rep.MAE = absSum / n
	rep.RMSE = math.Sqrt(sqSum / n)
	if rep.N > rep.Excluded {
		rep.MAPE = apeSum / float64(rep.N-rep.Excluded) * 100
	}
	rep.R2 = stat.RSquaredFrom(estimates, actuals, nil)
	return rep
}
