package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"GridSpend/internal/domain/models"
	domrepo "GridSpend/internal/domain/repository"
	pkgch "GridSpend/pkg/clickhouse"
	applogger "GridSpend/pkg/logger"
)

// CHResultStore persists forecast rows and evaluation reports to ClickHouse
// for the dashboard to read back.
type CHResultStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
	now    func() time.Time
}

var _ domrepo.ResultStore = (*CHResultStore)(nil)

func NewCHResultStore(ch *pkgch.Client) *CHResultStore {
	return &CHResultStore{client: ch, db: ch.DB(), now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHResultStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHResultStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE DATABASE IF NOT EXISTS gridspend`,
		`CREATE TABLE IF NOT EXISTS gridspend.forecast_rows (
            granularity LowCardinality(String),
            period      DateTime('UTC'),
            raw         Float64,
            predicted   Float64,
            actual      Float64,
            has_actual  UInt8,
            residual    Float64,
            incomplete  UInt8,
            created_at  DateTime('UTC')
        ) ENGINE = ReplacingMergeTree(created_at)
        ORDER BY (granularity, period)`,
		`CREATE TABLE IF NOT EXISTS gridspend.evaluation_reports (
            granularity LowCardinality(String),
            period      String,
            n           UInt32,
            excluded    UInt32,
            mae         Float64,
            rmse        Float64,
            mape        Float64,
            r2          Float64,
            created_at  DateTime('UTC')
        ) ENGINE = ReplacingMergeTree(created_at)
        ORDER BY (granularity, period)`,
	}
	return s.client.InitSchema(ctx, stmts)
}

func (s *CHResultStore) StorePredictions(ctx context.Context, rows []models.PredictionRow) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	const chunkSize = 2000
	createdAt := s.now().UTC()
	for lo := 0; lo < len(rows); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(rows) {
			hi = len(rows)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*9)
		for _, r := range rows[lo:hi] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				string(r.Granularity), r.Period.UTC(), r.Raw, r.Predicted,
				r.Actual, boolToUInt8(r.HasActual), r.Residual, boolToUInt8(r.Incomplete), createdAt,
			)
		}
		q := "INSERT INTO gridspend.forecast_rows (granularity, period, raw, predicted, actual, has_actual, residual, incomplete, created_at) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse store_predictions error",
					applogger.Int("rows", hi-lo),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store predictions: %w", err)
		}
	}
	if s.l != nil {
		s.l.Info("clickhouse store_predictions ok",
			applogger.Int("rows", len(rows)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHResultStore) GetPredictions(ctx context.Context, g models.Granularity, from, to time.Time) ([]models.PredictionRow, error) {
	const q = `
        SELECT period, raw, predicted, actual, has_actual, residual, incomplete
        FROM gridspend.forecast_rows FINAL
        WHERE granularity = ? AND period >= ? AND period <= ?
        ORDER BY period ASC
    `
	rows, err := s.db.QueryContext(ctx, q, string(g), from, to)
	if err != nil {
		return nil, fmt.Errorf("get predictions: %w", err)
	}
	defer rows.Close()

	out := make([]models.PredictionRow, 0, 256)
	for rows.Next() {
		var (
			r                    models.PredictionRow
			hasActual, incomplete uint8
		)
		if err := rows.Scan(&r.Period, &r.Raw, &r.Predicted, &r.Actual, &hasActual, &r.Residual, &incomplete); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		r.Granularity = g
		r.Period = r.Period.UTC()
		r.HasActual = hasActual != 0
		r.Incomplete = incomplete != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *CHResultStore) StoreReports(ctx context.Context, reports []models.EvaluationReport) error {
	if len(reports) == 0 {
		return nil
	}
	createdAt := s.now().UTC()
	values := make([]string, 0, len(reports))
	args := make([]interface{}, 0, len(reports)*9)
	for _, rep := range reports {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			string(rep.Granularity), rep.Period, uint32(rep.N), uint32(rep.Excluded),
			rep.MAE, rep.RMSE, rep.MAPE, rep.R2, createdAt,
		)
	}
	q := "INSERT INTO gridspend.evaluation_reports (granularity, period, n, excluded, mae, rmse, mape, r2, created_at) VALUES " + strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_reports error",
				applogger.Int("reports", len(reports)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store reports: %w", err)
	}
	return nil
}

func (s *CHResultStore) GetReports(ctx context.Context, g models.Granularity) ([]models.EvaluationReport, error) {
	const q = `
        SELECT period, n, excluded, mae, rmse, mape, r2
        FROM gridspend.evaluation_reports FINAL
        WHERE granularity = ?
        ORDER BY period ASC
    `
	rows, err := s.db.QueryContext(ctx, q, string(g))
	if err != nil {
		return nil, fmt.Errorf("get reports: %w", err)
	}
	defer rows.Close()

	out := make([]models.EvaluationReport, 0, 8)
	for rows.Next() {
		var (
			rep         models.EvaluationReport
			n, excluded uint32
		)
		if err := rows.Scan(&rep.Period, &n, &excluded, &rep.MAE, &rep.RMSE, &rep.MAPE, &rep.R2); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rep.Granularity = g
		rep.N = int(n)
		rep.Excluded = int(excluded)
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (s *CHResultStore) Close() error {
	return nil // pool owned by pkg client
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
