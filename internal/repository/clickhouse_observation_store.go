package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"GridSpend/internal/domain/models"
	domrepo "GridSpend/internal/domain/repository"
	pkgch "GridSpend/pkg/clickhouse"
	applogger "GridSpend/pkg/logger"
)

// CHObservationStore implements ObservationStore backed by ClickHouse.
// Observations land as (source, metric, ts, value) points; GetSeries pivots
// them back into one row per timestamp with a value per metric column.
type CHObservationStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

var _ domrepo.ObservationStore = (*CHObservationStore)(nil)

func NewCHObservationStore(ch *pkgch.Client) *CHObservationStore {
	return &CHObservationStore{client: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHObservationStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHObservationStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE DATABASE IF NOT EXISTS gridspend`,
		`CREATE TABLE IF NOT EXISTS gridspend.raw_observations (
            ts     DateTime('UTC'),
            source LowCardinality(String),
            metric LowCardinality(String),
            value  Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (source, metric, ts)`,
	}
	return s.client.InitSchema(ctx, stmts)
}

func (s *CHObservationStore) GetSeries(ctx context.Context, source string, from, to time.Time) (*models.SourceSeries, error) {
	start := time.Now()
	const q = `
        SELECT ts, metric, value
        FROM gridspend.raw_observations FINAL
        WHERE source = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC, metric ASC
    `
	rows, err := s.db.QueryContext(ctx, q, source, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_series query error",
				applogger.String("source", source),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	byTS := map[time.Time]map[string]float64{}
	metrics := map[string]bool{}
	order := make([]time.Time, 0, 1024)
	for rows.Next() {
		var (
			ts     time.Time
			metric string
			value  float64
		)
		if err := rows.Scan(&ts, &metric, &value); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse get_series scan error",
					applogger.String("source", source),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		ts = ts.UTC()
		vals, ok := byTS[ts]
		if !ok {
			vals = map[string]float64{}
			byTS[ts] = vals
			order = append(order, ts)
		}
		vals[metric] = value
		metrics[metric] = true
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_series rows error",
				applogger.String("source", source),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}

	cols := make([]string, 0, len(metrics))
	for m := range metrics {
		cols = append(cols, m)
	}
	sort.Strings(cols)

	series := &models.SourceSeries{Source: source, Columns: cols, Obs: make([]models.RawObservation, 0, len(order))}
	for _, ts := range order {
		series.Obs = append(series.Obs, models.RawObservation{Timestamp: ts, Values: byTS[ts]})
	}
	if s.l != nil {
		s.l.Info("clickhouse get_series ok",
			applogger.String("source", source),
			applogger.Int("rows", len(series.Obs)),
			applogger.Int("metrics", len(cols)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return series, nil
}

func (s *CHObservationStore) StoreBatch(ctx context.Context, series *models.SourceSeries) error {
	if series == nil || len(series.Obs) == 0 {
		return nil
	}
	// Multi-row VALUES inserts, chunked to keep statements bounded.
	const chunkSize = 2000
	type point struct {
		ts     time.Time
		metric string
		value  float64
	}
	points := make([]point, 0, len(series.Obs)*len(series.Columns))
	for _, obs := range series.Obs {
		for _, metric := range series.Columns {
			v, ok := obs.Values[metric]
			if !ok || models.IsMissing(v) {
				continue
			}
			points = append(points, point{ts: obs.Timestamp.UTC(), metric: metric, value: v})
		}
	}

	for start := 0; start < len(points); start += chunkSize {
		end := start + chunkSize
		if end > len(points) {
			end = len(points)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*4)
		for _, p := range points[start:end] {
			values = append(values, "(?, ?, ?, ?)")
			args = append(args, p.ts, series.Source, p.metric, p.value)
		}
		q := "INSERT INTO gridspend.raw_observations (ts, source, metric, value) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse store_batch error",
					applogger.String("source", series.Source),
					applogger.Int("points", end-start),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store batch: %w", err)
		}
	}
	return nil
}

func (s *CHObservationStore) Span(ctx context.Context, source string) (time.Time, time.Time, error) {
	const q = `
        SELECT min(ts), max(ts), count()
        FROM gridspend.raw_observations
        WHERE source = ?
    `
	var (
		from, to time.Time
		n        uint64
	)
	if err := s.db.QueryRowContext(ctx, q, source).Scan(&from, &to, &n); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("span: %w", err)
	}
	if n == 0 {
		return time.Time{}, time.Time{}, &models.DataGapError{Source: source}
	}
	return from.UTC(), to.UTC(), nil
}

func (s *CHObservationStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHObservationStore) Close() error {
	return nil // pool owned by pkg client
}
