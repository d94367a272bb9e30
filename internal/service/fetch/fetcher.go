package fetch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"GridSpend/internal/domain/models"
	domrepo "GridSpend/internal/domain/repository"
	xhttp "GridSpend/pkg/http"
	applogger "GridSpend/pkg/logger"
	"GridSpend/pkg/util"
)

// Endpoint describes one upstream JSON API serving hourly observations for a
// source.
type Endpoint struct {
	Name   string
	URL    string
	Params map[string]string
}

// payload is the expected response shape: a flat list of timestamped value
// maps, one entry per hour.
type payload struct {
	Series []struct {
		Timestamp string             `json:"timestamp"`
		Values    map[string]float64 `json:"values"`
	} `json:"series"`
}

// Fetcher pulls raw observations from upstream APIs in batches and lands
// them in the observation store. It is a scheduled batch puller; each Pull
// covers an explicit time window.
type Fetcher struct {
	http *xhttp.Client
	obs  domrepo.ObservationStore
	l    *applogger.Logger
}

func New(obs domrepo.ObservationStore, l *applogger.Logger, timeout time.Duration) *Fetcher {
	return &Fetcher{
		http: xhttp.NewClient(xhttp.WithTimeout(timeout)),
		obs:  obs,
		l:    l,
	}
}

// Pull fetches [from, to] for one endpoint and stores the result. Returns
// the number of observations stored.
func (f *Fetcher) Pull(ctx context.Context, ep Endpoint, from, to time.Time) (int, error) {
	start := time.Now()
	params := map[string][]string{
		"from": {from.UTC().Format(time.RFC3339)},
		"to":   {to.UTC().Format(time.RFC3339)},
	}
	for k, v := range ep.Params {
		params[k] = []string{v}
	}

	var body payload
	err := f.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         ep.URL,
		QueryParams: params,
	}, &body)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", ep.Name, err)
	}

	series := &models.SourceSeries{Source: ep.Name}
	metrics := map[string]bool{}
	for _, row := range body.Series {
		ts, ok := util.ParseTime(row.Timestamp)
		if !ok {
			f.l.Warn("fetch: skipping unparseable timestamp",
				applogger.String("source", ep.Name),
				applogger.String("timestamp", row.Timestamp),
			)
			continue
		}
		series.Obs = append(series.Obs, models.RawObservation{Timestamp: ts.UTC(), Values: row.Values})
		for m := range row.Values {
			metrics[m] = true
		}
	}
	for m := range metrics {
		series.Columns = append(series.Columns, m)
	}
	sort.Strings(series.Columns)

	if err := f.obs.StoreBatch(ctx, series); err != nil {
		return 0, fmt.Errorf("store %s: %w", ep.Name, err)
	}
	f.l.Info("fetch ok",
		applogger.String("source", ep.Name),
		applogger.Int("observations", len(series.Obs)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return len(series.Obs), nil
}

// PullIncremental fetches from the hour after the last stored observation up
// to now. A source with no stored data starts at the given backfill horizon.
func (f *Fetcher) PullIncremental(ctx context.Context, ep Endpoint, backfill time.Duration) (int, error) {
	now := time.Now().UTC().Truncate(time.Hour)
	from := now.Add(-backfill)
	if _, last, err := f.obs.Span(ctx, ep.Name); err == nil {
		from = last.Add(time.Hour)
	}
	if !from.Before(now) {
		return 0, nil
	}
	return f.Pull(ctx, ep, from, now)
}
