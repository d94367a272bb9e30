package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"GridSpend/internal/domain/models"
	applogger "GridSpend/pkg/logger"
)

type captureObs struct {
	stored *models.SourceSeries
}

func (c *captureObs) Init(ctx context.Context) error { return nil }

func (c *captureObs) GetSeries(ctx context.Context, source string, from, to time.Time) (*models.SourceSeries, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *captureObs) StoreBatch(ctx context.Context, series *models.SourceSeries) error {
	c.stored = series
	return nil
}

func (c *captureObs) Span(ctx context.Context, source string) (time.Time, time.Time, error) {
	return time.Time{}, time.Time{}, fmt.Errorf("no data")
}

func (c *captureObs) Health(ctx context.Context) error { return nil }
func (c *captureObs) Close() error                     { return nil }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestPullStoresParsedSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") == "" || r.URL.Query().Get("to") == "" {
			t.Errorf("missing from/to query params")
		}
		if r.URL.Query().Get("region") != "west" {
			t.Errorf("endpoint params not forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"series":[
			{"timestamp":"2024-03-01T00:00:00Z","values":{"load":100,"price":12}},
			{"timestamp":"2024-03-01T01:00:00Z","values":{"load":110,"price":13}},
			{"timestamp":"not-a-time","values":{"load":1}}
		]}`)
	}))
	defer srv.Close()

	obs := &captureObs{}
	f := New(obs, testLogger(t), 5*time.Second)
	n, err := f.Pull(context.Background(), Endpoint{
		Name:   "grid",
		URL:    srv.URL,
		Params: map[string]string{"region": "west"},
	}, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 stored observations, bad timestamps skipped; got %d", n)
	}
	if obs.stored == nil || obs.stored.Source != "grid" {
		t.Fatalf("series not stored")
	}
	if len(obs.stored.Columns) != 2 || obs.stored.Columns[0] != "load" || obs.stored.Columns[1] != "price" {
		t.Fatalf("unexpected columns %v", obs.stored.Columns)
	}
	if obs.stored.Obs[1].Values["price"] != 13 {
		t.Fatalf("unexpected value %v", obs.stored.Obs[1].Values["price"])
	}
}

func TestPullUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(&captureObs{}, testLogger(t), 5*time.Second)
	_, err := f.Pull(context.Background(), Endpoint{Name: "grid", URL: srv.URL},
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatalf("expected error for upstream failure")
	}
}

func TestPullIncrementalNothingToDo(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		fmt.Fprint(w, `{"series":[]}`)
	}))
	defer srv.Close()

	f := New(&captureObs{}, testLogger(t), 5*time.Second)
	n, err := f.PullIncremental(context.Background(), Endpoint{Name: "grid", URL: srv.URL}, 0)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing stored, got %d", n)
	}
	if called {
		t.Fatalf("no request should go out when the window is empty")
	}
}
