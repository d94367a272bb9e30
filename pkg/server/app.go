package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"GridSpend/internal/domain/models"
	domrepo "GridSpend/internal/domain/repository"
	"GridSpend/internal/service/fetch"
	"GridSpend/internal/usecase"
	pkgch "GridSpend/pkg/clickhouse"
	"GridSpend/pkg/config"
	xhttp "GridSpend/pkg/http"
	applogger "GridSpend/pkg/logger"
	pkgqueue "GridSpend/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// App encapsulates the entire application lifecycle: the batch pipeline
// (align, build, train, forecast, backtest) and the HTTP surface that
// publishes its results.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	chClient    *pkgch.Client
	obs         domrepo.ObservationStore
	results     domrepo.ResultStore
	pipeline    *usecase.Pipeline
	forecast    *usecase.ForecastUseCase
	backtest    *usecase.BacktestUseCase
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	queue       *pkgqueue.RedisQueue
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	chClient *pkgch.Client,
	obs domrepo.ObservationStore,
	results domrepo.ResultStore,
	pipeline *usecase.Pipeline,
	forecast *usecase.ForecastUseCase,
	backtest *usecase.BacktestUseCase,
) *App {
	return &App{
		cfg:      cfg,
		l:        l,
		chClient: chClient,
		obs:      obs,
		results:  results,
		pipeline: pipeline,
		forecast: forecast,
		backtest: backtest,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Ingest pulls fresh observations from every configured upstream endpoint.
// Each source resumes from its last stored hour; empty sources backfill the
// configured window.
func (a *App) Ingest(ctx context.Context) error {
	if len(a.cfg.Fetch.Endpoints) == 0 {
		return fmt.Errorf("no fetch endpoints configured")
	}
	if err := a.initStores(ctx); err != nil {
		return err
	}

	timeout := a.cfg.Fetch.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	backfill := a.cfg.Fetch.Backfill
	if backfill <= 0 {
		backfill = 365 * 24 * time.Hour
	}

	f := fetch.New(a.obs, a.l, timeout)
	var firstErr error
	for _, ep := range a.cfg.Fetch.Endpoints {
		n, err := f.PullIncremental(ctx, fetch.Endpoint{
			Name:   ep.Name,
			URL:    ep.URL,
			Params: ep.Params,
		}, backfill)
		if err != nil {
			a.l.Warn("ingest failed",
				applogger.String("source", ep.Name),
				applogger.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if n == 0 {
			a.l.Info("ingest up to date", applogger.String("source", ep.Name))
		}
	}
	return firstErr
}

// Train builds feature tables over the full stored span and trains a model
// per granularity.
func (a *App) Train(ctx context.Context) error {
	tables, err := a.buildTables(ctx)
	if err != nil {
		return err
	}
	if _, err := a.pipeline.TrainAll(ctx, tables); err != nil {
		return err
	}
	return nil
}

// Forecast scores every granularity with its persisted model and publishes
// the rows, extending each by its configured horizon.
func (a *App) Forecast(ctx context.Context) error {
	tables, err := a.buildTables(ctx)
	if err != nil {
		return err
	}
	for _, g := range models.Granularities() {
		table, ok := tables[g]
		if !ok {
			continue
		}
		horizon := a.cfg.Pipeline.Horizons[string(g)]
		res, err := a.forecast.Forecast(ctx, table, usecase.ForecastParams{Granularity: g, Horizon: horizon})
		if err != nil {
			a.l.Warn("forecast skipped",
				applogger.String("granularity", string(g)),
				applogger.Error(err),
			)
			continue
		}
		a.l.Info("forecast done",
			applogger.String("granularity", string(g)),
			applogger.Int("rows", res.Generated),
		)
	}
	return nil
}

// Evaluate backtests every granularity against its history and publishes the
// reports.
func (a *App) Evaluate(ctx context.Context) error {
	tables, err := a.buildTables(ctx)
	if err != nil {
		return err
	}
	for _, g := range models.Granularities() {
		table, ok := tables[g]
		if !ok {
			continue
		}
		if _, err := a.backtest.Backtest(ctx, table, usecase.BacktestParams{Granularity: g}); err != nil {
			a.l.Warn("backtest skipped",
				applogger.String("granularity", string(g)),
				applogger.Error(err),
			)
		}
	}
	return nil
}

// Run executes the full pipeline once, then serves the results over HTTP
// until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.initStores(ctx); err != nil {
		return err
	}
	if err := a.Train(ctx); err != nil {
		return err
	}
	if err := a.Forecast(ctx); err != nil {
		return err
	}
	if err := a.Evaluate(ctx); err != nil {
		return err
	}
	return a.Serve()
}

// Serve starts the HTTP server and blocks until interrupted.
func (a *App) Serve() error {
	ctx := context.Background()
	if err := a.initStores(ctx); err != nil {
		return err
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("serving forecasts", applogger.Int("port", a.cfg.Server.Port))

	// Retrain requests arrive over a redis queue when one is configured, so
	// fresh models don't require a restart.
	if a.cfg.API.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.API.Redis.Addr,
			Password: a.cfg.API.Redis.Password,
			DB:       a.cfg.API.Redis.DB,
		})

		// Deduplicated error logs ride the same redis connection so a noisy
		// failure surfaces as one aggregated entry instead of a flood.
		a.l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "logs:aggregated",
			Publisher:      pkgqueue.NewRedisPublisher(a.l, client),
		})

		job := usecase.NewRetrainJob(a, a.l)
		a.queue = pkgqueue.NewRedisConsumer(a.l,
			&pkgqueue.QueueConfig{Workers: 1, QueueSize: 16, RetryLimit: 2, RetryDelay: time.Minute},
			client, []pkgqueue.Job{job},
		)
		if err := a.queue.Start(); err != nil {
			a.l.Warn("retrain queue start error", applogger.Error(err))
		} else {
			a.queue.StartRetryProcessor()
			a.l.Info("retrain queue started")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

func (a *App) initStores(ctx context.Context) error {
	if err := a.obs.Init(ctx); err != nil {
		return fmt.Errorf("init observation store: %w", err)
	}
	if err := a.results.Init(ctx); err != nil {
		return fmt.Errorf("init result store: %w", err)
	}
	return nil
}

func (a *App) buildTables(ctx context.Context) (map[models.Granularity]*models.Table, error) {
	if err := a.initStores(ctx); err != nil {
		return nil, err
	}
	from, to, err := a.pipeline.FullSpan(ctx)
	if err != nil {
		return nil, err
	}
	return a.pipeline.BuildTables(ctx, from, to)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.l.RemoveCollector()
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.l.Warn("retrain queue stop error", applogger.Error(err))
		}
	}
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if err := a.results.Close(); err != nil {
		a.l.Warn("result store close error", applogger.Error(err))
	}
	if err := a.obs.Close(); err != nil {
		a.l.Warn("observation store close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
