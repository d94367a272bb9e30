package di

import (
	"fmt"
	"net"
	"strconv"

	"GridSpend/internal/domain/models"
	"GridSpend/internal/domain/repository"
	"GridSpend/internal/handler/api"
	internalrepo "GridSpend/internal/repository"
	icache "GridSpend/internal/service/cache"
	"GridSpend/internal/services/features"
	"GridSpend/internal/services/model"
	"GridSpend/internal/usecase"
	pkgcache "GridSpend/pkg/cache"
	pkgch "GridSpend/pkg/clickhouse"
	"GridSpend/pkg/config"
	xhttp "GridSpend/pkg/http"
	applogger "GridSpend/pkg/logger"
	"GridSpend/pkg/metrics"
	pkgqueue "GridSpend/pkg/queue"
	"GridSpend/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client. Table schemas are
// created by the stores' Init, not here.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideObservationStore creates the ClickHouse observation store.
func ProvideObservationStore(chClient *pkgch.Client, l *applogger.Logger) repository.ObservationStore {
	s := internalrepo.NewCHObservationStore(chClient)
	s.SetLogger(l)
	return s
}

// ProvideResultStore creates the ClickHouse result store.
func ProvideResultStore(chClient *pkgch.Client, l *applogger.Logger) repository.ResultStore {
	s := internalrepo.NewCHResultStore(chClient)
	s.SetLogger(l)
	return s
}

// ProvideModelStore creates the filesystem model artifact store.
func ProvideModelStore(cfg *config.Config, l *applogger.Logger) repository.ModelStore {
	dir := cfg.Pipeline.ModelDir
	if dir == "" {
		dir = "models"
	}
	s := internalrepo.NewFSModelStore(dir)
	s.SetLogger(l)
	return s
}

// ProvidePipeline assembles the pipeline configuration from YAML.
func ProvidePipeline(
	obs repository.ObservationStore,
	modelSt repository.ModelStore,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.Pipeline {
	fill := make(map[string]features.FillPolicy, len(cfg.Pipeline.FillPolicies))
	for col, policy := range cfg.Pipeline.FillPolicies {
		fill[col] = features.FillPolicy(policy)
	}

	pcfg := usecase.PipelineConfig{
		Sources: cfg.Pipeline.Sources,
		Builder: features.BuilderConfig{
			KWhPerHour:    cfg.Pipeline.KWhPerHour,
			LoadColumn:    cfg.Pipeline.LoadColumn,
			PriceColumn:   cfg.Pipeline.PriceColumn,
			LagHours:      cfg.Pipeline.LagHours,
			RollingWindow: cfg.Pipeline.RollingWindow,
			FillPolicies:  fill,
		},
		MinRows: map[models.Granularity]int{},
		Hyper:   map[models.Granularity]model.Hyperparams{},
	}
	for name, min := range cfg.Pipeline.MinRows {
		pcfg.MinRows[models.Granularity(name)] = min
	}
	for name, mc := range cfg.Models {
		pcfg.Hyper[models.Granularity(name)] = model.Hyperparams{
			Kind:         mc.Kind,
			Trees:        mc.Trees,
			MaxDepth:     mc.MaxDepth,
			MinLeaf:      mc.MinLeaf,
			LearningRate: mc.LearningRate,
			Seed:         mc.Seed,
		}
	}
	return usecase.NewPipeline(obs, modelSt, m, pcfg, l)
}

// ProvideForecastUseCase creates the forecast use case.
func ProvideForecastUseCase(pipeline *usecase.Pipeline, results repository.ResultStore, m repository.Metrics, l *applogger.Logger) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(pipeline, results, m, l)
}

// ProvideBacktestUseCase creates the backtest use case.
func ProvideBacktestUseCase(pipeline *usecase.Pipeline, results repository.ResultStore, m repository.Metrics, l *applogger.Logger) *usecase.BacktestUseCase {
	return usecase.NewBacktestUseCase(pipeline, results, m, l)
}

// ProvideHTTPHandler creates the forecast API handler with its response
// cache: layered memory+redis when redis is configured, in-process otherwise.
// The redis case also carries the retrain request queue.
func ProvideHTTPHandler(
	l *applogger.Logger,
	forecast *usecase.ForecastUseCase,
	backtest *usecase.BacktestUseCase,
	obs repository.ObservationStore,
	cfg *config.Config,
) xhttp.Handler {
	h := api.NewForecastsEchoHandler(l, forecast, backtest, obs)
	h.SetCacheTTL(cfg.API.CacheTTL)

	if cfg.API.Redis.Enabled {
		host, port := splitHostPort(cfg.API.Redis.Addr)
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(host),
			pkgcache.WithRedisPort(port),
			pkgcache.WithRedisPassword(cfg.API.Redis.Password),
			pkgcache.WithRedisDB(cfg.API.Redis.DB),
		)
		if err != nil {
			l.Warn("redis cache unavailable, using in-process cache", applogger.Error(err))
			h.SetCache(icache.NewTTLCache())
			return h
		}
		h.SetCache(icache.NewServiceCache(pkgcache.NewLayeredCache(rc)))
		h.SetQueue(pkgqueue.NewRedisPublisher(l, rc.Client()))
		return h
	}

	h.SetCache(icache.NewTTLCache())
	return h
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}
	return host, port
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	chClient *pkgch.Client,
	obs repository.ObservationStore,
	results repository.ResultStore,
	pipeline *usecase.Pipeline,
	forecast *usecase.ForecastUseCase,
	backtest *usecase.BacktestUseCase,
	handler xhttp.Handler,
) *server.App {
	app := server.New(cfg, l, chClient, obs, results, pipeline, forecast, backtest)
	app.SetHTTPHandler(handler)
	return app
}
