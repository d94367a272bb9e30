package api

import (
	"encoding/json"
	"time"

	models "GridSpend/internal/domain/models"
	domrepo "GridSpend/internal/domain/repository"
	icache "GridSpend/internal/service/cache"
	"GridSpend/internal/service/metrics"
	"GridSpend/internal/service/ratelimit"
	"GridSpend/internal/usecase"
	pkgcache "GridSpend/pkg/cache"
	xhttp "GridSpend/pkg/http"
	xlogger "GridSpend/pkg/logger"
	pkgqueue "GridSpend/pkg/queue"
	"GridSpend/pkg/util"

	"github.com/labstack/echo/v4"
)

// ForecastsEchoHandler exposes published forecasts and evaluation reports.
// Results are batch artifacts, so responses are cached aggressively.
type ForecastsEchoHandler struct {
	logger   *xlogger.Logger
	forecast *usecase.ForecastUseCase
	backtest *usecase.BacktestUseCase
	obs      domrepo.ObservationStore
	cache    icache.BytesCache
	queue    pkgqueue.QueueService
	rl       *ratelimit.Limiter
	cacheTTL time.Duration
}

func NewForecastsEchoHandler(logger *xlogger.Logger, forecast *usecase.ForecastUseCase, backtest *usecase.BacktestUseCase, obs domrepo.ObservationStore) *ForecastsEchoHandler {
	metrics.Register()
	return &ForecastsEchoHandler{
		logger:   logger,
		forecast: forecast,
		backtest: backtest,
		obs:      obs,
		rl:       ratelimit.New(),
		cacheTTL: 60 * time.Second,
	}
}

// SetCache injects a response cache.
func (h *ForecastsEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetQueue injects the retrain request queue.
func (h *ForecastsEchoHandler) SetQueue(q pkgqueue.QueueService) { h.queue = q }

// SetCacheTTL overrides the default response cache lifetime.
func (h *ForecastsEchoHandler) SetCacheTTL(d time.Duration) {
	if d > 0 {
		h.cacheTTL = d
	}
}

func (h *ForecastsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.GET("/evaluation", h.Evaluation)
	g.GET("/health", h.Health)
	g.POST("/retrain", h.Retrain)
}

func (h *ForecastsEchoHandler) Forecast(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("forecast").Observe(time.Since(start).Seconds()) }()

	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	g := models.NormalizeGranularity(req.Granularity)

	now := time.Now().UTC()
	from := util.ParseTimeDefault(req.From, now.AddDate(0, -1, 0))
	to := util.ParseTimeDefault(req.To, now.AddDate(0, 1, 0))
	from, to = util.AlignFromTo(from, to, string(g))
	if from.After(to) {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("from must be <= to"))
	}

	key := pkgcache.GenerateKeyWithParams("forecast", g, from.Unix(), to.Unix(), req.Limit)
	if b, ok := h.cached(key); ok {
		metrics.CacheHits.WithLabelValues("forecast").Inc()
		return c.JSONBlob(200, b)
	}

	rows, err := h.forecast.GetPredictions(c.Request().Context(), g, from, to)
	if err != nil {
		metrics.APIErrors.WithLabelValues("forecast").Inc()
		h.logger.Error("forecast usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}

	resp := map[string]interface{}{
		"granularity": g,
		"from":        from,
		"to":          to,
		"count":       len(rows),
		"rows":        rows,
	}
	h.store(key, resp)
	return xhttp.SuccessResponse(c, resp)
}

func (h *ForecastsEchoHandler) Evaluation(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("evaluation").Observe(time.Since(start).Seconds()) }()

	req := &models.EvaluationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	g := models.NormalizeGranularity(req.Granularity)

	key := pkgcache.GenerateKey("evaluation", string(g))
	if b, ok := h.cached(key); ok {
		metrics.CacheHits.WithLabelValues("evaluation").Inc()
		return c.JSONBlob(200, b)
	}

	reports, err := h.backtest.GetReports(c.Request().Context(), g)
	if err != nil {
		metrics.APIErrors.WithLabelValues("evaluation").Inc()
		h.logger.Error("evaluation usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	resp := map[string]interface{}{
		"granularity": g,
		"count":       len(reports),
		"reports":     reports,
	}
	h.store(key, resp)
	return xhttp.SuccessResponse(c, resp)
}

func (h *ForecastsEchoHandler) Health(c echo.Context) error {
	status := "ok"
	if err := h.obs.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check storage error", xlogger.Error(err))
		status = "degraded"
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": status})
}

// Retrain enqueues a pipeline rerun. Retraining is expensive, so requests
// are rate limited per caller.
func (h *ForecastsEchoHandler) Retrain(c echo.Context) error {
	if h.queue == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("retrain queue is not configured"))
	}
	if !h.rl.Allow(c.RealIP()+":retrain", 2, 1.0/60) {
		metrics.APIErrors.WithLabelValues("retrain").Inc()
		return xhttp.DataResponse(c, 429, "rate limited")
	}

	payload := usecase.RetrainPayload{
		Reason:      c.QueryParam("reason"),
		RequestedAt: time.Now().UTC(),
	}
	if err := h.queue.PublishMessage(c.Request().Context(), usecase.RetrainMessageType, payload); err != nil {
		metrics.APIErrors.WithLabelValues("retrain").Inc()
		h.logger.Error("retrain enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "queued"})
}

func (h *ForecastsEchoHandler) cached(key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		h.logger.Warn("response cache get error", xlogger.Error(err))
		return nil, false
	}
	return b, ok
}

// store caches the full response envelope so cache hits and misses return
// the same shape.
func (h *ForecastsEchoHandler) store(key string, resp interface{}) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(xhttp.APIResponse{Status: 200, Message: "OK", Data: resp})
	if err != nil {
		return
	}
	if err := h.cache.SetBytes(key, b, h.cacheTTL); err != nil {
		h.logger.Warn("response cache set error", xlogger.Error(err))
	}
}
