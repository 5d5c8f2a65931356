package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"agri-dashboard/internal/cache"
	"agri-dashboard/internal/models"
	"agri-dashboard/pkg/logging"
	"agri-dashboard/pkg/metrics"
)

const (
	dateLayout       = "2006-01-02"
	apiPrefix        = "/api/dashboard"
	maxHorizonMonths = 120
)

// Dashboard is the query surface served over HTTP
type Dashboard interface {
	NationalOverview(ctx context.Context, now time.Time) (*models.NationalOverview, error)
	RegionProduction(ctx context.Context, now time.Time, start, end *time.Time) ([]models.RegionProduction, error)
	MarketPrices(ctx context.Context, date time.Time) ([]models.MarketPrice, error)
	PriceVolatility(ctx context.Context, now time.Time, start, end *time.Time) ([]models.PriceVolatility, error)
	WarehouseSnapshot(ctx context.Context, date time.Time) ([]models.StorageWarehouse, error)
	StorageUtilization(ctx context.Context, date time.Time) (*models.StorageUtilization, error)
	SeasonalityMonthly(ctx context.Context, year int) ([]models.SeasonalityMonth, error)
	ProductionForecast(ctx context.Context, regionCode string, months int, now time.Time) ([]*models.ForecastPoint, error)
	PriceForecast(ctx context.Context, market string, months int, now time.Time) ([]*models.ForecastPoint, error)
	LatestModelMetrics(ctx context.Context) (models.ModelMetrics, error)
	ModelMetadata() models.ModelMetadata
	StoredForecasts(ctx context.Context, kind models.ForecastKind, subject string, from time.Time) ([]*models.ForecastPoint, error)
	HealthCheck(ctx context.Context) error
}

// DashboardHandler handles dashboard API endpoints
type DashboardHandler struct {
	service Dashboard
	cache   *cache.Cache
	clock   func() time.Time
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler. A nil clock uses time.Now.
func NewDashboardHandler(
	service Dashboard,
	responseCache *cache.Cache,
	clock func() time.Time,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	if clock == nil {
		clock = time.Now
	}
	if responseCache == nil {
		responseCache = cache.Disabled(logger, metricsCollector)
	}
	return &DashboardHandler{
		service: service,
		cache:   responseCache,
		clock:   clock,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NationalOverview handles GET /api/dashboard/overview/national
func (h *DashboardHandler) NationalOverview(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/overview/national"
	defer h.observe(endpoint)()

	now := h.clock()
	key := cache.Key("overview", now.Format(dateLayout))

	overview, err := cached(r.Context(), h, key, func() (*models.NationalOverview, error) {
		return h.service.NationalOverview(r.Context(), now)
	})
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendOK(w, r, endpoint, overview)
}

// RegionProduction handles GET /api/dashboard/production/regions
func (h *DashboardHandler) RegionProduction(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/production/regions"
	defer h.observe(endpoint)()

	start, end, err := parseRange(r)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	now := h.clock()
	key := cache.Key("production-regions", now.Format(dateLayout), formatOptional(start), formatOptional(end))

	rows, err := cached(r.Context(), h, key, func() ([]models.RegionProduction, error) {
		return h.service.RegionProduction(r.Context(), now, start, end)
	})
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendOK(w, r, endpoint, rows)
}

// MarketPrices handles GET /api/dashboard/prices/markets
func (h *DashboardHandler) MarketPrices(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/prices/markets"
	defer h.observe(endpoint)()

	date, err := h.dateOrToday(r, "date")
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	rows, err := cached(r.Context(), h, cache.Key("market-prices", date.Format(dateLayout)), func() ([]models.MarketPrice, error) {
		return h.service.MarketPrices(r.Context(), date)
	})
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendOK(w, r, endpoint, rows)
}

// PriceVolatility handles GET /api/dashboard/prices/volatility
func (h *DashboardHandler) PriceVolatility(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/prices/volatility"
	defer h.observe(endpoint)()

	start, end, err := parseRange(r)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	now := h.clock()
	key := cache.Key("price-volatility", now.Format(dateLayout), formatOptional(start), formatOptional(end))

	rows, err := cached(r.Context(), h, key, func() ([]models.PriceVolatility, error) {
		return h.service.PriceVolatility(r.Context(), now, start, end)
	})
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendOK(w, r, endpoint, rows)
}

// WarehouseSnapshot handles GET /api/dashboard/storage/warehouses
func (h *DashboardHandler) WarehouseSnapshot(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/storage/warehouses"
	defer h.observe(endpoint)()

	date, err := h.dateOrToday(r, "date")
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	rows, err := cached(r.Context(), h, cache.Key("warehouses", date.Format(dateLayout)), func() ([]models.StorageWarehouse, error) {
		return h.service.WarehouseSnapshot(r.Context(), date)
	})
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendOK(w, r, endpoint, rows)
}

// StorageUtilization handles GET /api/dashboard/storage/utilization
func (h *DashboardHandler) StorageUtilization(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/storage/utilization"
	defer h.observe(endpoint)()

	date, err := h.dateOrToday(r, "date")
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	util, err := cached(r.Context(), h, cache.Key("storage-utilization", date.Format(dateLayout)), func() (*models.StorageUtilization, error) {
		return h.service.StorageUtilization(r.Context(), date)
	})
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendOK(w, r, endpoint, util)
}

// SeasonalityMonthly handles GET /api/dashboard/seasonality/monthly
func (h *DashboardHandler) SeasonalityMonthly(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/seasonality/monthly"
	defer h.observe(endpoint)()

	// zero or negative means the current year
	year := h.clock().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y > 9999 {
			h.handleError(w, r, endpoint, &models.ValidationError{
				Field:   "year",
				Value:   raw,
				Message: "invalid year, expected a four-digit integer",
			})
			return
		}
		if y > 0 {
			year = y
		}
	}

	months, err := cached(r.Context(), h, cache.Key("seasonality", strconv.Itoa(year)), func() ([]models.SeasonalityMonth, error) {
		return h.service.SeasonalityMonthly(r.Context(), year)
	})
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendOK(w, r, endpoint, months)
}

// ProductionForecast handles GET /api/dashboard/forecast/production
func (h *DashboardHandler) ProductionForecast(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/forecast/production"
	defer h.observe(endpoint)()

	regionCode := strings.TrimSpace(r.URL.Query().Get("regionCode"))
	if regionCode == "" {
		h.handleError(w, r, endpoint, &models.ValidationError{Field: "regionCode", Message: "regionCode is required"})
		return
	}

	months, err := parseMonths(r)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	points, err := h.service.ProductionForecast(r.Context(), regionCode, months, h.clock())
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendOK(w, r, endpoint, points)
}

// PriceForecast handles GET /api/dashboard/forecast/prices
func (h *DashboardHandler) PriceForecast(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/forecast/prices"
	defer h.observe(endpoint)()

	market := strings.TrimSpace(r.URL.Query().Get("market"))
	if market == "" {
		h.handleError(w, r, endpoint, &models.ValidationError{Field: "market", Message: "market is required"})
		return
	}

	months, err := parseMonths(r)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	points, err := h.service.PriceForecast(r.Context(), market, months, h.clock())
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendOK(w, r, endpoint, points)
}

// ModelMetrics handles GET /api/dashboard/forecast/model-metrics
func (h *DashboardHandler) ModelMetrics(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/forecast/model-metrics"
	defer h.observe(endpoint)()

	m, err := h.service.LatestModelMetrics(r.Context())
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendOK(w, r, endpoint, m)
}

// ModelMetadata handles GET /api/dashboard/forecast/model-metadata
func (h *DashboardHandler) ModelMetadata(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/forecast/model-metadata"
	defer h.observe(endpoint)()

	h.sendOK(w, r, endpoint, h.service.ModelMetadata())
}

// ForecastHistory handles GET /api/dashboard/forecast/history
func (h *DashboardHandler) ForecastHistory(w http.ResponseWriter, r *http.Request) {
	const endpoint = apiPrefix + "/forecast/history"
	defer h.observe(endpoint)()

	query := r.URL.Query()
	kind := models.ForecastKind(query.Get("kind"))
	subject := strings.TrimSpace(query.Get("subject"))
	if subject == "" {
		h.handleError(w, r, endpoint, &models.ValidationError{Field: "subject", Message: "subject is required"})
		return
	}

	from, err := h.dateOrToday(r, "from")
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	points, err := h.service.StoredForecasts(r.Context(), kind, subject, from)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.sendOK(w, r, endpoint, points)
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": h.clock().UTC().Format(time.RFC3339),
	}

	if err := h.service.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Record store unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	sendJSON(w, status, http.StatusOK)
}

// RegisterRoutes registers all dashboard API routes. Routes under the API
// prefix pass through the given middlewares; health and docs never do.
func (h *DashboardHandler) RegisterRoutes(router *mux.Router, middlewares ...mux.MiddlewareFunc) {
	api := router.PathPrefix(apiPrefix).Subrouter()
	api.Use(middlewares...)

	api.HandleFunc("/overview/national", h.NationalOverview).Methods("GET")
	api.HandleFunc("/production/regions", h.RegionProduction).Methods("GET")
	api.HandleFunc("/prices/markets", h.MarketPrices).Methods("GET")
	api.HandleFunc("/prices/volatility", h.PriceVolatility).Methods("GET")
	api.HandleFunc("/storage/warehouses", h.WarehouseSnapshot).Methods("GET")
	api.HandleFunc("/storage/utilization", h.StorageUtilization).Methods("GET")
	api.HandleFunc("/seasonality/monthly", h.SeasonalityMonthly).Methods("GET")
	api.HandleFunc("/forecast/production", h.ProductionForecast).Methods("GET")
	api.HandleFunc("/forecast/prices", h.PriceForecast).Methods("GET")
	api.HandleFunc("/forecast/model-metrics", h.ModelMetrics).Methods("GET")
	api.HandleFunc("/forecast/model-metadata", h.ModelMetadata).Methods("GET")
	api.HandleFunc("/forecast/history", h.ForecastHistory).Methods("GET")

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/docs", SwaggerUI).Methods("GET")
}

// cached serves idempotent queries through the response cache. Cache
// failures are logged and fall through to load; load errors are never cached.
func cached[T any](ctx context.Context, h *DashboardHandler, key string, load func() (T, error)) (T, error) {
	var value T
	hit, err := h.cache.Get(ctx, key, &value)
	if err != nil {
		h.logger.Warn(ctx, "[CACHE_READ_ERROR] Falling back to record store", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
	} else if hit {
		return value, nil
	}

	value, err = load()
	if err != nil {
		return value, err
	}

	if err := h.cache.Set(ctx, key, value); err != nil {
		h.logger.Warn(ctx, "[CACHE_WRITE_ERROR] Failed to cache response", logging.Fields{
			"key":   key,
			"error": err.Error(),
		})
	}

	return value, nil
}

func (h *DashboardHandler) observe(endpoint string) func() {
	startTime := time.Now()
	return func() {
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}
}

func (h *DashboardHandler) dateOrToday(r *http.Request, name string) (time.Time, error) {
	d, err := parseDate(r, name)
	if err != nil {
		return time.Time{}, err
	}
	if d == nil {
		return h.clock(), nil
	}
	return *d, nil
}

// handleError maps the error taxonomy onto HTTP status codes
func (h *DashboardHandler) handleError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var (
		status    int
		errorType string
		message   string
		verr      *models.ValidationError
	)

	switch {
	case errors.As(err, &verr):
		status, errorType, message = http.StatusBadRequest, "validation_error", verr.Message
	case errors.Is(err, models.ErrRangeInvalid):
		status, errorType, message = http.StatusBadRequest, "range_invalid", err.Error()
	case errors.Is(err, models.ErrSubjectNotFound):
		status, errorType, message = http.StatusNotFound, "subject_not_found", err.Error()
	case errors.Is(err, models.ErrUpstreamUnavailable):
		status, errorType, message = http.StatusServiceUnavailable, "upstream_unavailable", "record store unavailable"
	default:
		status, errorType, message = http.StatusInternalServerError, "internal_error", "internal server error"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
			"status":   status,
		}, err)
	} else {
		h.logger.Debug(r.Context(), "[API_REJECTED] Request rejected", logging.Fields{
			"endpoint": endpoint,
			"status":   status,
			"error":    err.Error(),
		})
	}

	h.metrics.RecordAPIError(errorType, endpoint)
	writeError(w, r, h.metrics, message, status)
}

func (h *DashboardHandler) sendOK(w http.ResponseWriter, r *http.Request, endpoint string, data interface{}) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	sendJSON(w, data, http.StatusOK)
}

// sendJSON sends a JSON response
func sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError sends an error response
func writeError(w http.ResponseWriter, r *http.Request, metricsCollector *metrics.Collector, message string, statusCode int) {
	metricsCollector.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	sendJSON(w, response, statusCode)
}

func parseDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}

	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, &models.ValidationError{
			Field:   name,
			Value:   raw,
			Message: fmt.Sprintf("invalid %s format, expected YYYY-MM-DD", name),
		}
	}
	return &d, nil
}

func parseRange(r *http.Request) (start, end *time.Time, err error) {
	if start, err = parseDate(r, "startDate"); err != nil {
		return nil, nil, err
	}
	if end, err = parseDate(r, "endDate"); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

// parseMonths reads the optional horizon. Zero or negative values are passed
// through and replaced by the policy default downstream.
func parseMonths(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("months")
	if raw == "" {
		return 0, nil
	}

	months, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.ValidationError{
			Field:   "months",
			Value:   raw,
			Message: "invalid months, expected an integer",
		}
	}
	if months > maxHorizonMonths {
		return 0, &models.ValidationError{
			Field:   "months",
			Value:   raw,
			Message: fmt.Sprintf("months must not exceed %d", maxHorizonMonths),
		}
	}
	return months, nil
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}
