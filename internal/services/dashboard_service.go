package services

import (
	"context"
	"fmt"
	"time"

	"agri-dashboard/internal/forecast"
	"agri-dashboard/internal/kpi"
	"agri-dashboard/internal/models"
	"agri-dashboard/internal/repository"
	"agri-dashboard/internal/timewindow"
	"agri-dashboard/pkg/logging"
)

// ForecastGenerator runs a forecast policy for one subject
type ForecastGenerator interface {
	Generate(ctx context.Context, policy forecast.Policy, subject string, months int, now time.Time) ([]*models.ForecastPoint, error)
}

var modelMetadata = models.ModelMetadata{
	ModelName:    "baseline-model",
	ModelVersion: "1.0.0",
	Features:     []string{"historical_production", "historical_prices", "region", "season"},
}

// DashboardService assembles dashboard views from aggregates, derived metrics
// and the forecast ledger. Every method takes the reference time explicitly.
type DashboardService struct {
	repo      repository.AggregateRepository
	ledger    repository.ModelRunLedger
	generator ForecastGenerator
	logger    *logging.StructuredLogger
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(repo repository.AggregateRepository, ledger repository.ModelRunLedger, generator ForecastGenerator, logger *logging.StructuredLogger) *DashboardService {
	return &DashboardService{
		repo:      repo,
		ledger:    ledger,
		generator: generator,
		logger:    logger,
	}
}

// NationalOverview compares the trailing month with the month before it and
// reports storage utilization on the reference date
func (s *DashboardService) NationalOverview(ctx context.Context, now time.Time) (*models.NationalOverview, error) {
	current := timewindow.Trailing(now, timewindow.Month)
	previous := current.Previous()

	currentTotal, err := s.repo.SumProductionBetween(ctx, current.Start, current.End)
	if err != nil {
		return nil, fmt.Errorf("failed to sum current production: %w", err)
	}

	previousTotal, err := s.repo.SumProductionBetween(ctx, previous.Start, previous.End)
	if err != nil {
		return nil, fmt.Errorf("failed to sum previous production: %w", err)
	}

	avgPrice, err := s.repo.AveragePriceBetween(ctx, current.Start, current.End)
	if err != nil {
		return nil, fmt.Errorf("failed to average prices: %w", err)
	}

	storage, err := s.repo.StorageTotalsForDate(ctx, current.End)
	if err != nil {
		return nil, fmt.Errorf("failed to total storage: %w", err)
	}

	production := models.Float(currentTotal)

	s.logger.Debug(ctx, "[DASHBOARD_OVERVIEW] National overview computed", logging.Fields{
		"current_window":  current.String(),
		"previous_window": previous.String(),
	})

	return &models.NationalOverview{
		TotalProduction: production,
		AveragePrice:    models.Float(avgPrice),
		StorageUtilizationPercent: kpi.UtilizationPercent(
			storage.Quantity.InexactFloat64(),
			storage.Capacity.InexactFloat64(),
		),
		ProductionChangePercent: kpi.ChangePercent(models.Float(previousTotal), production),
	}, nil
}

// RegionProduction totals production per region over the given bounds. Unless
// both bounds are given the trailing year is used. Regions without reference
// data are named by their code.
func (s *DashboardService) RegionProduction(ctx context.Context, now time.Time, start, end *time.Time) ([]models.RegionProduction, error) {
	window, err := timewindow.ResolveBoth(now, start, end, timewindow.Year)
	if err != nil {
		return nil, err
	}

	totals, err := s.repo.ProductionByRegion(ctx, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate production by region: %w", err)
	}

	regions, err := s.repo.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	names := make(map[string]string, len(regions))
	for _, r := range regions {
		names[r.Code] = r.Name
	}

	result := make([]models.RegionProduction, 0, len(totals))
	for _, t := range totals {
		name, ok := names[t.RegionCode]
		if !ok {
			name = t.RegionCode
		}
		result = append(result, models.RegionProduction{
			RegionCode:    t.RegionCode,
			RegionName:    name,
			TotalQuantity: models.Float(t.TotalQuantity),
		})
	}

	return result, nil
}

// MarketPrices averages each market's quotes on date
func (s *DashboardService) MarketPrices(ctx context.Context, date time.Time) ([]models.MarketPrice, error) {
	averages, err := s.repo.AveragePriceByMarket(ctx, timewindow.Date(date))
	if err != nil {
		return nil, fmt.Errorf("failed to average prices by market: %w", err)
	}

	result := make([]models.MarketPrice, 0, len(averages))
	for _, a := range averages {
		result = append(result, models.MarketPrice{
			Market:       a.Market,
			AveragePrice: models.Float(a.AveragePrice),
		})
	}

	return result, nil
}

// PriceVolatility reports the coefficient of variation of every market quoted
// in the given bounds, defaulting to the trailing 30 days
func (s *DashboardService) PriceVolatility(ctx context.Context, now time.Time, start, end *time.Time) ([]models.PriceVolatility, error) {
	window, err := timewindow.Resolve(now, start, end, timewindow.ThirtyDays)
	if err != nil {
		return nil, err
	}

	markets, err := s.repo.AveragePriceByMarketBetween(ctx, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}

	result := make([]models.PriceVolatility, 0, len(markets))
	for _, m := range markets {
		prices, err := s.repo.PricesForMarketBetween(ctx, m.Market, window.Start, window.End)
		if err != nil {
			return nil, fmt.Errorf("failed to read prices for %s: %w", m.Market, err)
		}

		values := make([]float64, len(prices))
		for i, p := range prices {
			values[i] = p.Price.InexactFloat64()
		}

		result = append(result, models.PriceVolatility{
			Market:     m.Market,
			Volatility: kpi.Volatility(values),
		})
	}

	return result, nil
}

// WarehouseSnapshot lists every warehouse's stock on date
func (s *DashboardService) WarehouseSnapshot(ctx context.Context, date time.Time) ([]models.StorageWarehouse, error) {
	records, err := s.repo.WarehousesForDate(ctx, timewindow.Date(date))
	if err != nil {
		return nil, fmt.Errorf("failed to read warehouses: %w", err)
	}

	result := make([]models.StorageWarehouse, 0, len(records))
	for _, w := range records {
		capacity := w.Capacity.InexactFloat64()
		quantity := w.Quantity.InexactFloat64()
		result = append(result, models.StorageWarehouse{
			Warehouse:          w.Warehouse,
			RegionCode:         w.RegionCode,
			Capacity:           capacity,
			Quantity:           quantity,
			UtilizationPercent: kpi.UtilizationPercent(quantity, capacity),
		})
	}

	return result, nil
}

// StorageUtilization totals all warehouses on date
func (s *DashboardService) StorageUtilization(ctx context.Context, date time.Time) (*models.StorageUtilization, error) {
	totals, err := s.repo.StorageTotalsForDate(ctx, timewindow.Date(date))
	if err != nil {
		return nil, fmt.Errorf("failed to total storage: %w", err)
	}

	capacity := totals.Capacity.InexactFloat64()
	quantity := totals.Quantity.InexactFloat64()

	return &models.StorageUtilization{
		TotalCapacity:      capacity,
		TotalQuantity:      quantity,
		UtilizationPercent: kpi.UtilizationPercent(quantity, capacity),
	}, nil
}

// SeasonalityMonthly spreads the year's national production over its months
func (s *DashboardService) SeasonalityMonthly(ctx context.Context, year int) ([]models.SeasonalityMonth, error) {
	bounds := timewindow.YearBounds(year)

	total, err := s.repo.SumProductionBetween(ctx, bounds.Start, bounds.End)
	if err != nil {
		return nil, fmt.Errorf("failed to sum production for %d: %w", year, err)
	}

	return kpi.MonthlyDistribution(year, models.Float(total)), nil
}

// ProductionForecast forecasts monthly production for a known region
func (s *DashboardService) ProductionForecast(ctx context.Context, regionCode string, months int, now time.Time) ([]*models.ForecastPoint, error) {
	return s.generator.Generate(ctx, forecast.ProductionPolicy, regionCode, months, now)
}

// PriceForecast forecasts the monthly price for any market name
func (s *DashboardService) PriceForecast(ctx context.Context, market string, months int, now time.Time) ([]*models.ForecastPoint, error) {
	return s.generator.Generate(ctx, forecast.PricePolicy, market, months, now)
}

// LatestModelMetrics reports the accuracy fields of the most recently recorded
// run, or the empty sentinel when nothing has been recorded
func (s *DashboardService) LatestModelMetrics(ctx context.Context) (models.ModelMetrics, error) {
	run, err := s.ledger.Latest(ctx)
	if err != nil {
		return models.ModelMetrics{}, fmt.Errorf("failed to read latest model run: %w", err)
	}

	if run == nil {
		return models.EmptyModelMetrics(), nil
	}

	return run.Metrics(), nil
}

// ModelMetadata describes the forecasting model
func (s *DashboardService) ModelMetadata() models.ModelMetadata {
	md := modelMetadata
	md.Features = append([]string(nil), modelMetadata.Features...)
	return md
}

// StoredForecasts lists persisted points for a subject dated on or after from
func (s *DashboardService) StoredForecasts(ctx context.Context, kind models.ForecastKind, subject string, from time.Time) ([]*models.ForecastPoint, error) {
	if !kind.Valid() {
		return nil, &models.ValidationError{
			Field:   "kind",
			Value:   string(kind),
			Message: fmt.Sprintf("unknown forecast kind %q", kind),
		}
	}

	points, err := s.ledger.ListForecastPoints(ctx, kind, subject, timewindow.Date(from))
	if err != nil {
		return nil, fmt.Errorf("failed to list stored forecasts: %w", err)
	}

	return points, nil
}

// HealthCheck checks the record store
func (s *DashboardService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
