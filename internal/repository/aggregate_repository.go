package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"agri-dashboard/internal/models"
	"agri-dashboard/pkg/database"
)

// AggregateRepository provides read-only aggregates over production, price and
// storage records. Date bounds are inclusive calendar dates.
type AggregateRepository interface {
	// Production
	SumProductionBetween(ctx context.Context, start, end time.Time) (decimal.NullDecimal, error)
	ProductionByRegion(ctx context.Context, start, end time.Time) ([]models.RegionTotal, error)

	// Prices
	AveragePriceBetween(ctx context.Context, start, end time.Time) (decimal.NullDecimal, error)
	AveragePriceByMarket(ctx context.Context, date time.Time) ([]models.MarketAverage, error)
	AveragePriceByMarketBetween(ctx context.Context, start, end time.Time) ([]models.MarketAverage, error)
	PricesForMarketBetween(ctx context.Context, market string, start, end time.Time) ([]models.PriceRecord, error)

	// Storage
	WarehousesForDate(ctx context.Context, date time.Time) ([]models.StorageRecord, error)
	StorageTotalsForDate(ctx context.Context, date time.Time) (models.StorageTotals, error)

	// Regions
	GetRegion(ctx context.Context, code string) (*models.Region, error)
	ListRegions(ctx context.Context) ([]*models.Region, error)

	HealthCheck(ctx context.Context) error
}

// aggregateRepository implements AggregateRepository on PostgreSQL
type aggregateRepository struct {
	db *database.PostgresDB
}

// NewAggregateRepository creates a new aggregate repository
func NewAggregateRepository(db *database.PostgresDB) AggregateRepository {
	return &aggregateRepository{db: db}
}

// SumProductionBetween returns the national production sum, NULL when no rows match
func (r *aggregateRepository) SumProductionBetween(ctx context.Context, start, end time.Time) (decimal.NullDecimal, error) {
	query := `
		SELECT SUM(quantity)
		FROM production_data
		WHERE date BETWEEN $1 AND $2
	`

	var total decimal.NullDecimal
	if err := r.db.GetContext(ctx, "sum_production", &total, query, start, end); err != nil {
		return decimal.NullDecimal{}, &models.UpstreamError{Op: "sum production", Err: err}
	}

	return total, nil
}

// ProductionByRegion sums production per region, ordered by region code
func (r *aggregateRepository) ProductionByRegion(ctx context.Context, start, end time.Time) ([]models.RegionTotal, error) {
	query := `
		SELECT region_code, SUM(quantity) AS total_quantity
		FROM production_data
		WHERE date BETWEEN $1 AND $2
		GROUP BY region_code
		ORDER BY region_code
	`

	var totals []models.RegionTotal
	if err := r.db.SelectContext(ctx, "production_by_region", &totals, query, start, end); err != nil {
		return nil, &models.UpstreamError{Op: "production by region", Err: err}
	}

	return totals, nil
}

// AveragePriceBetween returns the average of all price quotes in the range
func (r *aggregateRepository) AveragePriceBetween(ctx context.Context, start, end time.Time) (decimal.NullDecimal, error) {
	query := `
		SELECT AVG(price)
		FROM price_data
		WHERE date BETWEEN $1 AND $2
	`

	var avg decimal.NullDecimal
	if err := r.db.GetContext(ctx, "average_price", &avg, query, start, end); err != nil {
		return decimal.NullDecimal{}, &models.UpstreamError{Op: "average price", Err: err}
	}

	return avg, nil
}

// AveragePriceByMarket averages quotes per market on a single date
func (r *aggregateRepository) AveragePriceByMarket(ctx context.Context, date time.Time) ([]models.MarketAverage, error) {
	query := `
		SELECT market, AVG(price) AS average_price
		FROM price_data
		WHERE date = $1
		GROUP BY market
		ORDER BY market
	`

	var averages []models.MarketAverage
	if err := r.db.SelectContext(ctx, "average_price_by_market", &averages, query, date); err != nil {
		return nil, &models.UpstreamError{Op: "average price by market", Err: err}
	}

	return averages, nil
}

// AveragePriceByMarketBetween averages quotes per market over a range.
// It also serves as the list of markets quoted in that range.
func (r *aggregateRepository) AveragePriceByMarketBetween(ctx context.Context, start, end time.Time) ([]models.MarketAverage, error) {
	query := `
		SELECT market, AVG(price) AS average_price
		FROM price_data
		WHERE date BETWEEN $1 AND $2
		GROUP BY market
		ORDER BY market
	`

	var averages []models.MarketAverage
	if err := r.db.SelectContext(ctx, "average_price_by_market_between", &averages, query, start, end); err != nil {
		return nil, &models.UpstreamError{Op: "average price by market between", Err: err}
	}

	return averages, nil
}

// PricesForMarketBetween returns one market's quotes in date order
func (r *aggregateRepository) PricesForMarketBetween(ctx context.Context, market string, start, end time.Time) ([]models.PriceRecord, error) {
	query := `
		SELECT id, market, date, price, grade
		FROM price_data
		WHERE market = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, id
	`

	var prices []models.PriceRecord
	if err := r.db.SelectContext(ctx, "prices_for_market", &prices, query, market, start, end); err != nil {
		return nil, &models.UpstreamError{Op: "prices for market", Err: err}
	}

	return prices, nil
}

// WarehousesForDate returns each warehouse's snapshot on a date
func (r *aggregateRepository) WarehousesForDate(ctx context.Context, date time.Time) ([]models.StorageRecord, error) {
	query := `
		SELECT id, warehouse, region_code, date, capacity, quantity
		FROM storage_data
		WHERE date = $1
		ORDER BY warehouse, id
	`

	var records []models.StorageRecord
	if err := r.db.SelectContext(ctx, "warehouses_for_date", &records, query, date); err != nil {
		return nil, &models.UpstreamError{Op: "warehouses for date", Err: err}
	}

	return records, nil
}

// StorageTotalsForDate sums capacity and quantity across warehouses; both are
// zero when no snapshot exists for the date
func (r *aggregateRepository) StorageTotalsForDate(ctx context.Context, date time.Time) (models.StorageTotals, error) {
	query := `
		SELECT COALESCE(SUM(capacity), 0) AS capacity,
		       COALESCE(SUM(quantity), 0) AS quantity
		FROM storage_data
		WHERE date = $1
	`

	var totals models.StorageTotals
	if err := r.db.GetContext(ctx, "storage_totals", &totals, query, date); err != nil {
		return models.StorageTotals{}, &models.UpstreamError{Op: "storage totals", Err: err}
	}

	return totals, nil
}

// GetRegion retrieves a region by code
func (r *aggregateRepository) GetRegion(ctx context.Context, code string) (*models.Region, error) {
	query := `
		SELECT code, name, country
		FROM regions
		WHERE code = $1
	`

	var region models.Region
	err := r.db.GetContext(ctx, "get_region", &region, query, code)

	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{
			Resource: "region",
			ID:       code,
		}
	}

	if err != nil {
		return nil, &models.UpstreamError{Op: "get region", Err: err}
	}

	return &region, nil
}

// ListRegions retrieves all regions ordered by code
func (r *aggregateRepository) ListRegions(ctx context.Context) ([]*models.Region, error) {
	query := `
		SELECT code, name, country
		FROM regions
		ORDER BY code
	`

	var regions []*models.Region
	if err := r.db.SelectContext(ctx, "list_regions", &regions, query); err != nil {
		return nil, &models.UpstreamError{Op: "list regions", Err: err}
	}

	return regions, nil
}

// HealthCheck performs a repository health check
func (r *aggregateRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
