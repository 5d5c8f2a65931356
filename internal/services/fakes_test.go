package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"agri-dashboard/internal/forecast"
	"agri-dashboard/internal/models"
	"agri-dashboard/pkg/logging"
	"agri-dashboard/pkg/metrics"
)

const day = "2006-01-02"

func date(s string) time.Time {
	t, err := time.Parse(day, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

func windowKey(start, end time.Time) string {
	return start.Format(day) + ".." + end.Format(day)
}

// fakeAggregates serves canned aggregates keyed by window and counts queries
type fakeAggregates struct {
	sums       map[string]decimal.NullDecimal
	avgs       map[string]decimal.NullDecimal
	byRegion   []models.RegionTotal
	regions    []*models.Region
	marketAvgs []models.MarketAverage
	prices     map[string][]decimal.Decimal
	warehouses []models.StorageRecord
	storage    models.StorageTotals
	err        error

	queries     int
	lastWindow  string
	storageDate time.Time
}

func (f *fakeAggregates) SumProductionBetween(_ context.Context, start, end time.Time) (decimal.NullDecimal, error) {
	f.queries++
	f.lastWindow = windowKey(start, end)
	return f.sums[windowKey(start, end)], f.err
}

func (f *fakeAggregates) ProductionByRegion(_ context.Context, start, end time.Time) ([]models.RegionTotal, error) {
	f.queries++
	f.lastWindow = windowKey(start, end)
	return f.byRegion, f.err
}

func (f *fakeAggregates) AveragePriceBetween(_ context.Context, start, end time.Time) (decimal.NullDecimal, error) {
	f.queries++
	return f.avgs[windowKey(start, end)], f.err
}

func (f *fakeAggregates) AveragePriceByMarket(_ context.Context, _ time.Time) ([]models.MarketAverage, error) {
	f.queries++
	return f.marketAvgs, f.err
}

func (f *fakeAggregates) AveragePriceByMarketBetween(_ context.Context, start, end time.Time) ([]models.MarketAverage, error) {
	f.queries++
	f.lastWindow = windowKey(start, end)
	return f.marketAvgs, f.err
}

func (f *fakeAggregates) PricesForMarketBetween(_ context.Context, market string, _, _ time.Time) ([]models.PriceRecord, error) {
	f.queries++
	records := make([]models.PriceRecord, len(f.prices[market]))
	for i, p := range f.prices[market] {
		records[i] = models.PriceRecord{ID: int64(i + 1), Market: market, Price: p}
	}
	return records, f.err
}

func (f *fakeAggregates) WarehousesForDate(_ context.Context, _ time.Time) ([]models.StorageRecord, error) {
	f.queries++
	return f.warehouses, f.err
}

func (f *fakeAggregates) StorageTotalsForDate(_ context.Context, d time.Time) (models.StorageTotals, error) {
	f.queries++
	f.storageDate = d
	return f.storage, f.err
}

func (f *fakeAggregates) GetRegion(_ context.Context, code string) (*models.Region, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.regions {
		if r.Code == code {
			return r, nil
		}
	}
	return nil, &models.NotFoundError{Resource: "region", ID: code}
}

func (f *fakeAggregates) ListRegions(_ context.Context) ([]*models.Region, error) {
	f.queries++
	return f.regions, f.err
}

func (f *fakeAggregates) HealthCheck(_ context.Context) error {
	return f.err
}

// fakeLedger is an in-memory append-only ledger
type fakeLedger struct {
	runs   []*models.ModelRun
	points []*models.ForecastPoint
	err    error
}

func (f *fakeLedger) Record(_ context.Context, run *models.ModelRun) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	run.ID = int64(len(f.runs) + 1)
	f.runs = append(f.runs, run)
	return run.ID, nil
}

func (f *fakeLedger) Latest(_ context.Context) (*models.ModelRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.runs) == 0 {
		return nil, nil
	}
	return f.runs[len(f.runs)-1], nil
}

func (f *fakeLedger) RecordForecast(ctx context.Context, run *models.ModelRun, points []*models.ForecastPoint) error {
	id, err := f.Record(ctx, run)
	if err != nil {
		return err
	}
	for i, p := range points {
		p.ID = int64(len(f.points) + i + 1)
		p.ModelRunID = id
	}
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeLedger) ListForecastPoints(_ context.Context, kind models.ForecastKind, subject string, from time.Time) ([]*models.ForecastPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.ForecastPoint
	for _, p := range f.points {
		if p.Kind == kind && p.SubjectKey == subject && !p.Date.Before(from) {
			out = append(out, p)
		}
	}
	return out, nil
}

// fixedSource always draws the same value
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func newTestService(repo *fakeAggregates, ledger *fakeLedger) *DashboardService {
	logger := logging.NewNopLogger()
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	gen := forecast.NewGenerator(repo, ledger, fixedSource(0.5), logger, m)
	return NewDashboardService(repo, ledger, gen, logger)
}
