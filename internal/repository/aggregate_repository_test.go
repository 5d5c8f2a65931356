package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agri-dashboard/internal/models"
	"agri-dashboard/pkg/database"
	"agri-dashboard/pkg/logging"
	"agri-dashboard/pkg/metrics"
)

func newMockDB(t *testing.T) (*database.PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := database.Wrap(sqlx.NewDb(conn, "postgres"), nil,
		logging.NewNopLogger(), metrics.NewCollector("test", prometheus.NewRegistry()))
	return db, mock
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSumProductionBetween(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAggregateRepository(db)
	start, end := day(2024, time.February, 29), day(2024, time.March, 31)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT SUM(quantity)")).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow([]byte("1234.50")))

	total, err := repo.SumProductionBetween(context.Background(), start, end)
	require.NoError(t, err)
	require.True(t, total.Valid)
	assert.True(t, total.Decimal.Equal(decimal.RequireFromString("1234.5")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumProductionBetweenNoRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAggregateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT SUM(quantity)")).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))

	total, err := repo.SumProductionBetween(context.Background(), day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.False(t, total.Valid)
}

func TestAggregateFailuresAreUpstream(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAggregateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT AVG(price)")).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := repo.AveragePriceBetween(context.Background(), day(2024, 1, 1), day(2024, 1, 31))
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))

	var upstream *models.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "average price", upstream.Op)
}

func TestGetRegion(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAggregateRepository(db)
	query := regexp.QuoteMeta("FROM regions")

	mock.ExpectQuery(query).WithArgs("NBO").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "country"}).AddRow("NBO", "Nairobi", "Kenya"))
	mock.ExpectQuery(query).WithArgs("ZZZ").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "country"}))

	region, err := repo.GetRegion(context.Background(), "NBO")
	require.NoError(t, err)
	assert.Equal(t, &models.Region{Code: "NBO", Name: "Nairobi", Country: "Kenya"}, region)

	_, err = repo.GetRegion(context.Background(), "ZZZ")
	assert.True(t, errors.Is(err, models.ErrSubjectNotFound))
	assert.False(t, errors.Is(err, models.ErrUpstreamUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPricesForMarketBetween(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAggregateRepository(db)
	start, end := day(2024, 5, 16), day(2024, 6, 15)

	rows := sqlmock.NewRows([]string{"id", "market", "date", "price", "grade"}).
		AddRow(1, "Eldoret", day(2024, 5, 20), []byte("1500.00"), "A").
		AddRow(2, "Eldoret", day(2024, 6, 1), []byte("1600.00"), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM price_data")).
		WithArgs("Eldoret", start, end).
		WillReturnRows(rows)

	prices, err := repo.PricesForMarketBetween(context.Background(), "Eldoret", start, end)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.True(t, prices[0].Price.Equal(decimal.NewFromInt(1500)))
	require.NotNil(t, prices[0].Grade)
	assert.Equal(t, "A", *prices[0].Grade)
	assert.Nil(t, prices[1].Grade)
}

func TestWarehousesForDate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAggregateRepository(db)
	date := day(2024, 6, 15)

	rows := sqlmock.NewRows([]string{"id", "warehouse", "region_code", "date", "capacity", "quantity"}).
		AddRow(3, "W1", "NBO", date, []byte("1000.00"), []byte("1250.00"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM storage_data")).WithArgs(date).WillReturnRows(rows)

	records, err := repo.WarehousesForDate(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "W1", records[0].Warehouse)
	assert.True(t, records[0].Quantity.GreaterThan(records[0].Capacity))
}

func TestStorageTotalsForDate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAggregateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(capacity), 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"capacity", "quantity"}).AddRow([]byte("0"), []byte("0")))

	totals, err := repo.StorageTotalsForDate(context.Background(), day(2024, 6, 15))
	require.NoError(t, err)
	assert.True(t, totals.Capacity.IsZero())
	assert.True(t, totals.Quantity.IsZero())
}
