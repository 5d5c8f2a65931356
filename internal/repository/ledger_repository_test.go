package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agri-dashboard/internal/models"
	"agri-dashboard/pkg/logging"
)

var (
	insertRun   = regexp.QuoteMeta("INSERT INTO model_runs")
	insertPoint = regexp.QuoteMeta("INSERT INTO forecast_points")
	runColumns  = []string{"id", "model_name", "model_version", "run_at", "mae", "rmse", "mape", "confidence_level"}
)

func float(v float64) *float64 { return &v }
func str(v string) *string     { return &v }

func testRun() *models.ModelRun {
	return &models.ModelRun{
		ModelName:       "baseline-price",
		ModelVersion:    "1.0.0",
		RunAt:           time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC),
		MAE:             float(25.000001),
		RMSE:            float(40),
		MAPE:            float(5),
		ConfidenceLevel: str(models.ConfidenceMedium),
	}
}

func testPoints() []*models.ForecastPoint {
	return []*models.ForecastPoint{
		{
			Kind:          models.ForecastKindPrice,
			SubjectKey:    "Kisumu",
			Date:          day(2024, 2, 29),
			ForecastValue: 500.123456,
			LowerBound:    450.11111,
			UpperBound:    550.5,
		},
		{
			Kind:          models.ForecastKindPrice,
			SubjectKey:    "Kisumu",
			Date:          day(2024, 3, 31),
			ForecastValue: 480,
			LowerBound:    432,
			UpperBound:    528,
		},
	}
}

func TestRecordForecastCommitsRunThenPoints(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewLedgerRepository(db, logging.NewNopLogger())
	run, points := testRun(), testPoints()

	mock.ExpectBegin()
	mock.ExpectQuery(insertRun).
		WithArgs("baseline-price", "1.0.0", run.RunAt, "25", "40", "5", "MEDIUM").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	prep := mock.ExpectPrepare(insertPoint)
	prep.ExpectQuery().
		WithArgs("price", "Kisumu", day(2024, 2, 29), "500.1235", "450.1111", "550.5", 9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	prep.ExpectQuery().
		WithArgs("price", "Kisumu", day(2024, 3, 31), "480", "432", "528", 9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(102))
	prep.WillBeClosed()
	mock.ExpectCommit()

	require.NoError(t, ledger.RecordForecast(context.Background(), run, points))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, int64(9), run.ID)
	assert.Equal(t, int64(101), points[0].ID)
	assert.Equal(t, int64(102), points[1].ID)
	for _, p := range points {
		assert.Equal(t, int64(9), p.ModelRunID)
	}
}

func TestRecordForecastRollsBackOnPointFailure(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewLedgerRepository(db, logging.NewNopLogger())
	run, points := testRun(), testPoints()

	mock.ExpectBegin()
	mock.ExpectQuery(insertRun).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	prep := mock.ExpectPrepare(insertPoint)
	prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	prep.ExpectQuery().WillReturnError(errors.New("check constraint violated"))
	mock.ExpectRollback()

	err := ledger.RecordForecast(context.Background(), run, points)
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())

	// nothing is reported as persisted
	assert.Zero(t, run.ID)
	for _, p := range points {
		assert.Zero(t, p.ID)
		assert.Zero(t, p.ModelRunID)
	}
}

func TestRecordForecastRollsBackOnRunFailure(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewLedgerRepository(db, logging.NewNopLogger())

	mock.ExpectBegin()
	mock.ExpectQuery(insertRun).WillReturnError(errors.New("relation \"model_runs\" does not exist"))
	mock.ExpectRollback()

	err := ledger.RecordForecast(context.Background(), testRun(), testPoints())
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewLedgerRepository(db, logging.NewNopLogger())
	run := testRun()
	run.MAE = nil

	mock.ExpectQuery(insertRun).
		WithArgs("baseline-price", "1.0.0", run.RunAt, nil, "40", "5", "MEDIUM").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

	id, err := ledger.Record(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
	assert.Equal(t, int64(4), run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatest(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewLedgerRepository(db, logging.NewNopLogger())
	query := regexp.QuoteMeta("ORDER BY id DESC")

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(runColumns))
	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows(runColumns).
		AddRow(12, "baseline-production", "1.0.0", day(2024, 6, 15), []byte("150.0000"), nil, []byte("5.0000"), nil))

	run, err := ledger.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)

	run, err = ledger.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, int64(12), run.ID)
	require.NotNil(t, run.MAE)
	assert.Equal(t, 150.0, *run.MAE)
	assert.Nil(t, run.RMSE)
	assert.Nil(t, run.ConfidenceLevel)
	assert.Equal(t, models.ConfidenceMedium, run.Metrics().ConfidenceLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForecastPoints(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewLedgerRepository(db, logging.NewNopLogger())
	from := day(2024, 3, 1)

	rows := sqlmock.NewRows([]string{"id", "kind", "subject_key", "forecast_date",
		"forecast_value", "lower_bound", "upper_bound", "model_run_id"}).
		AddRow(101, "production", "NBO", day(2024, 3, 31), []byte("3000.0000"), []byte("2700.0000"), []byte("3300.0000"), 9)
	mock.ExpectQuery(regexp.QuoteMeta("FROM forecast_points")).
		WithArgs(models.ForecastKindProduction, "NBO", from).
		WillReturnRows(rows)

	points, err := ledger.ListForecastPoints(context.Background(), models.ForecastKindProduction, "NBO", from)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, models.ForecastKindProduction, points[0].Kind)
	assert.Equal(t, 3000.0, points[0].ForecastValue)
	assert.Equal(t, int64(9), points[0].ModelRunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
