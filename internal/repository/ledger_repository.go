package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"agri-dashboard/internal/models"
	"agri-dashboard/pkg/database"
	"agri-dashboard/pkg/logging"
)

// ModelRunLedger is the append-only record of forecast runs
type ModelRunLedger interface {
	// Record appends a run on its own and returns its id
	Record(ctx context.Context, run *models.ModelRun) (int64, error)
	// Latest returns the most recently appended run, or nil when the ledger is empty.
	// Recency is append order, not RunAt.
	Latest(ctx context.Context) (*models.ModelRun, error)

	// RecordForecast appends a run and its points in one transaction
	RecordForecast(ctx context.Context, run *models.ModelRun, points []*models.ForecastPoint) error
	// ListForecastPoints returns stored points for a subject dated on or after from
	ListForecastPoints(ctx context.Context, kind models.ForecastKind, subject string, from time.Time) ([]*models.ForecastPoint, error)
}

const insertModelRunQuery = `
	INSERT INTO model_runs (
		model_name, model_version, run_at, mae, rmse, mape, confidence_level
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
`

const insertForecastPointQuery = `
	INSERT INTO forecast_points (
		kind, subject_key, forecast_date,
		forecast_value, lower_bound, upper_bound, model_run_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
`

// storedScale is the number of fractional digits kept for forecast values and
// run metrics; it matches the NUMERIC columns in the schema
const storedScale = 4

// ledgerRepository implements ModelRunLedger on PostgreSQL
type ledgerRepository struct {
	db     *database.PostgresDB
	logger *logging.StructuredLogger
}

// NewLedgerRepository creates a new model run ledger
func NewLedgerRepository(db *database.PostgresDB, logger *logging.StructuredLogger) ModelRunLedger {
	return &ledgerRepository{
		db:     db,
		logger: logger,
	}
}

// Record appends a single run
func (r *ledgerRepository) Record(ctx context.Context, run *models.ModelRun) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, "insert_model_run", &id, insertModelRunQuery, runArgs(run)...)
	if err != nil {
		return 0, &models.UpstreamError{Op: "record model run", Err: err}
	}

	run.ID = id
	return id, nil
}

// Latest returns the run with the highest serial id
func (r *ledgerRepository) Latest(ctx context.Context) (*models.ModelRun, error) {
	query := `
		SELECT id, model_name, model_version, run_at, mae, rmse, mape, confidence_level
		FROM model_runs
		ORDER BY id DESC
		LIMIT 1
	`

	var run models.ModelRun
	err := r.db.GetContext(ctx, "latest_model_run", &run, query)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, &models.UpstreamError{Op: "latest model run", Err: err}
	}

	return &run, nil
}

// RecordForecast writes the run first, then every point referencing it. Ids are
// assigned to run and points only after the transaction commits.
func (r *ledgerRepository) RecordForecast(ctx context.Context, run *models.ModelRun, points []*models.ForecastPoint) error {
	timer := time.Now()

	var (
		runID    int64
		pointIDs = make([]int64, len(points))
	)

	err := r.db.InTx(ctx, "record_forecast", func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx, insertModelRunQuery, runArgs(run)...).Scan(&runID); err != nil {
			return fmt.Errorf("failed to insert model run: %w", err)
		}

		stmt, err := tx.PreparexContext(ctx, insertForecastPointQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, p := range points {
			err := stmt.QueryRowxContext(ctx,
				p.Kind,
				p.SubjectKey,
				p.Date,
				toDecimal(p.ForecastValue),
				toDecimal(p.LowerBound),
				toDecimal(p.UpperBound),
				runID,
			).Scan(&pointIDs[i])
			if err != nil {
				return fmt.Errorf("failed to insert forecast point: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return &models.UpstreamError{Op: "record forecast", Err: err}
	}

	run.ID = runID
	for i, p := range points {
		p.ID = pointIDs[i]
		p.ModelRunID = runID
	}

	r.logger.Debug(ctx, "[REPO_RECORD_FORECAST] Forecast run recorded", logging.Fields{
		"model_run_id": runID,
		"model":        run.ModelName,
		"points":       len(points),
		"duration_ms":  time.Since(timer).Milliseconds(),
	})

	return nil
}

// ListForecastPoints returns a subject's points date-ascending
func (r *ledgerRepository) ListForecastPoints(ctx context.Context, kind models.ForecastKind, subject string, from time.Time) ([]*models.ForecastPoint, error) {
	query := `
		SELECT id, kind, subject_key, forecast_date,
		       forecast_value, lower_bound, upper_bound, model_run_id
		FROM forecast_points
		WHERE kind = $1 AND subject_key = $2 AND forecast_date >= $3
		ORDER BY forecast_date, id
	`

	var points []*models.ForecastPoint
	if err := r.db.SelectContext(ctx, "list_forecast_points", &points, query, kind, subject, from); err != nil {
		return nil, &models.UpstreamError{Op: "list forecast points", Err: err}
	}

	return points, nil
}

func runArgs(run *models.ModelRun) []interface{} {
	return []interface{}{
		run.ModelName,
		run.ModelVersion,
		run.RunAt,
		toNullDecimal(run.MAE),
		toNullDecimal(run.RMSE),
		toNullDecimal(run.MAPE),
		run.ConfidenceLevel,
	}
}

func toDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(storedScale)
}

func toNullDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(toDecimal(*v))
}
