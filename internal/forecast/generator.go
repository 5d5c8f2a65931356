// Package forecast produces short-horizon baseline forecasts.
//
// A forecast is centred on one trailing-window aggregate and spread with bounded
// noise; it is not a fitted time-series model. Every invocation is recorded as a
// model run that owns the points it produced.
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"agri-dashboard/internal/models"
	"agri-dashboard/internal/timewindow"
	"agri-dashboard/pkg/logging"
	"agri-dashboard/pkg/metrics"
)

// BaselineSource reads the aggregates a baseline is built from
type BaselineSource interface {
	SumProductionBetween(ctx context.Context, start, end time.Time) (decimal.NullDecimal, error)
	AveragePriceBetween(ctx context.Context, start, end time.Time) (decimal.NullDecimal, error)
	GetRegion(ctx context.Context, code string) (*models.Region, error)
}

// Recorder persists a run and its points atomically, run first.
// On success it fills in the run ID and every point's ID and ModelRunID.
type Recorder interface {
	RecordForecast(ctx context.Context, run *models.ModelRun, points []*models.ForecastPoint) error
}

// Generator runs baseline forecast policies
type Generator struct {
	source   BaselineSource
	recorder Recorder
	random   RandomSource
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewGenerator creates a forecast generator. A nil random source uses DefaultSource.
func NewGenerator(source BaselineSource, recorder Recorder, random RandomSource, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Generator {
	if random == nil {
		random = DefaultSource()
	}
	return &Generator{
		source:   source,
		recorder: recorder,
		random:   random,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// Generate forecasts subject over the given number of months following now.
// Points are returned date-ascending. Nothing is written when the subject is
// rejected or the baseline cannot be read.
func (g *Generator) Generate(ctx context.Context, policy Policy, subject string, months int, now time.Time) ([]*models.ForecastPoint, error) {
	timer := g.metrics.NewTimer(g.metrics.ForecastDuration.WithLabelValues(policy.ModelName))
	defer timer.ObserveDuration()

	log := g.logger.WithFields(logging.Fields{
		"model":   policy.ModelName,
		"subject": subject,
	})

	if policy.RequireRegion {
		if _, err := g.source.GetRegion(ctx, subject); err != nil {
			g.metrics.RecordForecastFailure(policy.ModelName)
			return nil, fmt.Errorf("failed to resolve region: %w", err)
		}
	}

	window := timewindow.Trailing(now, timewindow.Months(policy.WindowMonths))
	baseline, err := g.baseline(ctx, log, policy, window)
	if err != nil {
		g.metrics.RecordForecastFailure(policy.ModelName)
		return nil, err
	}

	horizon := policy.Horizon(months)
	run := newRun(policy, baseline, now)
	points := g.project(policy, subject, baseline, horizon, timewindow.Date(now))

	if err := g.recorder.RecordForecast(ctx, run, points); err != nil {
		g.metrics.RecordForecastFailure(policy.ModelName)
		log.Error(ctx, "[FORECAST_RECORD_ERROR] Failed to record forecast run", logging.Fields{
			"points": len(points),
		}, err)
		return nil, fmt.Errorf("failed to record forecast: %w", err)
	}

	g.metrics.RecordForecastRun(policy.ModelName, len(points))
	log.Info(ctx, "[FORECAST_RUN_COMPLETE] Forecast generated", logging.Fields{
		"model_run_id": run.ID,
		"baseline":     baseline,
		"horizon":      horizon,
		"window":       window.String(),
	})

	return points, nil
}

// baseline reads the trailing aggregate and reduces it to a per-period value.
// A NULL or zero aggregate is replaced by the policy fallback before reduction.
func (g *Generator) baseline(ctx context.Context, log *logging.ContextLogger, policy Policy, window timewindow.Window) (float64, error) {
	var (
		agg decimal.NullDecimal
		err error
	)

	switch policy.Aggregate {
	case AggregateSum:
		agg, err = g.source.SumProductionBetween(ctx, window.Start, window.End)
	case AggregateAverage:
		agg, err = g.source.AveragePriceBetween(ctx, window.Start, window.End)
	default:
		return 0, fmt.Errorf("unknown aggregate %d", policy.Aggregate)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read baseline: %w", err)
	}

	value := policy.FallbackBaseline
	if agg.Valid && !agg.Decimal.IsZero() {
		value = agg.Decimal.InexactFloat64()
	} else {
		log.Debug(ctx, "[FORECAST_BASELINE_FALLBACK] No history in baseline window", logging.Fields{
			"window":   window.String(),
			"fallback": policy.FallbackBaseline,
		})
	}

	if policy.Aggregate == AggregateSum && policy.WindowMonths > 0 {
		value /= float64(policy.WindowMonths)
	}

	return value, nil
}

func (g *Generator) project(policy Policy, subject string, baseline float64, horizon int, refDate time.Time) []*models.ForecastPoint {
	points := make([]*models.ForecastPoint, 0, horizon)
	for i := 1; i <= horizon; i++ {
		noise := noiseFloor + g.random.Float64()*noiseSpread
		value := baseline * noise

		points = append(points, &models.ForecastPoint{
			Kind:          policy.Kind,
			SubjectKey:    subject,
			Date:          timewindow.AddMonths(refDate, i),
			ForecastValue: value,
			LowerBound:    value * lowerFactor,
			UpperBound:    value * upperFactor,
		})
	}
	return points
}

func newRun(policy Policy, baseline float64, now time.Time) *models.ModelRun {
	mae := baseline * maeFactor
	rmse := baseline * rmseFactor
	mape := placeholderMAPE
	confidence := models.ConfidenceMedium

	return &models.ModelRun{
		ModelName:       policy.ModelName,
		ModelVersion:    policy.ModelVersion,
		RunAt:           now.UTC(),
		MAE:             &mae,
		RMSE:            &rmse,
		MAPE:            &mape,
		ConfidenceLevel: &confidence,
	}
}
