package services

import (
	"context"
	"fmt"
	"time"

	"agri-dashboard/internal/forecast"
	"agri-dashboard/internal/models"
	"agri-dashboard/internal/repository"
	"agri-dashboard/pkg/logging"
)

// BatchRequest selects the subjects of a batch forecast run.
// Empty Regions means every known region.
type BatchRequest struct {
	Regions []string
	Markets []string
	Months  int
}

// BatchResult summarises a batch forecast run
type BatchResult struct {
	Runs     int
	Points   int
	Failures map[string]error
}

// Failed reports whether any subject failed
func (r *BatchResult) Failed() bool {
	return len(r.Failures) > 0
}

// ForecastBatchService runs forecasts for many subjects in one pass
type ForecastBatchService struct {
	repo      repository.AggregateRepository
	generator ForecastGenerator
	logger    *logging.StructuredLogger
}

// NewForecastBatchService creates a new batch forecast service
func NewForecastBatchService(repo repository.AggregateRepository, generator ForecastGenerator, logger *logging.StructuredLogger) *ForecastBatchService {
	return &ForecastBatchService{
		repo:      repo,
		generator: generator,
		logger:    logger,
	}
}

// Run forecasts production for each selected region and prices for each
// market. A failing subject is logged and recorded in the result; the batch
// carries on with the next one. Only failing to list regions aborts the run.
func (s *ForecastBatchService) Run(ctx context.Context, req BatchRequest, now time.Time) (*BatchResult, error) {
	startTime := time.Now()
	log := s.logger.WithFields(logging.Fields{
		"reference_date": now.Format(models.DateLayout),
	})

	log.Info(ctx, "[BATCH_FORECAST_START] Starting batch forecast", logging.Fields{
		"regions": len(req.Regions),
		"markets": len(req.Markets),
		"months":  req.Months,
	})

	regions := req.Regions
	if len(regions) == 0 {
		all, err := s.repo.ListRegions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list regions: %w", err)
		}
		for _, r := range all {
			regions = append(regions, r.Code)
		}
	}

	result := &BatchResult{Failures: make(map[string]error)}

	run := func(policy forecast.Policy, subject string) {
		points, err := s.generator.Generate(ctx, policy, subject, req.Months, now)
		if err != nil {
			log.Error(ctx, "[BATCH_FORECAST_ERROR] Failed to forecast subject", logging.Fields{
				"model":   policy.ModelName,
				"subject": subject,
			}, err)
			result.Failures[string(policy.Kind)+":"+subject] = err
			return
		}
		result.Runs++
		result.Points += len(points)
	}

	for _, code := range regions {
		run(forecast.ProductionPolicy, code)
	}
	for _, market := range req.Markets {
		run(forecast.PricePolicy, market)
	}

	log.Info(ctx, "[BATCH_FORECAST_COMPLETE] Batch forecast completed", logging.Fields{
		"runs":             result.Runs,
		"points":           result.Points,
		"failures":         len(result.Failures),
		"duration_seconds": time.Since(startTime).Seconds(),
	})

	return result, nil
}
