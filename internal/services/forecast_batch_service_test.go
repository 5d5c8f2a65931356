package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agri-dashboard/internal/forecast"
	"agri-dashboard/internal/models"
	"agri-dashboard/pkg/logging"
	"agri-dashboard/pkg/metrics"
)

func newTestBatch(repo *fakeAggregates, ledger *fakeLedger) *ForecastBatchService {
	logger := logging.NewNopLogger()
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	gen := forecast.NewGenerator(repo, ledger, fixedSource(0.5), logger, m)
	return NewForecastBatchService(repo, gen, logger)
}

func TestBatchRunAllRegions(t *testing.T) {
	repo := &fakeAggregates{regions: []*models.Region{{Code: "MSA"}, {Code: "NBO"}}}
	ledger := &fakeLedger{}

	result, err := newTestBatch(repo, ledger).Run(context.Background(), BatchRequest{
		Markets: []string{"Kisumu"},
	}, now)
	require.NoError(t, err)

	assert.False(t, result.Failed())
	assert.Equal(t, 3, result.Runs)
	// two regions at the production default plus one market at the price default
	assert.Equal(t, 6+6+3, result.Points)
	require.Len(t, ledger.runs, 3)
	assert.Equal(t, "baseline-price", ledger.runs[2].ModelName)
}

func TestBatchRunContinuesPastFailures(t *testing.T) {
	repo := &fakeAggregates{regions: []*models.Region{{Code: "NBO"}}}
	ledger := &fakeLedger{}

	result, err := newTestBatch(repo, ledger).Run(context.Background(), BatchRequest{
		Regions: []string{"ZZZ", "NBO"},
		Markets: []string{"Eldoret"},
		Months:  2,
	}, now)
	require.NoError(t, err)

	assert.True(t, result.Failed())
	require.Contains(t, result.Failures, "production:ZZZ")
	assert.True(t, errors.Is(result.Failures["production:ZZZ"], models.ErrSubjectNotFound))
	assert.Equal(t, 2, result.Runs)
	assert.Equal(t, 4, result.Points)
}

func TestBatchRunListRegionsFails(t *testing.T) {
	repo := &fakeAggregates{err: &models.UpstreamError{Op: "list regions", Err: errors.New("timeout")}}

	_, err := newTestBatch(repo, &fakeLedger{}).Run(context.Background(), BatchRequest{}, now)
	assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
}
