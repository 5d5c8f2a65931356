// Package kpi holds the derived dashboard metrics. Every function is pure and
// guards its divisions so callers never see NaN or Inf.
package kpi

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"agri-dashboard/internal/models"
)

// UtilizationPercent returns quantity as a percentage of capacity.
// Zero capacity yields 0. The result is not clamped: overstocked storage reads above 100.
func UtilizationPercent(quantity, capacity float64) float64 {
	if capacity == 0 {
		return 0
	}
	return quantity / capacity * 100
}

// ChangePercent returns the period-over-period change from previous to current.
// A zero previous value yields 0 when current is also zero and a flat 100 otherwise.
func ChangePercent(previous, current float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - previous) / previous * 100
}

// Volatility returns the coefficient of variation of values: population
// standard deviation over mean. Empty series and zero-mean series yield 0.
func Volatility(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	mean, variance := stat.PopMeanVariance(values, nil)
	if mean == 0 {
		return 0
	}

	return math.Sqrt(math.Max(variance, 0)) / mean
}

// MonthlyDistribution spreads an annual total evenly over the twelve months of year
func MonthlyDistribution(year int, total float64) []models.SeasonalityMonth {
	share := total / 12
	months := make([]models.SeasonalityMonth, 0, 12)
	for m := time.January; m <= time.December; m++ {
		months = append(months, models.SeasonalityMonth{
			Year:            year,
			Month:           int(m),
			TotalProduction: share,
		})
	}
	return months
}
