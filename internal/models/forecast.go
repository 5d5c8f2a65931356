package models

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// ForecastKind distinguishes what a forecast subject key refers to
type ForecastKind string

const (
	// ForecastKindProduction points are keyed by region code
	ForecastKindProduction ForecastKind = "production"
	// ForecastKindPrice points are keyed by market name
	ForecastKindPrice ForecastKind = "price"
)

// Valid reports whether k is a known kind
func (k ForecastKind) Valid() bool {
	return k == ForecastKindProduction || k == ForecastKindPrice
}

// Confidence labels attached to model runs
const (
	ConfidenceLow    = "LOW"
	ConfidenceMedium = "MEDIUM"
)

// ModelRun is the provenance record of one forecast invocation.
// Metric columns are nullable in storage.
type ModelRun struct {
	ID              int64     `json:"id" db:"id"`
	ModelName       string    `json:"model_name" db:"model_name"`
	ModelVersion    string    `json:"model_version" db:"model_version"`
	RunAt           time.Time `json:"run_at" db:"run_at"`
	MAE             *float64  `json:"mae,omitempty" db:"mae"`
	RMSE            *float64  `json:"rmse,omitempty" db:"rmse"`
	MAPE            *float64  `json:"mape,omitempty" db:"mape"`
	ConfidenceLevel *string   `json:"confidence_level,omitempty" db:"confidence_level"`
}

// ForecastPoint is one predicted value owned by a ModelRun.
// LowerBound <= ForecastValue <= UpperBound always holds.
type ForecastPoint struct {
	ID            int64        `db:"id"`
	Kind          ForecastKind `db:"kind"`
	SubjectKey    string       `db:"subject_key"`
	Date          time.Time    `db:"forecast_date"`
	ForecastValue float64      `db:"forecast_value"`
	LowerBound    float64      `db:"lower_bound"`
	UpperBound    float64      `db:"upper_bound"`
	ModelRunID    int64        `db:"model_run_id"`
}

type forecastPointJSON struct {
	RegionCode    string  `json:"regionCode,omitempty"`
	Market        string  `json:"market,omitempty"`
	Date          string  `json:"date"`
	ForecastValue float64 `json:"forecastValue"`
	LowerBound    float64 `json:"lowerBound"`
	UpperBound    float64 `json:"upperBound"`
	ModelRunID    int64   `json:"modelRunId"`
}

// MarshalJSON writes the date as YYYY-MM-DD and names the subject after its
// kind: regionCode for production points, market for price points.
func (p ForecastPoint) MarshalJSON() ([]byte, error) {
	out := forecastPointJSON{
		Date:          p.Date.Format(DateLayout),
		ForecastValue: p.ForecastValue,
		LowerBound:    p.LowerBound,
		UpperBound:    p.UpperBound,
		ModelRunID:    p.ModelRunID,
	}

	switch p.Kind {
	case ForecastKindProduction:
		out.RegionCode = p.SubjectKey
	case ForecastKindPrice:
		out.Market = p.SubjectKey
	}

	return json.Marshal(out)
}

// ModelMetrics is the accuracy view of the most recent model run
type ModelMetrics struct {
	ModelName       string  `json:"modelName"`
	ModelVersion    string  `json:"modelVersion"`
	MAE             float64 `json:"mae"`
	RMSE            float64 `json:"rmse"`
	MAPE            float64 `json:"mape"`
	ConfidenceLevel string  `json:"confidenceLevel"`
}

// EmptyModelMetrics is reported when no model run has been recorded yet
func EmptyModelMetrics() ModelMetrics {
	return ModelMetrics{
		ModelName:       "none",
		ModelVersion:    "0",
		ConfidenceLevel: ConfidenceLow,
	}
}

// Metrics flattens a run into its metrics view. Missing values read as zero,
// a missing confidence label reads as MEDIUM.
func (r *ModelRun) Metrics() ModelMetrics {
	m := ModelMetrics{
		ModelName:       r.ModelName,
		ModelVersion:    r.ModelVersion,
		ConfidenceLevel: ConfidenceMedium,
	}
	if r.MAE != nil {
		m.MAE = *r.MAE
	}
	if r.RMSE != nil {
		m.RMSE = *r.RMSE
	}
	if r.MAPE != nil {
		m.MAPE = *r.MAPE
	}
	if r.ConfidenceLevel != nil {
		m.ConfidenceLevel = *r.ConfidenceLevel
	}
	return m
}

// ModelMetadata describes the forecasting model exposed by the dashboard
type ModelMetadata struct {
	ModelName    string   `json:"modelName"`
	ModelVersion string   `json:"modelVersion"`
	Features     []string `json:"features"`
}
