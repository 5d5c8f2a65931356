package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Region is reference data; records refer to it by code
type Region struct {
	Code    string `json:"code" db:"code"`
	Name    string `json:"name" db:"name"`
	Country string `json:"country" db:"country"`
}

// PriceRecord is one market's quoted price on one date.
// Grade is A, B or C when present.
type PriceRecord struct {
	ID     int64           `json:"id" db:"id"`
	Market string          `json:"market" db:"market"`
	Date   time.Time       `json:"date" db:"date"`
	Price  decimal.Decimal `json:"price" db:"price"`
	Grade  *string         `json:"grade,omitempty" db:"grade"`
}

// StorageRecord is one warehouse's snapshot on one date.
// Quantity may exceed capacity; nothing enforces it.
type StorageRecord struct {
	ID         int64           `json:"id" db:"id"`
	Warehouse  string          `json:"warehouse" db:"warehouse"`
	RegionCode string          `json:"region_code" db:"region_code"`
	Date       time.Time       `json:"date" db:"date"`
	Capacity   decimal.Decimal `json:"capacity" db:"capacity"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity"`
}

// RegionTotal is a per-region production sum over a date range
type RegionTotal struct {
	RegionCode    string              `db:"region_code"`
	TotalQuantity decimal.NullDecimal `db:"total_quantity"`
}

// MarketAverage is a per-market average price
type MarketAverage struct {
	Market       string              `db:"market"`
	AveragePrice decimal.NullDecimal `db:"average_price"`
}

// StorageTotals sums capacity and quantity across all warehouses for one date
type StorageTotals struct {
	Capacity decimal.Decimal `db:"capacity"`
	Quantity decimal.Decimal `db:"quantity"`
}

// Float converts a nullable aggregate to float64, treating NULL as zero
func Float(v decimal.NullDecimal) float64 {
	if !v.Valid {
		return 0
	}
	return v.Decimal.InexactFloat64()
}
