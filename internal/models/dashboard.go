package models

// NationalOverview summarises the trailing month nationally
type NationalOverview struct {
	TotalProduction           float64 `json:"totalProduction"`
	AveragePrice              float64 `json:"averagePrice"`
	StorageUtilizationPercent float64 `json:"storageUtilizationPercent"`
	ProductionChangePercent   float64 `json:"productionChangePercent"`
}

type RegionProduction struct {
	RegionCode    string  `json:"regionCode"`
	RegionName    string  `json:"regionName"`
	TotalQuantity float64 `json:"totalQuantity"`
}

type MarketPrice struct {
	Market       string  `json:"market"`
	AveragePrice float64 `json:"averagePrice"`
}

type PriceVolatility struct {
	Market     string  `json:"market"`
	Volatility float64 `json:"volatility"`
}

type StorageWarehouse struct {
	Warehouse          string  `json:"warehouse"`
	RegionCode         string  `json:"regionCode"`
	Capacity           float64 `json:"capacity"`
	Quantity           float64 `json:"quantity"`
	UtilizationPercent float64 `json:"utilizationPercent"`
}

type StorageUtilization struct {
	TotalCapacity      float64 `json:"totalCapacity"`
	TotalQuantity      float64 `json:"totalQuantity"`
	UtilizationPercent float64 `json:"utilizationPercent"`
}

// SeasonalityMonth is one month's share of an annual production total
type SeasonalityMonth struct {
	Year            int     `json:"year"`
	Month           int     `json:"month"`
	TotalProduction float64 `json:"totalProduction"`
}
