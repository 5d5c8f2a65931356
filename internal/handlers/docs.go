package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description, typ string, required bool) map[string]interface{} {
	schema := map[string]string{"type": typ}
	if typ == "date" {
		schema = map[string]string{"type": "string", "format": "date"}
	}
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      schema,
	}
}

func objectSchema(properties map[string]string) map[string]interface{} {
	props := make(map[string]interface{}, len(properties))
	for name, typ := range properties {
		props[name] = map[string]string{"type": typ}
	}
	return map[string]interface{}{"type": "object", "properties": props}
}

func arrayOf(item map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": item}
}

func getOperation(summary, description string, params []map[string]interface{}, schema map[string]interface{}, errorCodes ...string) map[string]interface{} {
	responses := map[string]interface{}{
		"200": map[string]interface{}{
			"description": "Successful response",
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{"schema": schema},
			},
		},
	}
	for _, code := range errorCodes {
		responses[code] = map[string]interface{}{
			"description": errorDescriptions[code],
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{"schema": errorSchema},
			},
		}
	}

	op := map[string]interface{}{
		"summary":     summary,
		"description": description,
		"responses":   responses,
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return map[string]interface{}{"get": op}
}

var errorDescriptions = map[string]string{
	"400": "Malformed parameter or start date after end date",
	"401": "Missing or invalid bearer token",
	"404": "Forecast subject not found",
	"503": "Record store unavailable",
}

var errorSchema = objectSchema(map[string]string{
	"error":   "string",
	"message": "string",
	"code":    "integer",
})

// forecastPointSchema describes a forecast point whose subject is keyed by
// subjectField: regionCode for production, market for prices
func forecastPointSchema(subjectField string) map[string]interface{} {
	schema := objectSchema(map[string]string{
		subjectField:    "string",
		"forecastValue": "number",
		"lowerBound":    "number",
		"upperBound":    "number",
		"modelRunId":    "integer",
	})
	schema["properties"].(map[string]interface{})["date"] = map[string]string{"type": "string", "format": "date"}
	return schema
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Agricultural Dashboard API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	rangeParams := []map[string]interface{}{
		queryParam("startDate", "Window start (YYYY-MM-DD)", "date", false),
		queryParam("endDate", "Window end (YYYY-MM-DD), defaults to today", "date", false),
	}
	dateParam := []map[string]interface{}{
		queryParam("date", "Snapshot date (YYYY-MM-DD), defaults to today", "date", false),
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Agricultural Dashboard API",
			"description": "National production, price and storage KPIs with baseline forecasts",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Agricultural Dashboard Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
		"paths": map[string]interface{}{
			apiPrefix + "/overview/national": getOperation(
				"National overview",
				"Trailing-month production, average price, storage utilization and production change against the previous month",
				nil,
				objectSchema(map[string]string{
					"totalProduction":           "number",
					"averagePrice":              "number",
					"storageUtilizationPercent": "number",
					"productionChangePercent":   "number",
				}),
				"401", "503",
			),
			apiPrefix + "/production/regions": getOperation(
				"Regional production",
				"Total production per region, defaulting to the trailing year",
				rangeParams,
				arrayOf(objectSchema(map[string]string{
					"regionCode":    "string",
					"regionName":    "string",
					"totalQuantity": "number",
				})),
				"400", "401", "503",
			),
			apiPrefix + "/prices/markets": getOperation(
				"Market prices",
				"Average price per market on one date",
				dateParam,
				arrayOf(objectSchema(map[string]string{"market": "string", "averagePrice": "number"})),
				"400", "401", "503",
			),
			apiPrefix + "/prices/volatility": getOperation(
				"Price volatility",
				"Coefficient of variation per market, defaulting to the trailing 30 days",
				rangeParams,
				arrayOf(objectSchema(map[string]string{"market": "string", "volatility": "number"})),
				"400", "401", "503",
			),
			apiPrefix + "/storage/warehouses": getOperation(
				"Warehouse snapshot",
				"Capacity, stock and utilization per warehouse on one date",
				dateParam,
				arrayOf(objectSchema(map[string]string{
					"warehouse":          "string",
					"regionCode":         "string",
					"capacity":           "number",
					"quantity":           "number",
					"utilizationPercent": "number",
				})),
				"400", "401", "503",
			),
			apiPrefix + "/storage/utilization": getOperation(
				"Storage utilization",
				"Total capacity and stock across all warehouses on one date",
				dateParam,
				objectSchema(map[string]string{
					"totalCapacity":      "number",
					"totalQuantity":      "number",
					"utilizationPercent": "number",
				}),
				"400", "401", "503",
			),
			apiPrefix + "/seasonality/monthly": getOperation(
				"Monthly seasonality",
				"The year's national production spread evenly over twelve months",
				[]map[string]interface{}{queryParam("year", "Calendar year, defaults to the current year", "integer", false)},
				arrayOf(objectSchema(map[string]string{"year": "integer", "month": "integer", "totalProduction": "number"})),
				"400", "401", "503",
			),
			apiPrefix + "/forecast/production": getOperation(
				"Production forecast",
				"Generates and records a baseline production forecast for a known region",
				[]map[string]interface{}{
					queryParam("regionCode", "Region code", "string", true),
					queryParam("months", "Horizon in months (default 6)", "integer", false),
				},
				arrayOf(forecastPointSchema("regionCode")),
				"400", "401", "404", "503",
			),
			apiPrefix + "/forecast/prices": getOperation(
				"Price forecast",
				"Generates and records a baseline price forecast for any market",
				[]map[string]interface{}{
					queryParam("market", "Market name", "string", true),
					queryParam("months", "Horizon in months (default 3)", "integer", false),
				},
				arrayOf(forecastPointSchema("market")),
				"400", "401", "503",
			),
			apiPrefix + "/forecast/model-metrics": getOperation(
				"Latest model metrics",
				"Accuracy fields of the most recently recorded model run",
				nil,
				objectSchema(map[string]string{
					"modelName":       "string",
					"modelVersion":    "string",
					"mae":             "number",
					"rmse":            "number",
					"mape":            "number",
					"confidenceLevel": "string",
				}),
				"401", "503",
			),
			apiPrefix + "/forecast/model-metadata": getOperation(
				"Model metadata",
				"Name, version and input features of the forecasting model",
				nil,
				map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"modelName":    map[string]string{"type": "string"},
						"modelVersion": map[string]string{"type": "string"},
						"features":     arrayOf(map[string]interface{}{"type": "string"}),
					},
				},
				"401",
			),
			apiPrefix + "/forecast/history": getOperation(
				"Stored forecasts",
				"Recorded forecast points for a subject dated on or after a given date",
				[]map[string]interface{}{
					queryParam("kind", "production or price", "string", true),
					queryParam("subject", "Region code or market name", "string", true),
					queryParam("from", "Earliest point date (YYYY-MM-DD), defaults to today", "date", false),
				},
				arrayOf(map[string]interface{}{
					"oneOf": []interface{}{forecastPointSchema("regionCode"), forecastPointSchema("market")},
				}),
				"400", "401", "503",
			),
			"/health": getOperation(
				"Health check",
				"Check that the API and its record store are reachable",
				nil,
				objectSchema(map[string]string{"status": "string", "timestamp": "string"}),
			),
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
