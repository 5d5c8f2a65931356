package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"agri-dashboard/internal/config"
	"agri-dashboard/internal/forecast"
	"agri-dashboard/internal/repository"
	"agri-dashboard/internal/services"
	"agri-dashboard/pkg/database"
	"agri-dashboard/pkg/logging"
	"agri-dashboard/pkg/metrics"
)

const version = "1.0.0"

// CLI is the batch forecaster command line
type CLI struct {
	Regions []string `help:"Region codes to forecast production for (default: every region)." sep:","`
	Markets []string `help:"Markets to forecast prices for." sep:","`
	Months  int      `help:"Horizon in months (0 uses each model's default)." default:"0"`
	Date    string   `help:"Reference date (YYYY-MM-DD), defaults to today."`
}

func (c *CLI) referenceDate() (time.Time, error) {
	if c.Date == "" {
		return time.Now(), nil
	}
	d, err := time.Parse("2006-01-02", c.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: %w", c.Date, err)
	}
	return d, nil
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("forecaster"),
		kong.Description("Generate and record baseline forecasts for many regions and markets."),
		kong.UsageOnError(),
	)

	now, err := cli.referenceDate()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("agri-dashboard-forecaster", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[FORECASTER_START] Starting batch forecaster", logging.Fields{
		"version": version,
		"regions": cli.Regions,
		"markets": cli.Markets,
		"months":  cli.Months,
		"date":    now.Format("2006-01-02"),
	})

	metricsCollector := metrics.NewCollector("agri_dashboard_forecaster", prometheus.NewRegistry())

	db, err := database.NewPostgresDB(cfg.Database.PostgresConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[FORECASTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	aggregateRepo := repository.NewAggregateRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db, logger)

	var random forecast.RandomSource
	if cfg.Forecast.Seed != nil {
		random = forecast.SeededSource(*cfg.Forecast.Seed)
	}
	generator := forecast.NewGenerator(aggregateRepo, ledgerRepo, random, logger, metricsCollector)
	batch := services.NewForecastBatchService(aggregateRepo, generator, logger)

	result, err := batch.Run(ctx, services.BatchRequest{
		Regions: cli.Regions,
		Markets: cli.Markets,
		Months:  cli.Months,
	}, now)
	if err != nil {
		db.Close()
		logger.Fatal(ctx, "[FORECASTER_ERROR] Batch forecast aborted", logging.Fields{}, err)
	}

	fmt.Printf("Forecast runs: %d, points: %d, failures: %d\n", result.Runs, result.Points, len(result.Failures))

	if result.Failed() {
		subjects := make([]string, 0, len(result.Failures))
		for subject := range result.Failures {
			subjects = append(subjects, subject)
		}
		sort.Strings(subjects)
		for _, subject := range subjects {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", subject, result.Failures[subject])
		}
		db.Close()
		os.Exit(1)
	}
}
