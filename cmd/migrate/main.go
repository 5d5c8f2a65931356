package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"agri-dashboard/internal/config"
	"agri-dashboard/migrations"
	"agri-dashboard/pkg/database"
	"agri-dashboard/pkg/logging"
	"agri-dashboard/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	name := flag.String("name", "001_create_schema", "Migration to apply")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("agri-dashboard-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	ctx := context.Background()

	script, err := migrations.Script(*name, *direction)
	if err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to load migration", logging.Fields{
			"name":      *name,
			"direction": *direction,
		}, err)
	}

	metricsCollector := metrics.NewCollector("agri_dashboard_migrate", prometheus.NewRegistry())
	db, err := database.NewPostgresDB(cfg.Database.PostgresConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	logger.Info(ctx, "[MIGRATE_RUN] Running migration", logging.Fields{
		"name":      *name,
		"direction": *direction,
	})

	if _, err := db.ExecContext(ctx, "migration", script); err != nil {
		db.Close()
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to execute migration", logging.Fields{
			"name":      *name,
			"direction": *direction,
		}, err)
	}

	logger.Info(ctx, "[MIGRATE_COMPLETE] Migration completed successfully", logging.Fields{
		"name":      *name,
		"direction": *direction,
	})
}
