package database_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wonny/sfmlstats/pkg/config"
	"github.com/wonny/sfmlstats/pkg/database"
	"github.com/wonny/sfmlstats/pkg/logger"
)

// Example demonstrates how to use the database package
func Example() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create database connection
	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Acquire a scoped connection (shared pool first, private fallback second)
	provider := database.NewProvider(db, cfg.Database.FallbackURL, logger.New(cfg))
	lease := provider.Acquire(ctx)
	if lease == nil {
		log.Fatal("No database available")
	}
	defer lease.Release()

	var n int
	if err := lease.Conn.QueryRow(ctx, "SELECT COUNT(*) FROM stats_forecast_comparison").Scan(&n); err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Tier: %s, records: %d\n", lease.Tier, n)
}
