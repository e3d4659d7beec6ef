package commands

import (
	"context"
	"fmt"

	"github.com/wonny/sfmlstats/internal/collector"
	"github.com/wonny/sfmlstats/internal/external/homeassistant"
	"github.com/wonny/sfmlstats/internal/external/recorder"
	"github.com/wonny/sfmlstats/internal/scheduler"
	"github.com/wonny/sfmlstats/internal/scheduler/jobs"
	"github.com/wonny/sfmlstats/internal/source"
	"github.com/wonny/sfmlstats/pkg/config"
	"github.com/wonny/sfmlstats/pkg/database"
	"github.com/wonny/sfmlstats/pkg/logger"
	"github.com/wonny/sfmlstats/pkg/redis"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB // nil when the shared pool could not be created
	rdb       *redis.Client
	provider  *database.Provider
	ha        *homeassistant.Client
	recorder  *recorder.Reader
	collector *collector.Collector
}

// newApp loads config and wires the collector.
// An unreachable database or Redis does not fail startup: passes degrade
// to the private connection tier and caching is disabled.
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}

	// 3. Shared database pool
	var shared database.SharedPool
	a.db, err = database.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Shared database pool unavailable")
		a.db = nil
	} else {
		shared = a.db
	}
	a.provider = database.NewProvider(shared, cfg.Database.FallbackURL, log)

	// 4. Redis (optional)
	a.rdb, err = redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		a.rdb, _ = redis.New(&config.Config{})
	}

	// 5. External sources
	a.ha = homeassistant.NewFromConfig(cfg, a.rdb, log)
	a.recorder = recorder.New(cfg.Recorder.DBPath, cfg.Recorder.MaxSamples, log)
	sensors := source.NewSensors(a.ha, a.recorder, cfg.Comparison.Location(), log)

	// 6. Collector
	a.collector = collector.New(a.provider, sensors, cfg.Comparison, log)

	return a, nil
}

// newScheduler registers every collection job
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, a.cfg.Comparison.Location())
	for _, job := range jobs.ComparisonJobs(a.collector, a.cfg.Comparison, a.log) {
		if err := sched.AddJob(job); err != nil {
			return nil, fmt.Errorf("register %s: %w", job.Name(), err)
		}
	}
	return sched, nil
}

// acquire returns a lease or an error naming both tiers
func (a *app) acquire(ctx context.Context) (*database.Lease, error) {
	lease := a.provider.Acquire(ctx)
	if lease == nil {
		return nil, fmt.Errorf("no database connection (DATABASE_URL unreachable and DATABASE_FALLBACK_URL unset or unreachable)")
	}
	return lease, nil
}

func (a *app) Close() {
	if a.recorder != nil {
		_ = a.recorder.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
