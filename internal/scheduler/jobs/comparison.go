package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/sfmlstats/internal/collector"
	"github.com/wonny/sfmlstats/internal/scheduler"
	"github.com/wonny/sfmlstats/pkg/config"
	"github.com/wonny/sfmlstats/pkg/logger"
)

const (
	// BackfillSchedule 매일 03:30:00 (과거 구간 보충)
	BackfillSchedule = "0 30 3 * * *"
	// RepairSchedule 매일 03:45:00 (내부 예측 복구)
	RepairSchedule = "0 45 3 * * *"
)

// PassRunner executes one collection pass
type PassRunner interface {
	Run(ctx context.Context, pass collector.Pass, days int) (collector.PassResult, error)
}

// PassJob runs one collection pass on a schedule
type PassJob struct {
	name        string
	description string
	schedule    string
	pass        collector.Pass
	days        int
	runner      PassRunner
	logger      *logger.Logger
}

// NewMorningForecastJob records today's forecasts
func NewMorningForecastJob(runner PassRunner, schedule string, log *logger.Logger) *PassJob {
	return &PassJob{
		name:        "morning_forecast",
		description: "Record today's internal and external forecasts",
		schedule:    schedule,
		pass:        collector.PassMorning,
		runner:      runner,
		logger:      log,
	}
}

// NewEveningActualJob records today's actual yield, scores it and prunes old rows
func NewEveningActualJob(runner PassRunner, schedule string, log *logger.Logger) *PassJob {
	return &PassJob{
		name:        "evening_actual",
		description: "Record actual yield, score forecasts, prune expired records",
		schedule:    schedule,
		pass:        collector.PassEvening,
		runner:      runner,
		logger:      log,
	}
}

// NewHistoricalBackfillJob fills gaps over the trailing window
func NewHistoricalBackfillJob(runner PassRunner, days int, log *logger.Logger) *PassJob {
	return &PassJob{
		name:        "historical_backfill",
		description: fmt.Sprintf("Fill gaps over the last %d days from history", days),
		schedule:    BackfillSchedule,
		pass:        collector.PassHistorical,
		days:        days,
		runner:      runner,
		logger:      log,
	}
}

// NewForecastRepairJob restores missing internal forecasts from daily summaries
func NewForecastRepairJob(runner PassRunner, days int, log *logger.Logger) *PassJob {
	return &PassJob{
		name:        "forecast_repair",
		description: fmt.Sprintf("Repair missing internal forecasts over the last %d days", days),
		schedule:    RepairSchedule,
		pass:        collector.PassRepair,
		days:        days,
		runner:      runner,
		logger:      log,
	}
}

// ComparisonJobs builds every collection job from config
func ComparisonJobs(runner PassRunner, cfg config.ComparisonConfig, log *logger.Logger) []scheduler.Job {
	return []scheduler.Job{
		NewMorningForecastJob(runner, cfg.MorningSchedule, log),
		NewEveningActualJob(runner, cfg.EveningSchedule, log),
		NewHistoricalBackfillJob(runner, cfg.BackfillDays, log),
		NewForecastRepairJob(runner, cfg.BackfillDays, log),
	}
}

// Name returns the job name
func (j *PassJob) Name() string {
	return j.name
}

// Description returns the job summary
func (j *PassJob) Description() string {
	return j.description
}

// Schedule returns the cron schedule
func (j *PassJob) Schedule() string {
	return j.schedule
}

// Run executes the pass. A pass that reports failure becomes an error so the
// scheduler retries it.
func (j *PassJob) Run(ctx context.Context) error {
	j.logger.WithField("pass", string(j.pass)).Debug("Starting scheduled collection pass")

	result, err := j.runner.Run(ctx, j.pass, j.days)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	if !result.OK {
		return fmt.Errorf("%s: %s pass reported failure", j.name, j.pass)
	}
	if b := result.Backfill; b != nil && b.Failed > 0 {
		return fmt.Errorf("%s: %d of %d days failed to write", j.name, b.Failed, b.Days)
	}

	fields := map[string]interface{}{
		"pass":     string(j.pass),
		"duration": result.Duration,
	}
	if b := result.Backfill; b != nil {
		fields["written"] = b.Written
		fields["skipped"] = b.Skipped
	}
	if result.Repaired != nil {
		fields["repaired"] = *result.Repaired
	}
	j.logger.WithFields(fields).Info("Collection pass completed")

	return nil
}
