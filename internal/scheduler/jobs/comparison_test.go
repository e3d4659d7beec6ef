package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sfmlstats/internal/collector"
	"github.com/wonny/sfmlstats/pkg/config"
	"github.com/wonny/sfmlstats/pkg/logger"
)

type fakeRunner struct {
	result collector.PassResult
	err    error
	pass   collector.Pass
	days   int
}

func (r *fakeRunner) Run(ctx context.Context, pass collector.Pass, days int) (collector.PassResult, error) {
	r.pass = pass
	r.days = days
	res := r.result
	res.Pass = pass
	return res, r.err
}

func TestComparisonJobs(t *testing.T) {
	cfg := config.ComparisonConfig{
		MorningSchedule: "0 0 6 * * *",
		EveningSchedule: "0 0 22 * * *",
		BackfillDays:    7,
	}

	jobs := ComparisonJobs(&fakeRunner{}, cfg, logger.Nop())
	require.Len(t, jobs, 4)

	want := map[string]string{
		"morning_forecast":    "0 0 6 * * *",
		"evening_actual":      "0 0 22 * * *",
		"historical_backfill": BackfillSchedule,
		"forecast_repair":     RepairSchedule,
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, job := range jobs {
		assert.Equal(t, want[job.Name()], job.Schedule(), job.Name())
		assert.NotEmpty(t, job.Description())
		_, err := parser.Parse(job.Schedule())
		assert.NoError(t, err, job.Name())
	}
}

func TestPassJob_Run(t *testing.T) {
	runner := &fakeRunner{result: collector.PassResult{OK: true}}
	job := NewHistoricalBackfillJob(runner, 5, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, collector.PassHistorical, runner.pass)
	assert.Equal(t, 5, runner.days)
}

func TestPassJob_FailureBecomesError(t *testing.T) {
	runner := &fakeRunner{result: collector.PassResult{OK: false}}
	job := NewEveningActualJob(runner, "0 0 22 * * *", logger.Nop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evening_actual")
}

func TestPassJob_PartialBackfillIsError(t *testing.T) {
	runner := &fakeRunner{result: collector.PassResult{
		OK:       true,
		Backfill: &collector.BackfillResult{Days: 7, Written: 5, Failed: 2},
	}}
	job := NewHistoricalBackfillJob(runner, 7, logger.Nop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 7")
}

func TestPassJob_RunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("unknown pass")}
	job := NewForecastRepairJob(runner, 7, logger.Nop())

	assert.Error(t, job.Run(context.Background()))
}

func TestPassJob_RepairCountLogged(t *testing.T) {
	n := 3
	runner := &fakeRunner{result: collector.PassResult{OK: true, Repaired: &n}}
	job := NewForecastRepairJob(runner, 7, logger.Nop())

	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, collector.PassRepair, runner.pass)
}
