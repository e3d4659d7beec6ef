package collector

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sfmlstats/internal/contracts"
	"github.com/wonny/sfmlstats/internal/source"
	"github.com/wonny/sfmlstats/pkg/config"
	"github.com/wonny/sfmlstats/pkg/database"
	"github.com/wonny/sfmlstats/pkg/logger"
)

var fixedNow = time.Date(2026, 10, 18, 22, 0, 0, 0, time.UTC)

var recordCols = []string{
	"date", "actual_kwh", "sfml_forecast_kwh", "sfml_accuracy_percent",
	"external_1_kwh", "external_1_accuracy_percent", "external_2_kwh", "external_2_accuracy_percent",
	"best_source", "created_at", "updated_at",
}

func f(v float64) *float64 { return contracts.Float(v) }

type fakeStates map[string]string

func (s fakeStates) State(ctx context.Context, entityID string) (string, error) {
	v, ok := s[entityID]
	if !ok {
		return "", contracts.ErrEntityNotFound
	}
	return v, nil
}

type fakeHistory map[string][]contracts.StateSample

func (h fakeHistory) History(ctx context.Context, entityID string, since time.Time) ([]contracts.StateSample, error) {
	return h[entityID], nil
}

type recordingNotifier struct {
	dates []string
}

func (n *recordingNotifier) RecordWritten(ctx context.Context, date string) {
	n.dates = append(n.dates, date)
}

// countingPool is a shared pool that hands out the mock and counts releases
type countingPool struct {
	conn     database.Conn
	released int
}

func (p *countingPool) Connected(ctx context.Context) bool { return true }

func (p *countingPool) AcquireConn(ctx context.Context) (database.Conn, func(), error) {
	return p.conn, func() { p.released++ }, nil
}

func testConfig() config.ComparisonConfig {
	return config.ComparisonConfig{
		YieldEntity:     "sensor.sfml_yield",
		ForecastEntity1: "sensor.ext1",
		ForecastEntity2: "sensor.ext2",
		RetentionDays:   30,
		BackfillDays:    7,
		Timezone:        "UTC",
	}
}

type harness struct {
	mock pgxmock.PgxPoolIface
	pool *countingPool
	c    *Collector
	log  *bytes.Buffer
}

func newHarness(t *testing.T, states fakeStates, history fakeHistory) *harness {
	t.Helper()
	return newHarnessWithConfig(t, testConfig(), states, history)
}

func newHarnessWithConfig(t *testing.T, cfg config.ComparisonConfig, states fakeStates, history fakeHistory) *harness {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "debug")

	pool := &countingPool{conn: mock}
	sensors := source.NewSensors(states, history, time.UTC, log)
	c := New(database.NewProvider(pool, "", log), sensors, cfg, log).
		WithClock(func() time.Time { return fixedNow })

	return &harness{mock: mock, pool: pool, c: c, log: &buf}
}

func (h *harness) expectForecast(forecastType string, v *float64) {
	rows := pgxmock.NewRows([]string{"prediction_kwh"})
	if v != nil {
		rows.AddRow(v)
	}
	h.mock.ExpectQuery("SELECT prediction_kwh FROM daily_forecasts").
		WithArgs(forecastType).
		WillReturnRows(rows)
}

func (h *harness) expectSummaryPrediction(day string, v *float64) {
	rows := pgxmock.NewRows([]string{"predicted_total_kwh"})
	if v != nil {
		rows.AddRow(v)
	}
	h.mock.ExpectQuery("SELECT predicted_total_kwh FROM daily_summaries").
		WithArgs(day).
		WillReturnRows(rows)
}

func (h *harness) expectSummaries(from, to string, summaries ...source.DailySummary) {
	rows := pgxmock.NewRows([]string{"date", "predicted_total_kwh", "actual_total_kwh", "accuracy_percent"})
	for _, s := range summaries {
		rows.AddRow(s.Date, s.PredictedKWh, s.ActualKWh, s.AccuracyPercent)
	}
	h.mock.ExpectQuery("SELECT date, predicted_total_kwh, actual_total_kwh, accuracy_percent FROM daily_summaries").
		WithArgs(from, to).
		WillReturnRows(rows)
}

func (h *harness) expectGet(day string, rec *contracts.DayRecord) {
	rows := pgxmock.NewRows(recordCols)
	if rec != nil {
		rows.AddRow(rec.Date, rec.ActualKWh, rec.SFMLForecastKWh, rec.SFMLAccuracyPercent,
			rec.External1KWh, rec.External1AccuracyPercent, rec.External2KWh, rec.External2AccuracyPercent,
			rec.BestSource, nil, nil)
	}
	h.mock.ExpectQuery("SELECT .* FROM stats_forecast_comparison WHERE date =").
		WithArgs(day).
		WillReturnRows(rows)
}

func (h *harness) expectUpsert(args ...interface{}) {
	h.mock.ExpectBegin()
	h.mock.ExpectExec("INSERT INTO stats_forecast_comparison").
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	h.mock.ExpectCommit()
}

func (h *harness) expectPrune(cutoff string) {
	h.mock.ExpectExec("DELETE FROM stats_forecast_comparison").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
}

func (h *harness) verify(t *testing.T) {
	t.Helper()
	assert.NoError(t, h.mock.ExpectationsWereMet())
	assert.Equal(t, 1, h.pool.released, "lease must be released exactly once")
}

func TestCollectMorning_DoesNotClobber(t *testing.T) {
	h := newHarness(t, fakeStates{"sensor.ext1": "11", "sensor.ext2": "6"}, nil)

	h.expectForecast("today", f(10))
	h.expectGet("2026-10-18", &contracts.DayRecord{
		Date:            "2026-10-18",
		SFMLForecastKWh: f(9),
		External2KWh:    f(5),
	})
	// only external_1 is empty in the stored record
	h.expectUpsert("2026-10-18", nil, nil, nil, 11.0, nil, nil, nil, nil)

	assert.True(t, h.c.CollectMorning(context.Background()))
	h.verify(t)
}

func TestCollectMorning_NewDay(t *testing.T) {
	h := newHarness(t, fakeStates{"sensor.ext1": "unavailable"}, nil)

	h.expectForecast("today", f(10))
	h.expectGet("2026-10-18", nil)
	h.expectUpsert("2026-10-18", nil, 10.0, nil, nil, nil, nil, nil, nil)

	assert.True(t, h.c.CollectMorning(context.Background()))
	h.verify(t)
}

func TestCollectMorning_NoConnection(t *testing.T) {
	c := New(database.StaticAcquirer{}, source.NewSensors(nil, nil, time.UTC, logger.Nop()), testConfig(), logger.Nop())

	assert.False(t, c.CollectMorning(context.Background()))
	assert.False(t, c.CollectEvening(context.Background()))
	_, ok := c.CollectHistorical(context.Background(), 3)
	assert.False(t, ok)
	assert.Equal(t, 0, c.RepairMissingForecasts(context.Background(), 3))
}

func TestCollectMorning_UpsertFailureReleasesLease(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.expectForecast("today", nil)
	h.expectSummaryPrediction("2026-10-18", nil)
	h.expectGet("2026-10-18", nil)
	h.mock.ExpectBegin().WillReturnError(assert.AnError)

	assert.False(t, h.c.CollectMorning(context.Background()))
	h.verify(t)
}

func TestCollectEvening_CorrectsForecast(t *testing.T) {
	h := newHarness(t, fakeStates{"sensor.sfml_yield": "10"}, nil)

	h.expectForecast("today", f(10))
	h.expectGet("2026-10-18", &contracts.DayRecord{
		Date:            "2026-10-18",
		SFMLForecastKWh: f(9),
		External1KWh:    f(11),
	})
	h.expectUpsert("2026-10-18", 10.0, 10.0, 100.0, nil, 90.0, nil, nil, "sfml")
	h.expectPrune("2026-09-18")

	assert.True(t, h.c.CollectEvening(context.Background()))
	h.verify(t)
	assert.Contains(t, h.log.String(), "Correcting internal forecast: 9.00 -> 10.00 kWh")
}

func TestCollectEvening_FallsBackToStoredForecast(t *testing.T) {
	h := newHarness(t, fakeStates{"sensor.sfml_yield": "10"}, nil)

	h.expectForecast("today", nil)
	h.expectSummaryPrediction("2026-10-18", nil)
	h.expectGet("2026-10-18", &contracts.DayRecord{
		Date:            "2026-10-18",
		SFMLForecastKWh: f(9),
		External1KWh:    f(11),
		External2KWh:    f(12),
	})
	// sfml 90 ties external_1 90; external_2 is 80
	h.expectUpsert("2026-10-18", 10.0, 9.0, 90.0, nil, 90.0, nil, 80.0, "sfml")
	h.expectPrune("2026-09-18")

	assert.True(t, h.c.CollectEvening(context.Background()))
	h.verify(t)
	assert.NotContains(t, h.log.String(), "Correcting")
}

func TestCollectEvening_WithinToleranceNotLogged(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.expectForecast("today", f(9.005))
	h.expectGet("2026-10-18", &contracts.DayRecord{Date: "2026-10-18", SFMLForecastKWh: f(9)})
	h.expectUpsert("2026-10-18", nil, 9.005, nil, nil, nil, nil, nil, nil)
	h.expectPrune("2026-09-18")

	assert.True(t, h.c.CollectEvening(context.Background()))
	h.verify(t)
	assert.NotContains(t, h.log.String(), "Correcting")
}

func TestCollectHistorical_SkipsCompleteAndFillsGaps(t *testing.T) {
	h := newHarness(t, nil, fakeHistory{
		"sensor.sfml_yield": {
			{State: "12", LastChanged: time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)},
		},
		"sensor.ext1": {
			{State: "11", LastChanged: time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)},
		},
	})
	notifier := &recordingNotifier{}
	h.c.WithNotifier(notifier)

	h.expectSummaries("2026-10-17", "2026-10-18",
		source.DailySummary{Date: "2026-10-18", PredictedKWh: f(9)},
		source.DailySummary{Date: "2026-10-17", PredictedKWh: f(9)},
	)
	// complete: nothing newly available is missing
	h.expectGet("2026-10-17", &contracts.DayRecord{
		Date: "2026-10-17", ActualKWh: f(10), SFMLForecastKWh: f(9), External1KWh: f(11),
	})
	// has actual but internal forecast is a gap
	h.expectGet("2026-10-18", &contracts.DayRecord{Date: "2026-10-18", ActualKWh: f(10)})
	// stored actual wins over the recorder sample
	h.expectUpsert("2026-10-18", nil, 9.0, 90.0, nil, nil, nil, nil, "sfml")

	result, ok := h.c.CollectHistorical(context.Background(), 2)
	require.True(t, ok)
	assert.Equal(t, BackfillResult{Days: 2, Written: 1, Skipped: 1}, result)
	assert.Equal(t, []string{"2026-10-18"}, notifier.dates)
	h.verify(t)
}

func TestCollectHistorical_KeepsStoredValuesAndScoresMerged(t *testing.T) {
	h := newHarness(t, nil, fakeHistory{
		"sensor.sfml_yield": {
			{State: "12", LastChanged: time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)},
		},
		"sensor.ext1": {
			{State: "11", LastChanged: time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)},
		},
	})

	h.expectSummaries("2026-10-18", "2026-10-18",
		source.DailySummary{Date: "2026-10-18", PredictedKWh: f(9)},
	)
	h.expectGet("2026-10-18", &contracts.DayRecord{
		Date: "2026-10-18", ActualKWh: f(10), SFMLForecastKWh: f(9), SFMLAccuracyPercent: f(90),
	})
	// only external_1 is new; accuracies are scored against the stored actual (10)
	h.expectUpsert("2026-10-18", nil, nil, 90.0, 11.0, 90.0, nil, nil, "sfml")

	result, ok := h.c.CollectHistorical(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, BackfillResult{Days: 1, Written: 1}, result)
	h.verify(t)
}

func TestCollectHistorical_BestSourceUsesStoredAccuracies(t *testing.T) {
	h := newHarness(t, nil, fakeHistory{
		"sensor.ext2": {
			{State: "5", LastChanged: time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)},
		},
	})

	h.expectSummaries("2026-10-18", "2026-10-18",
		source.DailySummary{Date: "2026-10-18", PredictedKWh: f(9)},
	)
	h.expectGet("2026-10-18", &contracts.DayRecord{
		Date: "2026-10-18", ActualKWh: f(10), External1AccuracyPercent: f(99),
		BestSource: contracts.Source(contracts.SourceExternal1),
	})
	h.expectUpsert("2026-10-18", nil, 9.0, 90.0, nil, nil, 5.0, 50.0, "external_1")

	result, ok := h.c.CollectHistorical(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, 1, result.Written)
	h.verify(t)
}

func TestCollectHistorical_EmptyWindow(t *testing.T) {
	cfg := testConfig()
	cfg.BackfillDays = 0
	h := newHarnessWithConfig(t, cfg, nil, nil)

	result, ok := h.c.CollectHistorical(context.Background(), 0)
	require.True(t, ok)
	assert.Equal(t, BackfillResult{}, result)
	assert.Equal(t, 0, h.c.RepairMissingForecasts(context.Background(), 0))
	assert.NoError(t, h.mock.ExpectationsWereMet())
	assert.Equal(t, 0, h.pool.released)
}

func TestCollectHistorical_SummaryActualFallback(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.expectSummaries("2026-10-18", "2026-10-18",
		source.DailySummary{Date: "2026-10-18", PredictedKWh: f(9), ActualKWh: f(10)},
	)
	h.expectGet("2026-10-18", nil)
	h.expectUpsert("2026-10-18", 10.0, 9.0, 90.0, nil, nil, nil, nil, "sfml")

	result, ok := h.c.CollectHistorical(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, 1, result.Written)
	h.verify(t)
}

func TestCollectHistorical_EmptyDaysNotWritten(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.expectSummaries("2026-10-17", "2026-10-18")
	h.expectGet("2026-10-17", nil)
	h.expectGet("2026-10-18", nil)

	result, ok := h.c.CollectHistorical(context.Background(), 2)
	require.True(t, ok)
	assert.Equal(t, BackfillResult{Days: 2, Empty: 2}, result)
	h.verify(t)
}

func TestCollectHistorical_DefaultDays(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.expectSummaries("2026-10-12", "2026-10-18")
	for _, day := range contracts.DateWindow(fixedNow, 7) {
		h.expectGet(day, nil)
	}

	result, ok := h.c.CollectHistorical(context.Background(), 0)
	require.True(t, ok)
	assert.Equal(t, 7, result.Days)
	h.verify(t)
}

func TestRepairMissingForecasts(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.expectSummaries("2026-10-16", "2026-10-18",
		source.DailySummary{Date: "2026-10-18", PredictedKWh: f(9)},
		source.DailySummary{Date: "2026-10-17", PredictedKWh: f(8)},
	)
	h.expectGet("2026-10-16", &contracts.DayRecord{Date: "2026-10-16", ActualKWh: f(5)})
	h.expectGet("2026-10-17", &contracts.DayRecord{
		Date: "2026-10-17", ActualKWh: f(10), External1AccuracyPercent: f(70),
	})
	h.expectUpsert("2026-10-17", nil, 8.0, 80.0, nil, nil, nil, nil, "sfml")
	h.expectGet("2026-10-18", &contracts.DayRecord{Date: "2026-10-18", SFMLForecastKWh: f(9)})

	assert.Equal(t, 1, h.c.RepairMissingForecasts(context.Background(), 3))
	h.verify(t)
}

func TestRepairMissingForecasts_BestSourceFromExistingExternals(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.expectSummaries("2026-10-18", "2026-10-18",
		source.DailySummary{Date: "2026-10-18", PredictedKWh: f(5)},
	)
	h.expectGet("2026-10-18", &contracts.DayRecord{
		Date: "2026-10-18", ActualKWh: f(10), External2AccuracyPercent: f(95),
	})
	h.expectUpsert("2026-10-18", nil, 5.0, 50.0, nil, nil, nil, nil, "external_2")

	assert.Equal(t, 1, h.c.RepairMissingForecasts(context.Background(), 1))
	h.verify(t)
}

func TestRun(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.expectSummaries("2026-10-18", "2026-10-18")
	h.expectGet("2026-10-18", nil)

	result, err := h.c.Run(context.Background(), PassRepair, 1)
	require.NoError(t, err)
	assert.True(t, result.OK)
	require.NotNil(t, result.Repaired)
	assert.Equal(t, 0, *result.Repaired)

	_, err = h.c.Run(context.Background(), Pass("noon"), 1)
	assert.Error(t, err)
}

func TestParsePass(t *testing.T) {
	for _, s := range []string{"morning", "Evening", " historical ", "REPAIR"} {
		_, err := ParsePass(s)
		assert.NoError(t, err, s)
	}

	_, err := ParsePass("weekly")
	assert.Error(t, err)
}
