package collector

import (
	"context"
	"math"
	"time"

	"github.com/wonny/sfmlstats/internal/comparison"
	"github.com/wonny/sfmlstats/internal/contracts"
	"github.com/wonny/sfmlstats/internal/source"
	"github.com/wonny/sfmlstats/pkg/config"
	"github.com/wonny/sfmlstats/pkg/database"
	"github.com/wonny/sfmlstats/pkg/logger"
)

// forecastTolerance 저장된 예측과 권위 예측의 허용 차이 (kWh)
const forecastTolerance = 0.01

// Collector 예측 비교 데이터 수집 오케스트레이터
// 모든 pass 는 하나의 Lease 범위 안에서 순차 실행되고, 호출자에게 에러를 올리지 않는다.
// ⭐ SSOT: stats_forecast_comparison 쓰기는 여기서만
type Collector struct {
	acquirer database.Acquirer
	sensors  *source.Sensors
	cfg      config.ComparisonConfig
	notifier contracts.Notifier
	now      func() time.Time
	logger   *logger.Logger
}

// New creates a collector
func New(acquirer database.Acquirer, sensors *source.Sensors, cfg config.ComparisonConfig, log *logger.Logger) *Collector {
	return &Collector{
		acquirer: acquirer,
		sensors:  sensors,
		cfg:      cfg,
		now:      time.Now,
		logger:   log.WithField("module", "collector"),
	}
}

// WithClock overrides the time source
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// WithNotifier registers a listener for written dates
func (c *Collector) WithNotifier(n contracts.Notifier) *Collector {
	c.notifier = n
	return c
}

// BackfillResult 과거 구간 수집 결과
type BackfillResult struct {
	Days    int `json:"days"`
	Written int `json:"written"`
	Skipped int `json:"skipped"` // already complete
	Empty   int `json:"empty"`   // nothing new known for the day
	Failed  int `json:"failed"`
}

func (c *Collector) today() time.Time {
	return c.now().In(c.cfg.Location())
}

// session is the per-pass view over one leased connection
type session struct {
	repo  *comparison.Repository
	preds *source.Predictions
}

func (c *Collector) open(ctx context.Context) (*database.Lease, *session) {
	lease := c.acquirer.Acquire(ctx)
	if lease == nil {
		return nil, nil
	}
	return lease, &session{
		repo:  comparison.NewRepository(lease.Conn, c.logger),
		preds: source.NewPredictions(lease.Conn, c.logger),
	}
}

// existing reads the stored record; a fault is logged by the repository and reads as absent
func (s *session) existing(ctx context.Context, day string) *contracts.DayRecord {
	rec, err := s.repo.Get(ctx, day)
	if err != nil {
		return nil
	}
	return rec
}

func (c *Collector) notify(ctx context.Context, day string) {
	if c.notifier != nil {
		c.notifier.RecordWritten(ctx, day)
	}
}

// CollectMorning 오늘의 예측값 수집 (내부 + 외부 2개)
// 이미 값이 있는 필드는 건드리지 않는다.
func (c *Collector) CollectMorning(ctx context.Context) bool {
	today := c.today()
	day := contracts.DateKey(today)
	log := c.logger.WithField("date", day)

	log.Info("Collecting morning forecast values")

	ext1 := c.sensors.ResolveExternalReading(ctx, c.cfg.ForecastEntity1)
	ext2 := c.sensors.ResolveExternalReading(ctx, c.cfg.ForecastEntity2)

	lease, s := c.open(ctx)
	if lease == nil {
		log.Error("No DB connection for morning forecast collection")
		return false
	}
	defer lease.Release()

	sfml := s.preds.ResolveInternalForecast(ctx, day, today)
	existing := s.existing(ctx, day)

	var fields contracts.DayFields
	if existing == nil || existing.SFMLForecastKWh == nil {
		fields.SFMLForecastKWh = sfml
	}
	if existing == nil || existing.External1KWh == nil {
		fields.External1KWh = ext1
	}
	if existing == nil || existing.External2KWh == nil {
		fields.External2KWh = ext2
	}

	if !s.repo.Upsert(ctx, day, fields) {
		return false
	}

	log.WithFields(map[string]interface{}{
		"sfml_kwh":       formatKWh(sfml),
		"external_1_kwh": formatKWh(ext1),
		"external_2_kwh": formatKWh(ext2),
	}).Info("Morning forecasts saved")
	c.notify(ctx, day)

	return true
}

// CollectEvening 오늘의 실측값 수집 + 정확도 계산 + 보존기간 정리
func (c *Collector) CollectEvening(ctx context.Context) bool {
	today := c.today()
	day := contracts.DateKey(today)
	log := c.logger.WithField("date", day)

	log.Info("Collecting evening actual production")

	actual := c.sensors.ResolveExternalReading(ctx, c.cfg.YieldEntity)

	lease, s := c.open(ctx)
	if lease == nil {
		log.Error("No DB connection for evening actual collection")
		return false
	}
	defer lease.Release()

	// 권위 있는 내부 예측을 항상 다시 조회
	sfml := s.preds.ResolveInternalForecast(ctx, day, today)
	existing := s.existing(ctx, day)

	var stored, ext1, ext2 *float64
	if existing != nil {
		stored = existing.SFMLForecastKWh
		ext1 = existing.External1KWh
		ext2 = existing.External2KWh
	}

	switch {
	case sfml == nil && stored != nil:
		sfml = stored
		log.Debugf("Using existing internal forecast: %.2f kWh", *stored)
	case sfml != nil && stored != nil && math.Abs(*stored-*sfml) > forecastTolerance:
		log.Infof("Correcting internal forecast: %.2f -> %.2f kWh", *stored, *sfml)
	}

	score := comparison.ScoreDay(actual, sfml, ext1, ext2)

	ok := s.repo.Upsert(ctx, day, contracts.DayFields{
		ActualKWh:                actual,
		SFMLForecastKWh:          sfml,
		SFMLAccuracyPercent:      score.SFMLAccuracy,
		External1AccuracyPercent: score.External1Accuracy,
		External2AccuracyPercent: score.External2Accuracy,
		BestSource:               score.BestSource,
	})

	s.repo.PruneOlderThan(ctx, today, c.cfg.RetentionDays)

	if !ok {
		return false
	}

	log.WithFields(map[string]interface{}{
		"actual_kwh":     formatKWh(actual),
		"sfml_kwh":       formatKWh(sfml),
		"external_1_kwh": formatKWh(ext1),
		"external_2_kwh": formatKWh(ext2),
		"best_source":    bestName(score.BestSource),
	}).Info("Evening actual saved")
	c.notify(ctx, day)

	return true
}

// CollectHistorical 최근 days 일 구간의 빈 값을 채운다 (오래된 날짜부터)
// days <= 0 이면 설정값 사용.
func (c *Collector) CollectHistorical(ctx context.Context, days int) (BackfillResult, bool) {
	if days <= 0 {
		days = c.cfg.BackfillDays
	}
	result := BackfillResult{Days: days}

	now := c.now()
	today := now.In(c.cfg.Location())
	window := contracts.DateWindow(today, days)
	if len(window) == 0 {
		c.logger.WithField("days", days).Warn("Empty backfill window, nothing to collect")
		return result, true
	}

	c.logger.WithField("days", days).Info("Collecting historical forecast comparison data")

	// 소스당 한 번의 이력 조회
	actualHist := c.sensors.ResolveExternalHistory(ctx, c.cfg.YieldEntity, days, now)
	ext1Hist := c.sensors.ResolveExternalHistory(ctx, c.cfg.ForecastEntity1, days, now)
	ext2Hist := c.sensors.ResolveExternalHistory(ctx, c.cfg.ForecastEntity2, days, now)

	lease, s := c.open(ctx)
	if lease == nil {
		c.logger.Error("No DB connection for historical collection")
		return result, false
	}
	defer lease.Release()

	summaries := s.preds.Summaries(ctx, window[0], window[len(window)-1])

	for _, day := range window {
		existing := s.existing(ctx, day)
		summary := summaries[day]

		sfml := summary.PredictedKWh
		actual := lookup(actualHist, day)
		if actual == nil {
			actual = summary.ActualKWh
		}
		ext1 := lookup(ext1Hist, day)
		ext2 := lookup(ext2Hist, day)

		if existing != nil && existing.ActualKWh != nil && !hasGaps(existing, sfml, ext1, ext2) {
			result.Skipped++
			continue
		}

		fields, ok := gapFields(day, existing, actual, sfml, ext1, ext2)
		if !ok {
			result.Empty++
			continue
		}

		ok = s.repo.Upsert(ctx, day, fields)
		if !ok {
			result.Failed++
			continue
		}

		result.Written++
		c.notify(ctx, day)
	}

	c.logger.WithFields(map[string]interface{}{
		"days":    result.Days,
		"written": result.Written,
		"skipped": result.Skipped,
		"empty":   result.Empty,
		"failed":  result.Failed,
	}).Info("Historical forecast comparison data collected")

	return result, true
}

// gapFields builds the backfill upsert for one day. Only values missing from
// the stored record are supplied; stored values stay authoritative. Accuracies
// are scored from the merged record and best_source is chosen over the merged
// accuracies so the row stays consistent with what COALESCE keeps.
// ok is false when there is nothing new to write.
func gapFields(day string, existing *contracts.DayRecord, actual, sfml, ext1, ext2 *float64) (contracts.DayFields, bool) {
	base := contracts.DayRecord{Date: day}
	if existing != nil {
		base = *existing
	}

	fields := contracts.DayFields{
		ActualKWh:       missing(base.ActualKWh, actual),
		SFMLForecastKWh: missing(base.SFMLForecastKWh, sfml),
		External1KWh:    missing(base.External1KWh, ext1),
		External2KWh:    missing(base.External2KWh, ext2),
	}
	if fields.IsEmpty() {
		return fields, false
	}

	values := fields.Merge(base)
	score := comparison.ScoreDay(values.ActualKWh, values.SFMLForecastKWh, values.External1KWh, values.External2KWh)
	fields.SFMLAccuracyPercent = score.SFMLAccuracy
	fields.External1AccuracyPercent = score.External1Accuracy
	fields.External2AccuracyPercent = score.External2Accuracy

	merged := fields.Merge(base)
	fields.BestSource = comparison.SelectBestSource(
		merged.SFMLAccuracyPercent, merged.External1AccuracyPercent, merged.External2AccuracyPercent)

	return fields, true
}

// missing returns incoming only when stored is empty
func missing(stored, incoming *float64) *float64 {
	if stored != nil {
		return nil
	}
	return incoming
}

// hasGaps reports whether a currently-null field has a newly available value
func hasGaps(existing *contracts.DayRecord, sfml, ext1, ext2 *float64) bool {
	return (existing.SFMLForecastKWh == nil && sfml != nil) ||
		(existing.External1KWh == nil && ext1 != nil) ||
		(existing.External2KWh == nil && ext2 != nil)
}

// RepairMissingForecasts 내부 예측이 비어 있는 기존 레코드를 요약 테이블에서 복구
// 복구된 레코드 수 반환.
func (c *Collector) RepairMissingForecasts(ctx context.Context, days int) int {
	if days <= 0 {
		days = c.cfg.BackfillDays
	}
	window := contracts.DateWindow(c.today(), days)
	if len(window) == 0 {
		c.logger.WithField("days", days).Warn("Empty repair window, nothing to repair")
		return 0
	}

	c.logger.WithField("days", days).Info("Repairing missing internal forecasts")

	lease, s := c.open(ctx)
	if lease == nil {
		c.logger.Error("No DB connection for forecast repair")
		return 0
	}
	defer lease.Release()

	summaries := s.preds.Summaries(ctx, window[0], window[len(window)-1])

	repaired := 0
	for _, day := range window {
		existing := s.existing(ctx, day)
		if existing == nil || existing.SFMLForecastKWh != nil {
			continue
		}

		sfml := summaries[day].PredictedKWh
		if sfml == nil {
			continue
		}

		acc := comparison.ComputeAccuracy(existing.ActualKWh, sfml)
		best := comparison.SelectBestSource(acc, existing.External1AccuracyPercent, existing.External2AccuracyPercent)

		if !s.repo.Upsert(ctx, day, contracts.DayFields{
			SFMLForecastKWh:     sfml,
			SFMLAccuracyPercent: acc,
			BestSource:          best,
		}) {
			continue
		}

		c.logger.WithField("date", day).Infof("Repaired internal forecast: %.2f kWh", *sfml)
		repaired++
		c.notify(ctx, day)
	}

	if repaired > 0 {
		c.logger.WithField("repaired", repaired).Info("Repaired missing internal forecasts")
	}

	return repaired
}

func lookup(m map[string]float64, day string) *float64 {
	if v, ok := m[day]; ok {
		return &v
	}
	return nil
}

func formatKWh(v *float64) interface{} {
	if v == nil {
		return "N/A"
	}
	return math.Round(*v*100) / 100
}

func bestName(t *contracts.SourceTag) string {
	if t == nil {
		return "none"
	}
	return string(*t)
}
