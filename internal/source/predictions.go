package source

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/sfmlstats/internal/contracts"
	"github.com/wonny/sfmlstats/pkg/database"
	"github.com/wonny/sfmlstats/pkg/logger"
)

// DailySummary 내부 파이프라인의 일별 요약 (daily_summaries 한 행)
type DailySummary struct {
	Date            string
	PredictedKWh    *float64
	ActualKWh       *float64
	AccuracyPercent *float64
}

// Predictions 내부 예측 저장소 조회 (읽기 전용)
type Predictions struct {
	conn   database.Conn
	logger *logger.Logger
}

// NewPredictions binds the upstream prediction tables to a leased connection
func NewPredictions(conn database.Conn, log *logger.Logger) *Predictions {
	return &Predictions{
		conn:   conn,
		logger: log.WithField("module", "source.predictions"),
	}
}

// ResolveInternalForecast 해당 날짜의 내부 예측값
// today/tomorrow 는 daily_forecasts 최신 행 우선, 이후 daily_summaries 로 폴백.
// 조회 실패는 경고 로그 후 nil.
func (p *Predictions) ResolveInternalForecast(ctx context.Context, day string, today time.Time) *float64 {
	log := p.logger.WithField("date", day)

	kind := contracts.ClassifyDay(day, today)
	if kind == contracts.DayToday || kind == contracts.DayTomorrow {
		v, err := p.latestForecast(ctx, kind.String())
		if err != nil {
			log.WithError(err).Warn("Error reading internal forecast")
			return nil
		}
		if v != nil {
			log.Debugf("Internal forecast for %s from daily_forecasts: %.2f kWh", kind, *v)
			return v
		}
	}

	v, err := p.summaryPrediction(ctx, day)
	if err != nil {
		log.WithError(err).Warn("Error reading internal forecast")
		return nil
	}
	if v == nil {
		log.Debug("No internal forecast found")
	}
	return v
}

func (p *Predictions) latestForecast(ctx context.Context, forecastType string) (*float64, error) {
	query := `
		SELECT prediction_kwh FROM daily_forecasts
		WHERE forecast_type = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var v *float64
	err := p.conn.QueryRow(ctx, query, forecastType).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (p *Predictions) summaryPrediction(ctx context.Context, day string) (*float64, error) {
	var v *float64
	err := p.conn.QueryRow(ctx,
		`SELECT predicted_total_kwh FROM daily_summaries WHERE date = $1`, day,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// Summaries 기간 내 일별 요약을 날짜 키로 반환 (한 번의 쿼리)
// 조회 실패는 경고 로그 후 빈 맵.
func (p *Predictions) Summaries(ctx context.Context, from, to string) map[string]DailySummary {
	query := `
		SELECT date, predicted_total_kwh, actual_total_kwh, accuracy_percent
		FROM daily_summaries
		WHERE date BETWEEN $1 AND $2
		ORDER BY date DESC`

	result := make(map[string]DailySummary)

	rows, err := p.conn.Query(ctx, query, from, to)
	if err != nil {
		p.logger.WithError(err).Warn("Error reading daily summaries")
		return result
	}
	defer rows.Close()

	for rows.Next() {
		var s DailySummary
		if err := rows.Scan(&s.Date, &s.PredictedKWh, &s.ActualKWh, &s.AccuracyPercent); err != nil {
			p.logger.WithError(err).Warn("Error scanning daily summary")
			return make(map[string]DailySummary)
		}
		if s.Date != "" {
			result[s.Date] = s
		}
	}
	if err := rows.Err(); err != nil {
		p.logger.WithError(err).Warn("Error reading daily summaries")
		return make(map[string]DailySummary)
	}

	p.logger.Debugf("Loaded %d daily summaries", len(result))
	return result
}
