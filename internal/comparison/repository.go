package comparison

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/sfmlstats/internal/contracts"
	"github.com/wonny/sfmlstats/pkg/database"
	"github.com/wonny/sfmlstats/pkg/logger"
)

// TableName 비교 레코드 테이블
const TableName = "stats_forecast_comparison"

const recordColumns = `date, actual_kwh, sfml_forecast_kwh, sfml_accuracy_percent,
		external_1_kwh, external_1_accuracy_percent, external_2_kwh, external_2_accuracy_percent,
		best_source, created_at, updated_at`

// Repository 일별 비교 레코드 저장소
// 연결 수명은 호출자(Lease)가 관리한다.
type Repository struct {
	conn   database.Conn
	logger *logger.Logger
}

// NewRepository 새 저장소 생성
func NewRepository(conn database.Conn, log *logger.Logger) *Repository {
	return &Repository{
		conn:   conn,
		logger: log.WithField("module", "comparison.repository"),
	}
}

// Get 날짜 키로 레코드 조회. 없으면 (nil, nil).
func (r *Repository) Get(ctx context.Context, date string) (*contracts.DayRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM stats_forecast_comparison
		WHERE date = $1`

	rec, err := scanRecord(r.conn.QueryRow(ctx, query, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithError(err).WithField("date", date).Warn("Failed to read comparison record")
		return nil, fmt.Errorf("get comparison %s: %w", date, err)
	}

	return rec, nil
}

// Upsert 레코드 삽입 또는 병합
// nil 필드는 기존 값을 유지한다 (COALESCE). 실패 시 false 와 로그, 에러는 올리지 않음.
func (r *Repository) Upsert(ctx context.Context, date string, f contracts.DayFields) bool {
	query := `
		INSERT INTO stats_forecast_comparison
			(date, actual_kwh, sfml_forecast_kwh, sfml_accuracy_percent,
			 external_1_kwh, external_1_accuracy_percent, external_2_kwh, external_2_accuracy_percent,
			 best_source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (date) DO UPDATE SET
			actual_kwh = COALESCE(EXCLUDED.actual_kwh, stats_forecast_comparison.actual_kwh),
			sfml_forecast_kwh = COALESCE(EXCLUDED.sfml_forecast_kwh, stats_forecast_comparison.sfml_forecast_kwh),
			sfml_accuracy_percent = COALESCE(EXCLUDED.sfml_accuracy_percent, stats_forecast_comparison.sfml_accuracy_percent),
			external_1_kwh = COALESCE(EXCLUDED.external_1_kwh, stats_forecast_comparison.external_1_kwh),
			external_1_accuracy_percent = COALESCE(EXCLUDED.external_1_accuracy_percent, stats_forecast_comparison.external_1_accuracy_percent),
			external_2_kwh = COALESCE(EXCLUDED.external_2_kwh, stats_forecast_comparison.external_2_kwh),
			external_2_accuracy_percent = COALESCE(EXCLUDED.external_2_accuracy_percent, stats_forecast_comparison.external_2_accuracy_percent),
			best_source = COALESCE(EXCLUDED.best_source, stats_forecast_comparison.best_source),
			updated_at = CURRENT_TIMESTAMP`

	log := r.logger.WithField("date", date)

	tx, err := r.conn.Begin(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to begin comparison upsert")
		return false
	}

	if _, err := tx.Exec(ctx, query, UpsertArgs(date, f)...); err != nil {
		_ = tx.Rollback(ctx)
		log.WithError(err).Error("Failed to upsert comparison record")
		return false
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit comparison upsert")
		return false
	}

	log.Debug("Comparison record upserted")
	return true
}

// UpsertArgs flattens fields into positional query arguments.
// Unset fields become untyped nil so they bind as SQL NULL.
func UpsertArgs(date string, f contracts.DayFields) []any {
	var best any
	if f.BestSource != nil {
		best = string(*f.BestSource)
	}
	return []any{
		date,
		nullable(f.ActualKWh),
		nullable(f.SFMLForecastKWh),
		nullable(f.SFMLAccuracyPercent),
		nullable(f.External1KWh),
		nullable(f.External1AccuracyPercent),
		nullable(f.External2KWh),
		nullable(f.External2AccuracyPercent),
		best,
	}
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// PruneOlderThan date < today-days 인 레코드 삭제
// 실패는 로그만 남기고 삼킨다. 삭제 건수 반환.
func (r *Repository) PruneOlderThan(ctx context.Context, today time.Time, days int) int64 {
	cutoff := contracts.DateKey(today.AddDate(0, 0, -days))

	tag, err := r.conn.Exec(ctx, `DELETE FROM stats_forecast_comparison WHERE date < $1`, cutoff)
	if err != nil {
		r.logger.WithError(err).WithField("cutoff", cutoff).Error("Failed to prune comparison records")
		return 0
	}

	if n := tag.RowsAffected(); n > 0 {
		r.logger.WithFields(map[string]interface{}{
			"cutoff":  cutoff,
			"deleted": n,
		}).Info("Pruned old comparison records")
		return n
	}
	return 0
}

// List from~to (포함) 범위 레코드, 날짜 오름차순
func (r *Repository) List(ctx context.Context, from, to string) ([]contracts.DayRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM stats_forecast_comparison
		WHERE date BETWEEN $1 AND $2
		ORDER BY date ASC`

	rows, err := r.conn.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list comparison %s..%s: %w", from, to, err)
	}
	defer rows.Close()

	records := make([]contracts.DayRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparison: %w", err)
	}

	return records, nil
}

// ListDates 범위 내 레코드를 날짜 키 맵으로 반환
func (r *Repository) ListDates(ctx context.Context, from, to string) (map[string]contracts.DayRecord, error) {
	records, err := r.List(ctx, from, to)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]contracts.DayRecord, len(records))
	for _, rec := range records {
		byDate[rec.Date] = rec
	}
	return byDate, nil
}

func scanRecord(row pgx.Row) (*contracts.DayRecord, error) {
	var rec contracts.DayRecord
	err := row.Scan(
		&rec.Date,
		&rec.ActualKWh,
		&rec.SFMLForecastKWh,
		&rec.SFMLAccuracyPercent,
		&rec.External1KWh,
		&rec.External1AccuracyPercent,
		&rec.External2KWh,
		&rec.External2AccuracyPercent,
		&rec.BestSource,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// 알 수 없는 태그는 기록되지 않은 것으로 취급
	if rec.BestSource != nil && !rec.BestSource.Valid() {
		rec.BestSource = nil
	}
	return &rec, nil
}
