package contracts

import (
	"fmt"
	"time"
)

// DateLayout 일별 레코드 키 포맷 (ISO 8601 date)
const DateLayout = "2006-01-02"

// SourceTag 예측 소스 식별자
type SourceTag string

const (
	// SourceSFML 내부 예측 (SFML 파이프라인)
	SourceSFML SourceTag = "sfml"
	// SourceExternal1 외부 예측 슬롯 1
	SourceExternal1 SourceTag = "external_1"
	// SourceExternal2 외부 예측 슬롯 2
	SourceExternal2 SourceTag = "external_2"
)

// SourceOrder 동점 처리 순서 (앞이 우선)
var SourceOrder = []SourceTag{SourceSFML, SourceExternal1, SourceExternal2}

// Valid reports whether t is one of the known source tags
func (t SourceTag) Valid() bool {
	for _, s := range SourceOrder {
		if s == t {
			return true
		}
	}
	return false
}

// DayRecord 일별 예측/실측 비교 레코드 (stats_forecast_comparison 한 행)
// nil 필드는 아직 기록되지 않은 값
type DayRecord struct {
	Date                     string     `json:"date"`
	ActualKWh                *float64   `json:"actual_kwh"`
	SFMLForecastKWh          *float64   `json:"sfml_forecast_kwh"`
	SFMLAccuracyPercent      *float64   `json:"sfml_accuracy_percent"`
	External1KWh             *float64   `json:"external_1_kwh"`
	External1AccuracyPercent *float64   `json:"external_1_accuracy_percent"`
	External2KWh             *float64   `json:"external_2_kwh"`
	External2AccuracyPercent *float64   `json:"external_2_accuracy_percent"`
	BestSource               *SourceTag `json:"best_source"`
	CreatedAt                *time.Time `json:"created_at,omitempty"`
	UpdatedAt                *time.Time `json:"updated_at,omitempty"`
}

// DayFields 업서트 입력. nil 필드는 기존 값을 유지한다.
type DayFields struct {
	ActualKWh                *float64
	SFMLForecastKWh          *float64
	SFMLAccuracyPercent      *float64
	External1KWh             *float64
	External1AccuracyPercent *float64
	External2KWh             *float64
	External2AccuracyPercent *float64
	BestSource               *SourceTag
}

// IsEmpty reports whether no field is set
func (f DayFields) IsEmpty() bool {
	return f.ActualKWh == nil && f.SFMLForecastKWh == nil && f.SFMLAccuracyPercent == nil &&
		f.External1KWh == nil && f.External1AccuracyPercent == nil &&
		f.External2KWh == nil && f.External2AccuracyPercent == nil &&
		f.BestSource == nil
}

// Merge applies f onto r using the write-wins-only-if-non-null rule
func (f DayFields) Merge(r DayRecord) DayRecord {
	r.ActualKWh = coalesce(f.ActualKWh, r.ActualKWh)
	r.SFMLForecastKWh = coalesce(f.SFMLForecastKWh, r.SFMLForecastKWh)
	r.SFMLAccuracyPercent = coalesce(f.SFMLAccuracyPercent, r.SFMLAccuracyPercent)
	r.External1KWh = coalesce(f.External1KWh, r.External1KWh)
	r.External1AccuracyPercent = coalesce(f.External1AccuracyPercent, r.External1AccuracyPercent)
	r.External2KWh = coalesce(f.External2KWh, r.External2KWh)
	r.External2AccuracyPercent = coalesce(f.External2AccuracyPercent, r.External2AccuracyPercent)
	if f.BestSource != nil {
		r.BestSource = f.BestSource
	}
	return r
}

func coalesce(incoming, existing *float64) *float64 {
	if incoming != nil {
		return incoming
	}
	return existing
}

// DayKind 예측 신선도 구분
type DayKind int

const (
	DayOther DayKind = iota
	DayToday
	DayTomorrow
)

func (k DayKind) String() string {
	switch k {
	case DayToday:
		return "today"
	case DayTomorrow:
		return "tomorrow"
	default:
		return "other"
	}
}

// ClassifyDay compares calendar dates (YYYY-MM-DD) against today
func ClassifyDay(day string, today time.Time) DayKind {
	switch day {
	case DateKey(today):
		return DayToday
	case DateKey(today.AddDate(0, 0, 1)):
		return DayTomorrow
	default:
		return DayOther
	}
}

// DateKey formats t as a record key in t's own location
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey validates and parses a record key
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// DateWindow returns the keys of [today-days+1, today] in ascending order
func DateWindow(today time.Time, days int) []string {
	if days <= 0 {
		return nil
	}
	keys := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		keys = append(keys, DateKey(today.AddDate(0, 0, -i)))
	}
	return keys
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// Source returns a pointer to t
func Source(t SourceTag) *SourceTag {
	return &t
}
