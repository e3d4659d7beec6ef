package source

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wonny/sfmlstats/internal/contracts"
	"github.com/wonny/sfmlstats/pkg/logger"
)

// Sensors 외부 센서 값 해석 (실시간 상태 + 이력)
type Sensors struct {
	states  contracts.StateReader
	history contracts.HistoryReader
	loc     *time.Location
	logger  *logger.Logger

	archiveWarn sync.Once
}

// NewSensors creates a sensor adapter. Either reader may be nil, in which case
// the corresponding lookups resolve to nothing. loc decides calendar days.
func NewSensors(states contracts.StateReader, history contracts.HistoryReader, loc *time.Location, log *logger.Logger) *Sensors {
	if loc == nil {
		loc = time.Local
	}
	return &Sensors{
		states:  states,
		history: history,
		loc:     loc,
		logger:  log.WithField("module", "source.sensors"),
	}
}

// ParseState converts a raw sensor state into a number.
// unknown, unavailable, empty and non-numeric states give nil.
func ParseState(state string) *float64 {
	state = strings.TrimSpace(state)
	switch strings.ToLower(state) {
	case "", "unknown", "unavailable", "none":
		return nil
	}

	v, err := strconv.ParseFloat(state, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ResolveExternalReading 센서의 현재 값. 읽기 실패는 debug 로그 후 nil.
func (s *Sensors) ResolveExternalReading(ctx context.Context, entityID string) *float64 {
	if entityID == "" || s.states == nil {
		return nil
	}

	state, err := s.states.State(ctx, entityID)
	if err != nil {
		if !errors.Is(err, contracts.ErrEntityNotFound) {
			s.logger.WithError(err).WithField("entity_id", entityID).Debug("Sensor read failed")
		}
		return nil
	}

	return ParseState(state)
}

// ResolveExternalHistory 최근 days 일간 센서 이력을 일별 최대값으로 축약
// 아카이브를 열 수 없으면 빈 맵 (경고는 한 번만).
func (s *Sensors) ResolveExternalHistory(ctx context.Context, entityID string, days int, now time.Time) map[string]float64 {
	result := make(map[string]float64)
	if entityID == "" || s.history == nil || days <= 0 {
		return result
	}

	since := now.AddDate(0, 0, -days)
	samples, err := s.history.History(ctx, entityID, since)
	if err != nil {
		if errors.Is(err, contracts.ErrArchiveUnavailable) {
			s.archiveWarn.Do(func() {
				s.logger.WithError(err).Warn("Recorder not available for historical data")
			})
			return result
		}
		s.logger.WithError(err).WithField("entity_id", entityID).Warn("Error reading recorder history")
		return result
	}

	for _, sample := range samples {
		v := ParseState(sample.State)
		if v == nil {
			continue
		}
		day := contracts.DateKey(sample.LastChanged.In(s.loc))
		if cur, ok := result[day]; !ok || *v > cur {
			result[day] = *v
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"entity_id": entityID,
		"days":      len(result),
	}).Debug("Loaded sensor history")

	return result
}
