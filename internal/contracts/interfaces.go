package contracts

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEntityNotFound the sensor entity does not exist on the platform
	ErrEntityNotFound = errors.New("entity not found")

	// ErrArchiveUnavailable the historical state archive cannot be opened
	ErrArchiveUnavailable = errors.New("state archive unavailable")
)

// StateSample 센서 상태 이력 한 점
type StateSample struct {
	State       string
	LastChanged time.Time
}

// StateReader reads the live state of a sensor entity
// ⭐ SSOT: 실시간 센서 상태 조회 인터페이스
type StateReader interface {
	State(ctx context.Context, entityID string) (string, error)
}

// HistoryReader reads recorded state changes of a sensor entity since a point in time
// ⭐ SSOT: 센서 이력 조회 인터페이스
type HistoryReader interface {
	History(ctx context.Context, entityID string, since time.Time) ([]StateSample, error)
}

// Notifier is told about every date a collection pass wrote
type Notifier interface {
	RecordWritten(ctx context.Context, date string)
}

// Notifiers fans one notification out to every listener in order
type Notifiers []Notifier

// RecordWritten implements Notifier
func (ns Notifiers) RecordWritten(ctx context.Context, date string) {
	for _, n := range ns {
		if n != nil {
			n.RecordWritten(ctx, date)
		}
	}
}
