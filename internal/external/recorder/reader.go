package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wonny/sfmlstats/internal/contracts"
	"github.com/wonny/sfmlstats/pkg/logger"
)

// Reader reads state history from the Home Assistant recorder database
// ⭐ SSOT: recorder(SQLite) 조회는 여기서만
type Reader struct {
	path       string
	maxSamples int
	logger     *logger.Logger

	mu sync.Mutex
	db *sql.DB
}

// New creates a reader. The database is opened lazily on first use.
func New(path string, maxSamples int, log *logger.Logger) *Reader {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &Reader{
		path:       path,
		maxSamples: maxSamples,
		logger:     log.WithField("module", "recorder"),
	}
}

// open returns the shared handle, opening it read-only on first call
func (r *Reader) open() (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}

	if r.path == "" {
		return nil, fmt.Errorf("%w: no recorder path configured", contracts.ErrArchiveUnavailable)
	}
	// sqlite would silently create an empty file
	if _, err := os.Stat(r.path); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrArchiveUnavailable, err)
	}

	dsn := r.path + "?_pragma=query_only(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrArchiveUnavailable, err)
	}
	db.SetMaxOpenConns(2)

	r.db = db
	r.logger.WithField("path", r.path).Debug("Recorder database opened")
	return db, nil
}

// History implements contracts.HistoryReader.
// Returns at most maxSamples of the newest state changes since the given time.
func (r *Reader) History(ctx context.Context, entityID string, since time.Time) ([]contracts.StateSample, error) {
	db, err := r.open()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT s.state, COALESCE(s.last_changed_ts, s.last_updated_ts)
		FROM states s
		JOIN states_meta m ON s.metadata_id = m.metadata_id
		WHERE m.entity_id = ?
		  AND COALESCE(s.last_changed_ts, s.last_updated_ts) >= ?
		ORDER BY s.last_updated_ts DESC
		LIMIT ?`

	sinceTS := float64(since.UnixNano()) / 1e9
	rows, err := db.QueryContext(ctx, query, entityID, sinceTS, r.maxSamples)
	if err != nil {
		return nil, fmt.Errorf("recorder query %s: %w", entityID, err)
	}
	defer rows.Close()

	var samples []contracts.StateSample
	for rows.Next() {
		var state sql.NullString
		var ts sql.NullFloat64
		if err := rows.Scan(&state, &ts); err != nil {
			return nil, fmt.Errorf("recorder scan %s: %w", entityID, err)
		}
		if !state.Valid || !ts.Valid {
			continue
		}
		samples = append(samples, contracts.StateSample{
			State:       state.String,
			LastChanged: fromUnixSeconds(ts.Float64),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recorder rows %s: %w", entityID, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"entity_id": entityID,
		"samples":   len(samples),
	}).Debug("Recorder history loaded")

	return samples, nil
}

// Available reports whether the recorder database can be opened
func (r *Reader) Available() bool {
	_, err := r.open()
	return err == nil
}

// Close releases the database handle
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func fromUnixSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9))
}
