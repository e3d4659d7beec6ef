package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wonny/sfmlstats/internal/collector"
	"github.com/wonny/sfmlstats/internal/comparison"
	"github.com/wonny/sfmlstats/internal/contracts"
	"github.com/wonny/sfmlstats/pkg/config"
	"github.com/wonny/sfmlstats/pkg/database"
	"github.com/wonny/sfmlstats/pkg/logger"
	"github.com/wonny/sfmlstats/pkg/redis"
)

// defaultDays 기간 파라미터 기본값
const defaultDays = 7

// sfmlName 내부 예측 표시 이름
const sfmlName = "SFML"

var errDatabaseUnavailable = errors.New("database unavailable")

// PassRunner executes one collection pass
type PassRunner interface {
	Run(ctx context.Context, pass collector.Pass, days int) (collector.PassResult, error)
}

// ComparisonHandler handles forecast comparison API endpoints
// ⭐ SSOT: 비교 API 핸들러는 이 구조체에서만
type ComparisonHandler struct {
	acquirer    database.Acquirer
	runner      PassRunner
	cfg         config.ComparisonConfig
	cache       *redis.Cache
	limiter     *rate.Limiter
	distributed *redis.RateLimiter
	now         func() time.Time
	logger      *logger.Logger
}

// NewComparisonHandler creates a new comparison handler.
// Manual collection is limited to one pass every 10 seconds with a burst of 3.
func NewComparisonHandler(acquirer database.Acquirer, runner PassRunner, cfg config.ComparisonConfig, log *logger.Logger) *ComparisonHandler {
	return &ComparisonHandler{
		acquirer: acquirer,
		runner:   runner,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(10*time.Second), 3),
		now:      time.Now,
		logger:   log.WithField("module", "api.comparison"),
	}
}

// WithCache enables response caching for summaries
func (h *ComparisonHandler) WithCache(cache *redis.Cache) *ComparisonHandler {
	h.cache = cache
	return h
}

// WithLimiter replaces the in-process collect limiter
func (h *ComparisonHandler) WithLimiter(l *rate.Limiter) *ComparisonHandler {
	h.limiter = l
	return h
}

// WithDistributedLimiter adds a Redis-backed collect limiter shared across instances
func (h *ComparisonHandler) WithDistributedLimiter(rl *redis.RateLimiter) *ComparisonHandler {
	h.distributed = rl
	return h
}

// WithClock overrides the time source
func (h *ComparisonHandler) WithClock(now func() time.Time) *ComparisonHandler {
	h.now = now
	return h
}

// ListResponse 기간 레코드 응답
type ListResponse struct {
	From    string                `json:"from"`
	To      string                `json:"to"`
	Days    int                   `json:"days"`
	Records []contracts.DayRecord `json:"records"`
}

// List returns the records of the last N days
// GET /api/comparison?days=N
func (h *ComparisonHandler) List(w http.ResponseWriter, r *http.Request) {
	days, ok := h.parseDays(w, r)
	if !ok {
		return
	}
	from, to := h.window(days)

	lease := h.acquirer.Acquire(r.Context())
	if lease == nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	defer lease.Release()

	records, err := comparison.NewRepository(lease.Conn, h.logger).List(r.Context(), from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to retrieve comparison records")
		return
	}

	respondJSON(w, http.StatusOK, ListResponse{From: from, To: to, Days: days, Records: records})
}

// Summary returns per-source statistics over the last N days
// GET /api/comparison/summary?days=N
func (h *ComparisonHandler) Summary(w http.ResponseWriter, r *http.Request) {
	days, ok := h.parseDays(w, r)
	if !ok {
		return
	}
	from, to := h.window(days)

	load := func() (interface{}, error) {
		lease := h.acquirer.Acquire(r.Context())
		if lease == nil {
			return nil, errDatabaseUnavailable
		}
		defer lease.Release()

		records, err := comparison.NewRepository(lease.Conn, h.logger).List(r.Context(), from, to)
		if err != nil {
			return nil, err
		}
		summary := comparison.Summarize(records, h.names())
		summary.From, summary.To = from, to
		return summary, nil
	}

	var summary comparison.Summary
	var err error
	if h.cache != nil {
		err = h.cache.GetOrSet(r.Context(), redis.SummaryKey(to, days), &summary, redis.TTLShort, load)
	} else {
		var v interface{}
		if v, err = load(); err == nil {
			summary = v.(comparison.Summary)
		}
	}

	switch {
	case errors.Is(err, errDatabaseUnavailable):
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
	case err != nil:
		h.logger.WithError(err).Error("Failed to build summary")
		respondError(w, http.StatusInternalServerError, "Failed to build summary")
	default:
		respondJSON(w, http.StatusOK, summary)
	}
}

// Get returns one day's record
// GET /api/comparison/{date}
func (h *ComparisonHandler) Get(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if _, err := contracts.ParseDateKey(date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	lease := h.acquirer.Acquire(r.Context())
	if lease == nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	defer lease.Release()

	rec, err := comparison.NewRepository(lease.Conn, h.logger).Get(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to retrieve comparison record")
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "no record for "+date)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// Collect runs one collection pass on demand
// POST /api/comparison/collect/{pass}?days=N
func (h *ComparisonHandler) Collect(w http.ResponseWriter, r *http.Request) {
	pass, err := collector.ParsePass(mux.Vars(r)["pass"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 1 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
	}

	if !h.allow(r.Context()) {
		respondError(w, http.StatusTooManyRequests, "collection rate limit exceeded")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"pass": string(pass),
		"days": days,
	}).Info("Manual collection requested")

	result, err := h.runner.Run(r.Context(), pass, days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.invalidate(r.Context())

	status := http.StatusOK
	if !result.OK {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, result)
}

// RecordWritten implements contracts.Notifier by dropping cached summaries
func (h *ComparisonHandler) RecordWritten(ctx context.Context, date string) {
	h.invalidate(ctx)
}

func (h *ComparisonHandler) invalidate(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if _, err := h.cache.DeletePattern(ctx, redis.SummaryPattern); err != nil {
		h.logger.WithError(err).Warn("Failed to invalidate summary cache")
	}
}

func (h *ComparisonHandler) allow(ctx context.Context) bool {
	if h.limiter != nil && !h.limiter.Allow() {
		return false
	}
	if h.distributed != nil {
		allowed, _, err := h.distributed.Allow(ctx, redis.CollectRateLimit)
		if err != nil {
			// Redis 장애 시 프로세스 내 제한만 적용
			h.logger.WithError(err).Warn("Distributed rate limiter unavailable")
			return true
		}
		return allowed
	}
	return true
}

// parseDays reads ?days=, defaulting to 7 and capping at the retention window
func (h *ComparisonHandler) parseDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	days := defaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return 0, false
		}
		days = n
	}
	if h.cfg.RetentionDays > 0 && days > h.cfg.RetentionDays {
		days = h.cfg.RetentionDays
	}
	return days, true
}

// window returns the inclusive date range ending today
func (h *ComparisonHandler) window(days int) (from, to string) {
	today := h.now().In(h.cfg.Location())
	return contracts.DateKey(today.AddDate(0, 0, -(days - 1))), contracts.DateKey(today)
}

func (h *ComparisonHandler) names() map[contracts.SourceTag]string {
	return map[contracts.SourceTag]string{
		contracts.SourceSFML:      sfmlName,
		contracts.SourceExternal1: h.cfg.ForecastEntity1Name,
		contracts.SourceExternal2: h.cfg.ForecastEntity2Name,
	}
}
