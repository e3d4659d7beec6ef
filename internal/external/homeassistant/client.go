package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/sfmlstats/internal/contracts"
	"github.com/wonny/sfmlstats/pkg/config"
	"github.com/wonny/sfmlstats/pkg/httputil"
	"github.com/wonny/sfmlstats/pkg/logger"
	"github.com/wonny/sfmlstats/pkg/redis"
)

// Client handles communication with the Home Assistant REST API
// ⭐ SSOT: Home Assistant 상태 조회는 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Home Assistant client on top of a configured HTTP client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "homeassistant"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// NewFromConfig wires bearer auth, rate limiting and a circuit breaker.
// rdb may be nil; when it is enabled the request rate is shared across processes.
func NewFromConfig(cfg *config.Config, rdb *redis.Client, log *logger.Logger) *Client {
	ha := cfg.HomeAssistant

	httpClient := httputil.New(cfg, log).
		WithRetry(2, 500*time.Millisecond).
		WithCircuitBreaker("homeassistant")
	if ha.Token != "" {
		httpClient = httpClient.WithHeader("Authorization", "Bearer "+ha.Token)
	}
	if ha.RatePerSec > 0 {
		httpClient = httpClient.WithLimiter(rate.NewLimiter(rate.Limit(ha.RatePerSec), 1))
	}
	if rdb != nil && rdb.Enabled() {
		httpClient = httpClient.WithRateLimiter(redis.NewRateLimiter(rdb, "sfmlstats"), redis.HomeAssistantRateLimit(ha.RatePerSec))
	}

	return NewClient(httpClient, ha.BaseURL, log)
}

// fetchJSON performs GET {baseURL}{path} and decodes the body into dest
func (c *Client) fetchJSON(ctx context.Context, path string, dest interface{}) error {
	resp, err := c.httpClient.Get(ctx, c.baseURL+path)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return contracts.ErrEntityNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: check HA_TOKEN")
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Ping checks that the API answers and the token is accepted
func (c *Client) Ping(ctx context.Context) error {
	var msg struct {
		Message string `json:"message"`
	}
	if err := c.fetchJSON(ctx, "/api/", &msg); err != nil {
		return err
	}
	c.logger.WithField("message", msg.Message).Debug("Home Assistant API reachable")
	return nil
}

// BreakerState exposes the circuit breaker state for health reporting
func (c *Client) BreakerState() string {
	return c.httpClient.BreakerState()
}

func statePath(entityID string) string {
	return "/api/states/" + url.PathEscape(entityID)
}
