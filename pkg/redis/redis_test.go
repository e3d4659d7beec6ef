package redis

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/sfmlstats/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "test")

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), CollectRateLimit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != CollectRateLimit.Limit {
		t.Errorf("Expected remaining = %d, got %d", CollectRateLimit.Limit, remaining)
	}

	if err := limiter.Wait(context.Background(), HomeAssistantRateLimit(5)); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestHomeAssistantRateLimit(t *testing.T) {
	tests := []struct {
		perSecond float64
		want      int
	}{
		{5, 5},
		{2.7, 2},
		{0.5, 1},
		{0, 1},
	}
	for _, tt := range tests {
		got := HomeAssistantRateLimit(tt.perSecond)
		if got.Limit != tt.want {
			t.Errorf("HomeAssistantRateLimit(%v).Limit = %d, want %d", tt.perSecond, got.Limit, tt.want)
		}
		if got.Window != time.Second || got.Key != "homeassistant" {
			t.Errorf("unexpected config %+v", got)
		}
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")
	ctx := context.Background()

	// When Redis is disabled, cache operations should be no-ops
	var result string
	found, err := cache.Get(ctx, "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}

	if err := cache.Set(ctx, "key", "value", TTLShort); err != nil {
		t.Errorf("Set() error = %v", err)
	}
	if n, err := cache.DeletePattern(ctx, SummaryPattern); err != nil || n != 0 {
		t.Errorf("DeletePattern() = %d, %v", n, err)
	}
}

func TestCache_GetOrSetDisabledCallsLoader(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")

	calls := 0
	var dest map[string]int
	err := cache.GetOrSet(context.Background(), "k", &dest, TTLShort, func() (interface{}, error) {
		calls++
		return map[string]int{"days": 7}, nil
	})
	if err != nil {
		t.Fatalf("GetOrSet() error = %v", err)
	}
	if calls != 1 || dest["days"] != 7 {
		t.Errorf("calls=%d dest=%v", calls, dest)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{
			name:     "SummaryKey",
			fn:       func() string { return SummaryKey("2026-10-18", 7) },
			expected: "comparison:summary:2026-10-18:7",
		},
		{
			name:     "RecordsKey",
			fn:       func() string { return RecordsKey("2026-10-18", 30) },
			expected: "comparison:records:2026-10-18:30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
