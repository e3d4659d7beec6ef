package httputil_test

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/sfmlstats/pkg/config"
	"github.com/wonny/sfmlstats/pkg/httputil"
	"github.com/wonny/sfmlstats/pkg/logger"
)

// Example_homeAssistant demonstrates a client configured for the Home Assistant REST API
func Example_homeAssistant() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
		HomeAssistant: config.HomeAssistantConfig{
			BaseURL:    "http://homeassistant.local:8123",
			Token:      "long-lived-token",
			Timeout:    10 * time.Second,
			RatePerSec: 5,
		},
	}
	log := logger.New(cfg)

	client := httputil.New(cfg, log).
		WithHeader("Authorization", "Bearer "+cfg.HomeAssistant.Token).
		WithLimiter(rate.NewLimiter(rate.Limit(cfg.HomeAssistant.RatePerSec), 1)).
		WithCircuitBreaker("homeassistant")

	resp, err := client.Get(context.Background(), cfg.HomeAssistant.BaseURL+"/api/states/sensor.solcast_forecast_today")
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
}
