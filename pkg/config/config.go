package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External sources
	HomeAssistant HomeAssistantConfig
	Recorder      RecorderConfig

	// Forecast comparison
	Comparison ComparisonConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// FallbackURL is dialed for a private connection when the shared pool
	// is not connected. Empty disables the fallback tier.
	FallbackURL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// HomeAssistantConfig holds the live state API configuration
type HomeAssistantConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RatePerSec float64
}

// RecorderConfig holds the historical state archive configuration
type RecorderConfig struct {
	DBPath     string
	MaxSamples int
}

// ComparisonConfig holds the forecast comparison settings
type ComparisonConfig struct {
	YieldEntity string

	ForecastEntity1     string
	ForecastEntity1Name string
	ForecastEntity2     string
	ForecastEntity2Name string

	RetentionDays int
	BackfillDays  int

	MorningSchedule string
	EveningSchedule string

	Timezone string
}

// ExternalSource is one operator-configured external forecast sensor
type ExternalSource struct {
	Slot     int // 1 or 2
	EntityID string
	Name     string
}

// ExternalSources returns the configured external sources in slot order.
func (c ComparisonConfig) ExternalSources() []ExternalSource {
	var sources []ExternalSource
	if c.ForecastEntity1 != "" {
		sources = append(sources, ExternalSource{Slot: 1, EntityID: c.ForecastEntity1, Name: c.ForecastEntity1Name})
	}
	if c.ForecastEntity2 != "" {
		sources = append(sources, ExternalSource{Slot: 2, EntityID: c.ForecastEntity2, Name: c.ForecastEntity2Name})
	}
	return sources
}

// Location resolves the configured timezone, falling back to time.Local
func (c ComparisonConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			FallbackURL:     getEnv("DATABASE_FALLBACK_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		HomeAssistant: HomeAssistantConfig{
			BaseURL:    getEnv("HA_BASE_URL", "http://homeassistant.local:8123"),
			Token:      getEnv("HA_TOKEN", ""),
			Timeout:    getEnvAsDuration("HA_TIMEOUT", "10s"),
			RatePerSec: getEnvAsFloat("HA_RATE_PER_SEC", 5),
		},

		Recorder: RecorderConfig{
			DBPath:     getEnv("RECORDER_DB_PATH", "/config/home-assistant_v2.db"),
			MaxSamples: getEnvAsInt("RECORDER_MAX_SAMPLES", 1000),
		},

		Comparison: ComparisonConfig{
			YieldEntity:         getEnv("SFML_YIELD_ENTITY", ""),
			ForecastEntity1:     getEnv("FORECAST_ENTITY_1", ""),
			ForecastEntity1Name: getEnv("FORECAST_ENTITY_1_NAME", "External 1"),
			ForecastEntity2:     getEnv("FORECAST_ENTITY_2", ""),
			ForecastEntity2Name: getEnv("FORECAST_ENTITY_2_NAME", "External 2"),
			RetentionDays:       getEnvAsInt("FORECAST_RETENTION_DAYS", 30),
			BackfillDays:        getEnvAsInt("BACKFILL_DAYS", 7),
			MorningSchedule:     getEnv("MORNING_SCHEDULE", "0 0 6 * * *"),
			EveningSchedule:     getEnv("EVENING_SCHEDULE", "0 0 22 * * *"),
			Timezone:            getEnv("TIMEZONE", "Local"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Comparison.RetentionDays < 1 {
		return fmt.Errorf("FORECAST_RETENTION_DAYS must be at least 1")
	}

	if c.Comparison.BackfillDays < 1 {
		return fmt.Errorf("BACKFILL_DAYS must be at least 1")
	}

	if tz := c.Comparison.Timezone; tz != "" && tz != "Local" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("TIMEZONE %q is invalid: %w", tz, err)
		}
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
