package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Only this package reads environment variables.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (snapshot store, optional)
	Database DatabaseConfig

	// Redis (advisory result cache)
	Redis RedisConfig

	// External surfaces
	Fubon     FubonConfig
	TWSE      TWSEConfig
	WebDriver WebDriverConfig

	// Result cache retention
	CacheTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration for the snapshot store.
type DatabaseConfig struct {
	URL     string
	Enabled bool

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FubonConfig holds the broker-ranking site endpoints and wait bounds.
type FubonConfig struct {
	BaseURL    string
	MarkerWait time.Duration // ranking page: wait for 買超券商 marker
	TableWait  time.Duration // branch page: wait for data table per pagination step
	PageDelay  time.Duration // pause after clicking 下一頁
	MaxPages   int           // pagination hard stop
	RateLimit  float64       // requests per second against the site
}

// TWSEConfig holds the stock code lookup endpoint.
type TWSEConfig struct {
	BaseURL string
}

// WebDriverConfig holds the chromedriver endpoint settings.
type WebDriverConfig struct {
	URL            string // e.g. http://localhost:9515
	SessionTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Fubon: FubonConfig{
			BaseURL:    getEnv("FUBON_BASE_URL", "https://fubon-ebrokerdj.fbs.com.tw"),
			MarkerWait: getEnvAsDuration("FUBON_MARKER_WAIT", "10s"),
			TableWait:  getEnvAsDuration("FUBON_TABLE_WAIT", "3s"),
			PageDelay:  getEnvAsDuration("FUBON_PAGE_DELAY", "500ms"),
			MaxPages:   getEnvAsInt("FUBON_MAX_PAGES", 60),
			RateLimit:  getEnvAsFloat("FUBON_RATE_LIMIT", 2.0),
		},

		TWSE: TWSEConfig{
			BaseURL: getEnv("TWSE_BASE_URL", "https://openapi.twse.com.tw/v1"),
		},

		WebDriver: WebDriverConfig{
			URL:            getEnv("WEBDRIVER_URL", "http://localhost:9515"),
			SessionTimeout: getEnvAsDuration("WEBDRIVER_SESSION_TIMEOUT", "60s"),
		},

		// Matches the 7-day retention of the source site's data.
		CacheTTL: getEnvAsDuration("CACHE_TTL", "168h"),

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_ENABLED=true")
	}

	if c.Fubon.MaxPages <= 0 {
		return fmt.Errorf("FUBON_MAX_PAGES must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

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
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
