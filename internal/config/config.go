package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	BaseURL       string
	LookupTimeout time.Duration
	PopupTimeout  time.Duration
	SettleDelay   time.Duration
	RateLimitMin  time.Duration
	RateLimitMax  time.Duration
}

type BrowserConfig struct {
	Headless          bool
	LookupTimeout     time.Duration
	NavigationTimeout time.Duration
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	Locale            string
}

type StorageConfig struct {
	DataDir string
	Format  string // csv, json, both
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			BaseURL:       getEnvOrDefault("SCRAPER_BASE_URL", "https://www.flipkart.com"),
			LookupTimeout: getDurationOrDefault("SCRAPER_LOOKUP_TIMEOUT", 10*time.Second),
			PopupTimeout:  getDurationOrDefault("SCRAPER_POPUP_TIMEOUT", 5*time.Second),
			SettleDelay:   getDurationOrDefault("SCRAPER_SETTLE_DELAY", 2*time.Second),
			RateLimitMin:  getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 5*time.Second),
			RateLimitMax:  getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 30*time.Second),
		},
		Browser: BrowserConfig{
			Headless:          getBoolOrDefault("BROWSER_HEADLESS", true),
			LookupTimeout:     getDurationOrDefault("BROWSER_LOOKUP_TIMEOUT", 10*time.Second),
			NavigationTimeout: getDurationOrDefault("BROWSER_NAVIGATION_TIMEOUT", 30*time.Second),
			UserAgent:         getEnvOrDefault("BROWSER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			ViewportWidth:     getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight:    getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:            getEnvOrDefault("BROWSER_LOCALE", "en-IN"),
		},
		Storage: StorageConfig{
			DataDir: getEnvOrDefault("STORAGE_DATA_DIR", "data"),
			Format:  getEnvOrDefault("STORAGE_FORMAT", "csv"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "flipkart_scraper"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.LookupTimeout <= 0 {
		return fmt.Errorf("SCRAPER_LOOKUP_TIMEOUT must be positive")
	}
	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}
	switch c.Storage.Format {
	case "csv", "json", "both":
	default:
		return fmt.Errorf("STORAGE_FORMAT must be csv, json or both")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
