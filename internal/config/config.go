package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Export   ExportConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	AllowedOrigins  []string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	UserAgent      string
}

type ScraperConfig struct {
	BaseURL         string
	RateLimitMin    time.Duration
	RateLimitMax    time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	ConcurrentLimit int
	MaxPages        int
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	Stream       string
	PollInterval time.Duration
	BatchSize    int
	StreamMaxLen int64
}

type ExportConfig struct {
	XLSXPath        string
	SpreadsheetID   string
	CredentialsFile string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads the configuration from the environment. Each env file that
// exists is loaded first; variables already set in the environment win.
// With no arguments ".env" is tried.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            envString("SERVER_PORT", "8080"),
			Host:            envString("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     envDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    envDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: envDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  envDuration("SERVER_REQUEST_TIMEOUT", 5*time.Minute),
			AllowedOrigins:  envList("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Browser: BrowserConfig{
			Headless:       envBool("BROWSER_HEADLESS", true),
			Timeout:        envDuration("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  envInt("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: envInt("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: envString("BROWSER_ACCEPT_LANGUAGE", "nl-NL,nl;q=0.9,en;q=0.8"),
			TimezoneID:     envString("BROWSER_TIMEZONE", "Europe/Amsterdam"),
			Locale:         envString("BROWSER_LOCALE", "nl-NL"),
			UserAgent:      envString("BROWSER_USER_AGENT", defaultUserAgent),
		},
		Scraper: ScraperConfig{
			BaseURL:         envString("SCRAPER_BASE_URL", "https://www.elektramat.nl"),
			RateLimitMin:    envDuration("SCRAPER_RATE_LIMIT_MIN", 1*time.Second),
			RateLimitMax:    envDuration("SCRAPER_RATE_LIMIT_MAX", 3*time.Second),
			MaxRetries:      envInt("SCRAPER_MAX_RETRIES", 3),
			RetryDelay:      envDuration("SCRAPER_RETRY_DELAY", 2*time.Second),
			ConcurrentLimit: envInt("SCRAPER_CONCURRENT_LIMIT", 3),
			MaxPages:        envInt("SCRAPER_MAX_PAGES", 50),
		},
		Database: DatabaseConfig{
			Enabled:  envBool("DB_ENABLED", false),
			Host:     envString("DB_HOST", "localhost"),
			Port:     envInt("DB_PORT", 5432),
			User:     envString("DB_USER", "postgres"),
			Password: envString("DB_PASSWORD", ""),
			DBName:   envString("DB_NAME", "elektra_scraper"),
			SSLMode:  envString("DB_SSL_MODE", "disable"),
			MaxConns: int32(envInt("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Enabled:      envBool("REDIS_ENABLED", false),
			Addr:         envString("REDIS_ADDR", "localhost:6379"),
			Password:     envString("REDIS_PASSWORD", ""),
			DB:           envInt("REDIS_DB", 0),
			Stream:       envString("REDIS_STREAM", "stream:product_extracted"),
			PollInterval: envDuration("REDIS_POLL_INTERVAL", 5*time.Second),
			BatchSize:    envInt("REDIS_BATCH_SIZE", 100),
			StreamMaxLen: int64(envInt("REDIS_STREAM_MAXLEN", 10000)),
		},
		Export: ExportConfig{
			XLSXPath:        envString("EXPORT_XLSX_PATH", "elektramat_products.xlsx"),
			SpreadsheetID:   envString("GOOGLE_SPREADSHEET_ID", ""),
			CredentialsFile: envString("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		},
		Logging: LoggingConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Scraper.ConcurrentLimit >= 1, "SCRAPER_CONCURRENT_LIMIT must be at least 1")
	check(c.Scraper.RateLimitMin <= c.Scraper.RateLimitMax, "SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	check(c.Scraper.MaxPages >= 1, "SCRAPER_MAX_PAGES must be at least 1")
	check(!c.Database.Enabled || c.Database.DBName != "", "DB_NAME is required when the database is enabled")
	check(!c.Redis.Enabled || c.Database.Enabled, "REDIS_ENABLED requires DB_ENABLED: events are relayed from the outbox table")

	return errors.Join(errs...)
}

// SheetsEnabled reports whether a Google Sheets target is configured.
func (c *ExportConfig) SheetsEnabled() bool {
	return c.SpreadsheetID != ""
}

// lookup parses the variable named key. Unset, empty and unparsable values
// all yield def.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func envString(key, def string) string {
	return lookup(key, def, func(s string) (string, error) { return s, nil })
}

func envInt(key string, def int) int {
	return lookup(key, def, strconv.Atoi)
}

func envBool(key string, def bool) bool {
	return lookup(key, def, strconv.ParseBool)
}

func envDuration(key string, def time.Duration) time.Duration {
	return lookup(key, def, time.ParseDuration)
}

// envList splits a comma separated value, dropping empty items.
func envList(key string, def []string) []string {
	return lookup(key, def, func(s string) ([]string, error) {
		var items []string
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			return nil, errors.New("empty list")
		}
		return items, nil
	})
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
