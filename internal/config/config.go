package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Action log drivers accepted in ACTION_LOG_DRIVER.
const (
	ActionLogNone   = "none"
	ActionLogMongo  = "mongo"
	ActionLogSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	AppEnv          string
	Debug           bool
	Version         string
	SentryDSN       string
	DefaultLanguage string

	BackendBaseURL   string
	BackendToken     string
	BackendTimeout   time.Duration
	BackendRateLimit int
	EndpointsFile    string

	PageSize        int
	RefreshInterval time.Duration
	SettleDelay     time.Duration

	BotToken  string
	ChannelID int64

	ConsoleAddr           string
	ConsoleJWTSecret      string
	ConsoleAllowedOrigins []string

	ActionLogDriver string
	MongoDBURI      string
	MongoDBDatabase string
	SQLitePath      string
}

// BotEnabled reports whether the Telegram front-end should run.
func (c *Config) BotEnabled() bool { return c.BotToken != "" }

// ConsoleEnabled reports whether the HTTP console should run.
func (c *Config) ConsoleEnabled() bool { return c.ConsoleAddr != "" }

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	debug, _ := strconv.ParseBool(getEnv("DEBUG", "false"))

	channelIDStr := getEnv("CHANNEL_ID", "")
	channelID, err := strconv.ParseInt(channelIDStr, 10, 64)
	if err != nil && channelIDStr != "" {
		return nil, fmt.Errorf("invalid CHANNEL_ID: %w", err)
	}

	backendTimeout, err := time.ParseDuration(getEnv("BACKEND_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_TIMEOUT: %w", err)
	}
	rateLimit, err := strconv.Atoi(getEnv("BACKEND_RATE_LIMIT", "0"))
	if err != nil || rateLimit < 0 {
		return nil, fmt.Errorf("invalid BACKEND_RATE_LIMIT: %q", getEnv("BACKEND_RATE_LIMIT", ""))
	}
	pageSize, err := strconv.Atoi(getEnv("PAGE_SIZE", "20"))
	if err != nil || pageSize < 1 {
		return nil, fmt.Errorf("invalid PAGE_SIZE: %q", getEnv("PAGE_SIZE", ""))
	}
	refresh, err := time.ParseDuration(getEnv("REFRESH_INTERVAL", "30s"))
	if err != nil || refresh <= 0 {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %q", getEnv("REFRESH_INTERVAL", ""))
	}
	settle, err := time.ParseDuration(getEnv("SETTLE_DELAY", "500ms"))
	if err != nil || settle < 0 {
		return nil, fmt.Errorf("invalid SETTLE_DELAY: %q", getEnv("SETTLE_DELAY", ""))
	}

	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Debug:           debug,
		Version:         getEnv("VERSION", "dev"),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),

		BackendBaseURL:   strings.TrimRight(getEnv("BACKEND_BASE_URL", ""), "/"),
		BackendToken:     getEnv("BACKEND_TOKEN", ""),
		BackendTimeout:   backendTimeout,
		BackendRateLimit: rateLimit,
		EndpointsFile:    getEnv("ENDPOINTS_FILE", ""),

		PageSize:        pageSize,
		RefreshInterval: refresh,
		SettleDelay:     settle,

		BotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChannelID: channelID,

		ConsoleAddr:           getEnv("CONSOLE_ADDR", ""),
		ConsoleJWTSecret:      getEnv("CONSOLE_JWT_SECRET", ""),
		ConsoleAllowedOrigins: splitList(getEnv("CONSOLE_ALLOWED_ORIGINS", "http://localhost:3000")),

		ActionLogDriver: strings.ToLower(getEnv("ACTION_LOG_DRIVER", ActionLogNone)),
		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", ""),
		SQLitePath:      getEnv("SQLITE_PATH", "reviewdesk.db"),
	}

	if cfg.BackendBaseURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if !cfg.BotEnabled() && !cfg.ConsoleEnabled() {
		return nil, fmt.Errorf("either TELEGRAM_BOT_TOKEN or CONSOLE_ADDR is required")
	}
	if cfg.BotEnabled() && cfg.ChannelID == 0 {
		return nil, fmt.Errorf("CHANNEL_ID is required when the bot is enabled")
	}
	if cfg.ConsoleEnabled() && cfg.ConsoleJWTSecret == "" {
		return nil, fmt.Errorf("CONSOLE_JWT_SECRET is required when the console is enabled")
	}
	switch cfg.ActionLogDriver {
	case ActionLogNone, ActionLogSQLite:
	case ActionLogMongo:
		if cfg.MongoDBURI == "" {
			return nil, fmt.Errorf("MONGODB_URI is required")
		}
		if cfg.MongoDBDatabase == "" {
			return nil, fmt.Errorf("MONGODB_DATABASE is required")
		}
	default:
		return nil, fmt.Errorf("unknown ACTION_LOG_DRIVER %q", cfg.ActionLogDriver)
	}
	if cfg.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}
	if cfg.BackendToken == "" {
		log.Println("Warning: BACKEND_TOKEN is not set, admin API calls will be anonymous")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
