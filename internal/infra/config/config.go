package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for account documents.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Delivery channels for due reminders.
const (
	ChannelTelegram = "telegram"
	ChannelFCM      = "fcm"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken           string
	DatabaseURL             string
	StoreBackend            string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	DeliveryChannel         string
	FirebaseCredentialsFile string
	Location                *time.Location
	LogLevel                string
	Environment             string
	CronSpecDailyPlan       string // Plans tomorrow's reminders
	CronSpecDispatch        string // Sends reminders that are due
	SendRatePerSecond       float64
	DispatchBatchSize       int
	DraftDebounce           time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.StoreBackend = strings.ToLower(envOr("STORE_BACKEND", BackendPostgres))
	switch cfg.StoreBackend {
	case BackendPostgres, BackendRedis, BackendMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}

	cfg.RedisAddr = envOr("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = strconv.Atoi(envOr("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.DeliveryChannel = strings.ToLower(envOr("DELIVERY_CHANNEL", ChannelTelegram))
	cfg.FirebaseCredentialsFile = os.Getenv("FIREBASE_CREDENTIALS_FILE")
	switch cfg.DeliveryChannel {
	case ChannelTelegram:
	case ChannelFCM:
		if cfg.FirebaseCredentialsFile == "" {
			return nil, fmt.Errorf("FIREBASE_CREDENTIALS_FILE is not set")
		}
	default:
		return nil, fmt.Errorf("invalid DELIVERY_CHANNEL %q", cfg.DeliveryChannel)
	}

	cfg.Location = time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if cfg.Location, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))

	cfg.CronSpecDailyPlan = envOr("CRON_SPEC_DAILY_PLAN", "0 20 * * *") // Default: 8 PM daily
	cfg.CronSpecDispatch = envOr("CRON_SPEC_DISPATCH", "* * * * *")     // Default: every minute

	if cfg.SendRatePerSecond, err = strconv.ParseFloat(envOr("SEND_RATE_PER_SECOND", "25"), 64); err != nil {
		return nil, fmt.Errorf("invalid SEND_RATE_PER_SECOND: %w", err)
	}
	if cfg.DispatchBatchSize, err = strconv.Atoi(envOr("DISPATCH_BATCH_SIZE", "100")); err != nil || cfg.DispatchBatchSize <= 0 {
		return nil, fmt.Errorf("invalid DISPATCH_BATCH_SIZE %q", os.Getenv("DISPATCH_BATCH_SIZE"))
	}
	if cfg.DraftDebounce, err = time.ParseDuration(envOr("DRAFT_DEBOUNCE", "1s")); err != nil {
		return nil, fmt.Errorf("invalid DRAFT_DEBOUNCE: %w", err)
	}

	return cfg, nil
}

// RequireServe checks the settings only the long-running bot needs.
func (c *AppConfig) RequireServe() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is not set")
	}
	return c.RequireDatabase()
}

// RequireDatabase checks DATABASE_URL. Accounts and the outbox always live in
// Postgres unless the memory backend is selected.
func (c *AppConfig) RequireDatabase() error {
	if c.StoreBackend != BackendMemory && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
