package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the relay bot.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	TelegramBotToken string
	TelegramSecret   string
	TelegramAPIBase  string

	GeminiAPIKey string
	GeminiModel  string
	AITimeout    time.Duration

	TavilyAPIKey      string
	BraveAPIKey       string
	PexelsAPIKey      string
	UnsplashAccessKey string

	DatabaseURL     string
	MemoryRetention time.Duration

	OutboundRate   float64
	OutboundBurst  int
	ChunkDelay     time.Duration
	BroadcastDelay time.Duration
	NotifyDelay    time.Duration

	DailyCronSpec string
	DailyEnabled  bool

	PromptTTL   time.Duration
	SeedAdminID int64
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "relaybot"),
		TelegramBotToken:  trimmedEnv("TELEGRAM_BOT_TOKEN"),
		TelegramSecret:    trimmedEnv("TELEGRAM_SECRET"),
		TelegramAPIBase:   envOrDefault("TELEGRAM_API_BASE", "https://api.telegram.org"),
		GeminiAPIKey:      trimmedEnv("GOOGLE_API_KEY"),
		GeminiModel:       envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		TavilyAPIKey:      trimmedEnv("TAVILY_API_KEY"),
		BraveAPIKey:       trimmedEnv("BRAVE_SEARCH_API_KEY"),
		PexelsAPIKey:      trimmedEnv("PEXELS_API_KEY"),
		UnsplashAccessKey: trimmedEnv("UNSPLASH_ACCESS_KEY"),
		DatabaseURL:       trimmedEnv("DATABASE_URL"),
		// The conversation window users are told about in /help.
		MemoryRetention: 2 * time.Hour,
		AITimeout:       45 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		// Telegram documents roughly 30 messages/second across all chats.
		OutboundRate:   25,
		OutboundBurst:  5,
		ChunkDelay:     100 * time.Millisecond,
		BroadcastDelay: 100 * time.Millisecond,
		NotifyDelay:    200 * time.Millisecond,
		DailyCronSpec:  envOrDefault("DAILY_CRON", "0 6 * * *"),
		DailyEnabled:   true,
		PromptTTL:      10 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryRetention, err = durationFromEnv("MEMORY_RETENTION", cfg.MemoryRetention)
	if err != nil {
		return Config{}, err
	}
	cfg.AITimeout, err = durationFromEnv("AI_TIMEOUT", cfg.AITimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ChunkDelay, err = durationFromEnv("OUTBOUND_CHUNK_DELAY", cfg.ChunkDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.BroadcastDelay, err = durationFromEnv("BROADCAST_DELAY", cfg.BroadcastDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.NotifyDelay, err = durationFromEnv("NOTIFY_DELAY", cfg.NotifyDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.PromptTTL, err = durationFromEnv("PROMPT_TTL", cfg.PromptTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.OutboundRate, err = floatFromEnv("OUTBOUND_RATE", cfg.OutboundRate)
	if err != nil {
		return Config{}, err
	}
	cfg.OutboundBurst, err = intFromEnv("OUTBOUND_BURST", cfg.OutboundBurst)
	if err != nil {
		return Config{}, err
	}
	cfg.DailyEnabled, err = boolFromEnv("DAILY_ENABLED", cfg.DailyEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.SeedAdminID, err = int64FromEnv("SEED_ADMIN_ID", 0)
	if err != nil {
		return Config{}, err
	}

	if cfg.MemoryRetention < time.Minute {
		return Config{}, fmt.Errorf("MEMORY_RETENTION must be at least 1m")
	}
	if cfg.AITimeout < time.Second {
		return Config{}, fmt.Errorf("AI_TIMEOUT must be at least 1s")
	}
	if cfg.OutboundRate <= 0 {
		return Config{}, fmt.Errorf("OUTBOUND_RATE must be positive")
	}
	if cfg.OutboundBurst <= 0 {
		return Config{}, fmt.Errorf("OUTBOUND_BURST must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
