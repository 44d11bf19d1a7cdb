package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config агрегирует значения конфигурации из переменных окружения.
type Config struct {
	Feed     FeedConfig
	Backend  BackendConfig
	Server   ServerConfig
	Pipeline PipelineConfig
	Cache    CacheConfig
	Refresh  RefreshConfig
}

// FeedConfig описывает подключение к сокету ленты событий.
type FeedConfig struct {
	URL          string
	Room         string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// BackendConfig описывает REST-бэкенд, восполняющий промахи кэша.
// TokenRefreshWindow — за сколько до истечения сессионный токен
// считается годным к обмену на свежий.
type BackendConfig struct {
	BaseURL            string
	APIKey             string
	RequestTimeout     time.Duration
	TokenPath          string
	TokenRefreshWindow time.Duration
}

// ServerConfig задаёт параметры HTTP API для сайдбара.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// PipelineConfig задаёт пределы журнала и очереди инжеста.
type PipelineConfig struct {
	MaxEvents     int
	ChanBuffer    int
	StatsLogEvery time.Duration
}

// CacheConfig задаёт времена жизни кэшей производных данных.
type CacheConfig struct {
	UserStatsTTL     time.Duration
	ConversationsTTL time.Duration
	TippersTTL       time.Duration
}

// RefreshConfig задаёт, какие типы событий запускают отложенное
// обновление данных с бэкенда и с какой паузой.
type RefreshConfig struct {
	Delay        time.Duration
	TriggerTypes []string
}

// Load читает переменные окружения и возвращает валидированную Config.
func Load() (Config, error) {
	cfg := Config{
		Feed: FeedConfig{
			URL:          strings.TrimSpace(os.Getenv("CB_FEED_URL")),
			Room:         strings.TrimSpace(os.Getenv("CB_ROOM")),
			ReconnectMin: time.Second,
			ReconnectMax: 30 * time.Second,
		},
		Backend: BackendConfig{
			BaseURL:            strings.TrimSpace(os.Getenv("CB_BACKEND_URL")),
			APIKey:             strings.TrimSpace(os.Getenv("CB_API_KEY")),
			RequestTimeout:     envDuration("CB_BACKEND_TIMEOUT", 10*time.Second),
			TokenPath:          strings.TrimSpace(os.Getenv("CB_TOKEN_PATH")),
			TokenRefreshWindow: envDuration("CB_TOKEN_REFRESH_WINDOW", 5*time.Minute),
		},
		Server: ServerConfig{
			Addr:           envString("DASHBOARD_ADDR", ":8787"),
			AllowedOrigins: splitAndTrim(envString("DASHBOARD_ALLOWED_ORIGINS", "http://localhost:5173")),
		},
		Pipeline: PipelineConfig{
			MaxEvents:     envInt("PIPELINE_MAX_EVENTS", 1000),
			ChanBuffer:    envInt("PIPELINE_CHAN_BUFFER", 4096),
			StatsLogEvery: envDuration("PIPELINE_STATS_EVERY", 5*time.Minute),
		},
		Cache: CacheConfig{
			UserStatsTTL:     envDuration("CACHE_USER_STATS_TTL", 5*time.Minute),
			ConversationsTTL: envDuration("CACHE_CONVERSATIONS_TTL", 30*time.Second),
			TippersTTL:       envDuration("CACHE_TIPPERS_TTL", 10*time.Second),
		},
		Refresh: RefreshConfig{
			Delay:        envDuration("REFRESH_DEBOUNCE_DELAY", 2*time.Second),
			TriggerTypes: splitAndTrim(envString("REFRESH_TRIGGER_TYPES", "tip,media_purchase")),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("требуется CB_FEED_URL")
	}
	if u, err := url.Parse(c.Feed.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("CB_FEED_URL должен быть ws:// или wss:// адресом")
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("требуется CB_BACKEND_URL")
	}
	if c.Backend.APIKey == "" {
		return fmt.Errorf("требуется CB_API_KEY")
	}
	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("Backend.RequestTimeout должен быть больше нуля")
	}
	if c.Backend.TokenRefreshWindow <= 0 {
		return fmt.Errorf("Backend.TokenRefreshWindow должен быть больше нуля")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("требуется DASHBOARD_ADDR")
	}

	if c.Pipeline.MaxEvents <= 0 {
		return fmt.Errorf("Pipeline.MaxEvents должен быть больше нуля")
	}
	if c.Pipeline.ChanBuffer <= 0 {
		return fmt.Errorf("Pipeline.ChanBuffer должен быть больше нуля")
	}
	if c.Pipeline.StatsLogEvery <= 0 {
		return fmt.Errorf("Pipeline.StatsLogEvery должен быть больше нуля")
	}

	if c.Cache.UserStatsTTL <= 0 {
		return fmt.Errorf("Cache.UserStatsTTL должен быть больше нуля")
	}
	if c.Cache.ConversationsTTL < 30*time.Second || c.Cache.ConversationsTTL > 2*time.Minute {
		return fmt.Errorf("Cache.ConversationsTTL должен быть в пределах 30s..2m")
	}
	if c.Cache.TippersTTL <= 0 {
		return fmt.Errorf("Cache.TippersTTL должен быть больше нуля")
	}

	if c.Refresh.Delay <= 0 {
		return fmt.Errorf("Refresh.Delay должен быть больше нуля")
	}
	if len(c.Refresh.TriggerTypes) == 0 {
		return fmt.Errorf("Refresh.TriggerTypes не может быть пустым")
	}

	return nil
}

func envString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
