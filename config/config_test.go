package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CB_FEED_URL", "wss://feed.example.com/events")
	t.Setenv("CB_BACKEND_URL", "https://backend.example.com")
	t.Setenv("CB_API_KEY", "secret")
}

func TestLoadParsesRequiredEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CB_ROOM", "myroom")
	t.Setenv("REFRESH_TRIGGER_TYPES", "tip, media_purchase")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Feed.URL != "wss://feed.example.com/events" || cfg.Feed.Room != "myroom" {
		t.Fatalf("unexpected feed config: %+v", cfg.Feed)
	}

	expectedTriggers := []string{"tip", "media_purchase"}
	if len(cfg.Refresh.TriggerTypes) != len(expectedTriggers) {
		t.Fatalf("expected %d trigger types, got %d", len(expectedTriggers), len(cfg.Refresh.TriggerTypes))
	}
	for i, typ := range expectedTriggers {
		if cfg.Refresh.TriggerTypes[i] != typ {
			t.Fatalf("trigger %d mismatch: expected %s got %s", i, typ, cfg.Refresh.TriggerTypes[i])
		}
	}

	if cfg.Pipeline.MaxEvents != 1000 || cfg.Cache.UserStatsTTL != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Pipeline, cfg.Cache)
	}
	if cfg.Cache.TippersTTL != 10*time.Second || cfg.Cache.ConversationsTTL != 30*time.Second {
		t.Fatalf("unexpected cache defaults: %+v", cfg.Cache)
	}
}

func TestLoadValidatesMissingEnv(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when env vars are missing")
	}
}

func TestLoadRejectsNonWebsocketFeedURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CB_FEED_URL", "https://feed.example.com/events")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-websocket feed url")
	}
}

func TestLoadClampsConversationsTTL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CACHE_CONVERSATIONS_TTL", "10m")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for conversations ttl out of range")
	}

	t.Setenv("CACHE_CONVERSATIONS_TTL", "2m")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Cache.ConversationsTTL != 2*time.Minute {
		t.Fatalf("unexpected conversations ttl: %v", cfg.Cache.ConversationsTTL)
	}
}

func TestLoadOverridesDurations(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REFRESH_DEBOUNCE_DELAY", "500ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Refresh.Delay != 500*time.Millisecond {
		t.Fatalf("unexpected refresh delay: %v", cfg.Refresh.Delay)
	}
}

func TestLoadTokenRefreshWindow(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend.TokenRefreshWindow != 5*time.Minute {
		t.Fatalf("unexpected default refresh window: %v", cfg.Backend.TokenRefreshWindow)
	}

	t.Setenv("CB_TOKEN_REFRESH_WINDOW", "90s")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend.TokenRefreshWindow != 90*time.Second {
		t.Fatalf("unexpected refresh window: %v", cfg.Backend.TokenRefreshWindow)
	}
}
