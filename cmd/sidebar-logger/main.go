package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cb-sidebar-logger/api"
	"cb-sidebar-logger/auth"
	"cb-sidebar-logger/backend"
	"cb-sidebar-logger/config"
	"cb-sidebar-logger/feed"
	"cb-sidebar-logger/service"
	"cb-sidebar-logger/tokens"
)

// tokenSource адаптирует менеджер токенов к интерфейсу REST-клиента.
type tokenSource struct {
	manager *tokens.Manager
}

func (ts tokenSource) Access(ctx context.Context) (string, error) {
	token, err := ts.manager.Get(ctx)
	if err != nil {
		return "", err
	}
	return token.Access, nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := tokens.FileTokenStore{Path: cfg.Backend.TokenPath}
	manager := tokens.NewManager(store, func() (string, time.Duration, error) {
		return auth.GetSessionToken(cfg.Backend.BaseURL, cfg.Backend.APIKey)
	}, cfg.Backend.TokenRefreshWindow)

	remote := backend.NewClient(cfg.Backend, tokenSource{manager: manager})

	session := service.Attach(ctx, cfg, remote)
	defer session.Detach()

	client := feed.NewClient(cfg.Feed, session)
	server := api.NewServer(cfg.Server, session)

	errCh := make(chan error, 2)
	go func() { errCh <- client.Run(ctx) }()
	go func() { errCh <- server.Run(ctx) }()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("run failed: %v", err)
	}

	log.Println("shutting down...")
}
