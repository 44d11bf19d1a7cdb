package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cb-sidebar-logger/config"
)

// TokenSource отдаёт действующий сессионный токен для запросов.
type TokenSource interface {
	Access(ctx context.Context) (string, error)
}

// Client — тонкий REST-клиент бэкенда дашборда. Им восполняются
// промахи кэша; сам клиент ничего не кэширует и не повторяет запросы,
// политика повторов остаётся за вызывающим кодом.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewClient собирает клиента бэкенда.
func NewClient(cfg config.BackendConfig, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		tokens:  tokens,
	}
}

// Tipper — строка исторического топа типперов.
type Tipper struct {
	Username    string `json:"username"`
	TotalTokens int    `json:"total_tokens"`
}

// UserStats — накопленная статистика одного пользователя.
// Форма задана бэкендом и здесь не валидируется, только кэшируется.
type UserStats struct {
	UserStatus      string `json:"user_status"`
	TotalTips       int    `json:"total_tips"`
	TotalTipAmount  int    `json:"total_tip_amount"`
	LastTipTime     string `json:"last_tip_time"`
	LastMessageTime string `json:"last_message_time"`
}

// Conversation — строка списка диалогов.
type Conversation struct {
	FromUser        string `json:"from_user"`
	LastMessage     string `json:"last_message"`
	LastMessageTime string `json:"last_message_time"`
	UnreadCount     int    `json:"unread_count"`
}

// TopTippers возвращает исторический топ типперов комнаты.
func (c *Client) TopTippers(ctx context.Context) ([]Tipper, error) {
	var payload struct {
		Tippers []Tipper `json:"tippers"`
	}
	if err := c.getJSON(ctx, "/api/tippers", &payload); err != nil {
		return nil, err
	}
	return payload.Tippers, nil
}

// TokenBalance возвращает суммарное число токенов за всё время.
func (c *Client) TokenBalance(ctx context.Context) (int, error) {
	var payload struct {
		TotalTokens int `json:"total_tokens"`
	}
	if err := c.getJSON(ctx, "/api/tokens", &payload); err != nil {
		return 0, err
	}
	return payload.TotalTokens, nil
}

// UserStats возвращает статистику одного пользователя.
func (c *Client) UserStats(ctx context.Context, username string) (UserStats, error) {
	var payload UserStats
	path := "/api/users/" + url.PathEscape(username) + "/stats"
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return UserStats{}, err
	}
	return payload, nil
}

// Conversations возвращает список диалогов с непрочитанными счётчиками.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var payload []Conversation
	if err := c.getJSON(ctx, "/api/conversations", &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("backend: create request %s: %w", path, err)
	}

	if c.tokens != nil {
		access, err := c.tokens.Access(ctx)
		if err != nil {
			return fmt.Errorf("backend: session token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backend: %s: unexpected status %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: %s: decode response: %w", path, err)
	}

	return nil
}
