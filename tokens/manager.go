package tokens

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"
)

// TokenFetcher запрашивает новый сессионный токен у бэкенда.
type TokenFetcher func() (accessToken string, expiresIn time.Duration, err error)

// DefaultRefreshWindow — запас до истечения токена, при котором Get
// уже меняет его на свежий, если окно не задано явно.
const DefaultRefreshWindow = 5 * time.Minute

// Manager управляет сессионным токеном бэкенда: отдаёт сохранённый,
// пока тот жив, и обменивает его на свежий, когда до истечения
// остаётся меньше refreshWindow. Сессионный токен одноразовый, половины
// с refresh-токеном у него нет, поэтому обновление — всегда новый обмен
// по API-ключу.
type Manager struct {
	store         TokenStore
	getToken      TokenFetcher
	refreshWindow time.Duration
	mu            sync.Mutex
}

// NewManager создаёт менеджер сессионного токена. Неположительное окно
// заменяется на DefaultRefreshWindow.
func NewManager(store TokenStore, getToken TokenFetcher, refreshWindow time.Duration) *Manager {
	if refreshWindow <= 0 {
		refreshWindow = DefaultRefreshWindow
	}
	return &Manager{
		store:         store,
		getToken:      getToken,
		refreshWindow: refreshWindow,
	}
}

// Get возвращает сессионный токен, обновляя его при необходимости.
func (manager *Manager) Get(ctx context.Context) (Token, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}

	manager.mu.Lock()
	defer manager.mu.Unlock()

	token, err := manager.store.LoadToken()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Token{}, err
		}
	}

	if token != nil && !manager.expiringSoon(token) {
		return *token, nil
	}

	if err := ctx.Err(); err != nil {
		return Token{}, err
	}

	accessToken, expiresIn, err := manager.getToken()
	if err != nil {
		return Token{}, err
	}

	newToken := Token{
		Access:    accessToken,
		ExpiresAt: time.Now().Add(expiresIn),
	}

	if err := manager.store.SaveToken(newToken); err != nil {
		return Token{}, err
	}

	return newToken, nil
}

func (manager *Manager) expiringSoon(token *Token) bool {
	return token.ExpiresAt.Before(time.Now().Add(manager.refreshWindow))
}
