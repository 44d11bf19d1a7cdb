package tokens

import "time"

// Token описывает сессионный токен бэкенда дашборда.
type Token struct {
	Access    string
	ExpiresAt time.Time
}

// TokenStore описывает хранилище сессионного токена.
type TokenStore interface {
	LoadToken() (*Token, error)
	SaveToken(Token) error
}
