package tokens

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const TOKEN_FILE = ".secrets/cb_session.json"

// FileTokenStore сохраняет сессионный токен в JSON файле.
type FileTokenStore struct {
	Path string
}

type fileToken struct {
	Access    string `json:"access"`
	ExpiresAt string `json:"expires_at"`
}

func (store FileTokenStore) tokenPath() string {
	if strings.TrimSpace(store.Path) == "" {
		return TOKEN_FILE
	}
	return store.Path
}

// LoadToken загружает сессионный токен из JSON файла.
func (store FileTokenStore) LoadToken() (*Token, error) {
	path := store.tokenPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load session token: read file: %w", err)
	}

	var payload fileToken
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("load session token: decode json: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339, payload.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("load session token: parse expires_at: %w", err)
	}

	return &Token{
		Access:    payload.Access,
		ExpiresAt: expiresAt,
	}, nil
}

// SaveToken сохраняет сессионный токен в JSON файл.
func (store FileTokenStore) SaveToken(token Token) error {
	path := store.tokenPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save session token: create dir: %w", err)
	}

	payload := fileToken{
		Access:    token.Access,
		ExpiresAt: token.ExpiresAt.Format(time.RFC3339),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("save session token: encode json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("save session token: write file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("save session token: chmod file: %w", err)
	}

	return nil
}
