package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GetSessionToken обменивает API-ключ на короткоживущий сессионный
// токен бэкенда дашборда.
func GetSessionToken(baseURL, apiKey string) (accessToken string, expiresIn time.Duration, err error) {
	form := url.Values{}
	form.Set("api_key", strings.TrimSpace(apiKey))
	form.Set("grant_type", "api_key")

	endpoint := strings.TrimSuffix(baseURL, "/") + "/api/auth/session"
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("backend auth: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("backend auth: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("backend auth: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("backend auth: decode response: %w", err)
	}

	return payload.AccessToken, time.Duration(payload.ExpiresIn) * time.Second, nil
}
