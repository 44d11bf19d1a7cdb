package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cb-sidebar-logger/backend"
	"cb-sidebar-logger/config"
	"cb-sidebar-logger/service"
)

type stubBackend struct{}

func (stubBackend) TopTippers(context.Context) ([]backend.Tipper, error) {
	return []backend.Tipper{{Username: "whale", TotalTokens: 900}}, nil
}
func (stubBackend) TokenBalance(context.Context) (int, error) { return 42, nil }
func (stubBackend) UserStats(_ context.Context, username string) (backend.UserStats, error) {
	return backend.UserStats{UserStatus: "Regular"}, nil
}
func (stubBackend) Conversations(context.Context) ([]backend.Conversation, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *service.Session) {
	t.Helper()

	cfg := config.Config{
		Server:   config.ServerConfig{Addr: ":0", AllowedOrigins: []string{"*"}},
		Pipeline: config.PipelineConfig{MaxEvents: 100, ChanBuffer: 64, StatsLogEvery: time.Hour},
		Cache: config.CacheConfig{
			UserStatsTTL:     5 * time.Minute,
			ConversationsTTL: 30 * time.Second,
			TippersTTL:       10 * time.Second,
		},
		Refresh: config.RefreshConfig{Delay: time.Second, TriggerTypes: []string{"tip"}},
	}

	session := service.Attach(context.Background(), cfg, stubBackend{})
	t.Cleanup(session.Detach)

	return NewServer(cfg.Server, session), session
}

func ingestAndWait(t *testing.T, session *service.Session, raw map[string]any) {
	t.Helper()
	before := len(session.Events())
	session.HandleEvent(context.Background(), raw)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(session.Events()) > before {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event was not ingested")
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestEventsEndpointReturnsFilteredFeed(t *testing.T) {
	s, session := newTestServer(t)

	ingestAndWait(t, session, map[string]any{"type": "tip", "message": "BigSpender tipped 50 tokens"})
	ingestAndWait(t, session, map[string]any{"type": "chat", "message": "user: hi"})

	rec := doRequest(t, s, http.MethodGet, "/api/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Events []struct {
			ID   int64  `json:"id"`
			Type string `json:"type"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(payload.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(payload.Events))
	}
	// новые сверху
	if payload.Events[0].Type != "chat" || payload.Events[1].Type != "tip" {
		t.Fatalf("expected newest-first order, got %+v", payload.Events)
	}
}

func TestFilterMutationAffectsEvents(t *testing.T) {
	s, session := newTestServer(t)

	ingestAndWait(t, session, map[string]any{"type": "tip", "username": "a", "amount": float64(5)})
	ingestAndWait(t, session, map[string]any{"type": "chat", "message": "user: hi"})

	rec := doRequest(t, s, http.MethodPost, "/api/filters/tippers-only", `{"enabled":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/events", "")
	var payload struct {
		Events []struct {
			Type string `json:"type"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Events) != 1 || payload.Events[0].Type != "tip" {
		t.Fatalf("expected only tip events, got %+v", payload.Events)
	}
}

func TestMinTipAmountValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/filters/min-tip-amount", `{"enabled":true,"amount":-5}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative amount, got %d", rec.Code)
	}
}

func TestToggleCategoryRejectsUnknown(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/filters/category", `{"category":"bogus"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category, got %d", rec.Code)
	}
}

func TestFiltersExportImportOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPut, "/api/filters/", `{"message_types":["tip"],"sort_order":"oldest","min_tip_amount":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/filters/", "")
	var payload struct {
		Filters struct {
			SortOrder    string `json:"sort_order"`
			MinTipAmount int    `json:"min_tip_amount"`
		} `json:"filters"`
		ActiveCount int `json:"active_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Filters.SortOrder != "oldest" || payload.Filters.MinTipAmount != 10 {
		t.Fatalf("import did not apply: %+v", payload)
	}
	if payload.ActiveCount != 1 {
		t.Fatalf("expected 1 active filter (sort), got %d", payload.ActiveCount)
	}
}

func TestClearEvents(t *testing.T) {
	s, session := newTestServer(t)

	ingestAndWait(t, session, map[string]any{"type": "chat", "message": "a: b"})

	rec := doRequest(t, s, http.MethodDelete, "/api/events", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(session.Events()) != 0 {
		t.Fatalf("event log must be empty after DELETE")
	}
}

func TestTopTippersEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/tippers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "whale") {
		t.Fatalf("expected backend tippers in response: %s", rec.Body.String())
	}
}

func TestSSEStreamDeliversStoredEvents(t *testing.T) {
	s, session := newTestServer(t)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events/stream")
	if err != nil {
		t.Fatalf("connect sse: %v", err)
	}
	defer resp.Body.Close()

	// даём клиенту зарегистрироваться в hub
	time.Sleep(50 * time.Millisecond)

	session.HandleEvent(context.Background(), map[string]any{"type": "tip", "username": "live", "amount": float64(7)})

	lineCh := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data: ") {
				lineCh <- strings.TrimSpace(strings.TrimPrefix(line, "data: "))
				return
			}
		}
	}()

	select {
	case data := <-lineCh:
		if !strings.Contains(data, `"live"`) {
			t.Fatalf("unexpected sse payload: %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sse event was not delivered")
	}
}
