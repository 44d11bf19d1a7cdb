package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cb-sidebar-logger/filter"
	"cb-sidebar-logger/model"
	"cb-sidebar-logger/service"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.session.Visible()})
}

func (s *Server) handleClearEvents(w http.ResponseWriter, _ *http.Request) {
	s.session.ClearEvents()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFilters(w http.ResponseWriter, _ *http.Request) {
	cfg := s.session.Filters()
	writeJSON(w, http.StatusOK, map[string]any{
		"filters":      cfg,
		"active_count": cfg.ActiveFilterCount(),
	})
}

// handleImportFilters принимает полное состояние фильтра, например
// восстановленное из сохранённого экспорта.
func (s *Server) handleImportFilters(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	err = s.session.UpdateFilters(func(c *filter.Config) error {
		return c.Import(string(body))
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.handleGetFilters(w, r)
}

func (s *Server) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	s.session.ResetFilters()
	s.handleGetFilters(w, r)
}

func (s *Server) handleToggleCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category model.Category `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	switch req.Category {
	case model.CategoryTip, model.CategoryChat, model.CategorySystem:
	default:
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}

	_ = s.session.UpdateFilters(func(c *filter.Config) error {
		c.ToggleCategory(req.Category)
		return nil
	})

	s.handleGetFilters(w, r)
}

func (s *Server) handleSetSortOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Order filter.SortOrder `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	err := s.session.UpdateFilters(func(c *filter.Config) error {
		return c.SetSortOrder(req.Order)
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.handleGetFilters(w, r)
}

func (s *Server) handleTippersOnly(w http.ResponseWriter, r *http.Request) {
	s.handleBoolFilter(w, r, func(c *filter.Config, on bool) { c.SetTippersOnly(on) })
}

func (s *Server) handleModeratorsOnly(w http.ResponseWriter, r *http.Request) {
	s.handleBoolFilter(w, r, func(c *filter.Config, on bool) { c.SetModeratorsOnly(on) })
}

func (s *Server) handleBoolFilter(w http.ResponseWriter, r *http.Request, set func(*filter.Config, bool)) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	_ = s.session.UpdateFilters(func(c *filter.Config) error {
		set(c, req.Enabled)
		return nil
	})

	s.handleGetFilters(w, r)
}

func (s *Server) handleMinTipAmount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
		Amount  int  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	err := s.session.UpdateFilters(func(c *filter.Config) error {
		c.SetTipAmountFilterEnabled(req.Enabled)
		return c.SetMinTipAmount(req.Amount)
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.handleGetFilters(w, r)
}

func (s *Server) handleTopTippers(w http.ResponseWriter, r *http.Request) {
	tippers, err := s.session.TopTippers(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tippers": tippers})
}

func (s *Server) handleSessionTippers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tippers":      s.session.Tally().Top(10),
		"total_tokens": s.session.Tally().TotalTokens(),
	})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	total, err := s.session.TokenBalance(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total_tokens": total})
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	stats, err := s.session.UserStatsFor(r.Context(), username)
	if errors.Is(err, service.ErrAlreadyLoading) {
		writeJSON(w, http.StatusAccepted, map[string]bool{"loading": true})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.session.Conversations(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleRoster(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"users": s.session.Roster().Users(),
		"count": s.session.Roster().Count(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Summarize())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
