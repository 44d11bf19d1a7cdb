package stats

import (
	"sort"
	"sync"
)

// Tipper — суммарный вклад одного пользователя за сессию.
type Tipper struct {
	Username    string `json:"username"`
	TotalTokens int    `json:"total_tokens"`
}

// TipTally считает токены по типперам в пределах сессии. Это локальный
// счётчик поверх журнала событий; исторический топ живёт на бэкенде и
// проходит через кэш.
type TipTally struct {
	mu     sync.RWMutex
	totals map[string]int
	total  int
}

// NewTipTally создаёт пустой счётчик.
func NewTipTally() *TipTally {
	return &TipTally{totals: make(map[string]int)}
}

// Record учитывает тип. Анонимные (без имени) суммируются только в
// общий итог.
func (t *TipTally) Record(username string, amount int) {
	if amount <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.total += amount
	if username != "" {
		t.totals[username] += amount
	}
}

// TotalTokens возвращает сумму токенов за сессию.
func (t *TipTally) TotalTokens() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.total
}

// Top возвращает n крупнейших типперов; при равных суммах порядок
// стабилен по имени.
func (t *TipTally) Top(n int) []Tipper {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Tipper, 0, len(t.totals))
	for username, tokens := range t.totals {
		out = append(out, Tipper{Username: username, TotalTokens: tokens})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalTokens == out[j].TotalTokens {
			return out[i].Username < out[j].Username
		}
		return out[i].TotalTokens > out[j].TotalTokens
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}

	return out
}

// Clear сбрасывает счётчик при отключении от комнаты.
func (t *TipTally) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totals = make(map[string]int)
	t.total = 0
}
