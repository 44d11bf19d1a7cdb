package stats

import (
	"sort"
	"sync"
	"time"
)

// OnlineUser — запись ростера: кто сейчас в комнате.
type OnlineUser struct {
	Username string    `json:"username"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}

// Roster отслеживает присутствие зрителей по событиям user_join и
// user_leave. Лента не гарантирует парность событий, поэтому повторный
// join просто обновляет запись, leave без join игнорируется.
type Roster struct {
	mu    sync.RWMutex
	users map[string]OnlineUser
	now   func() time.Time
}

// NewRoster создаёт пустой ростер.
func NewRoster() *Roster {
	return &Roster{users: make(map[string]OnlineUser), now: time.Now}
}

// Add отмечает пользователя как присутствующего. Пустой статус
// заменяется на "Regular".
func (r *Roster) Add(username, status string) {
	if username == "" {
		return
	}
	if status == "" {
		status = "Regular"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[username] = OnlineUser{
		Username: username,
		Status:   status,
		JoinedAt: r.now().UTC(),
	}
}

// Remove убирает пользователя из ростера.
func (r *Roster) Remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, username)
}

// Users возвращает снимок ростера, отсортированный по времени входа.
func (r *Roster) Users() []OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]OnlineUser, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].Username < out[j].Username
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})

	return out
}

// Count возвращает число пользователей онлайн.
func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users)
}

// IsOnline сообщает, присутствует ли пользователь.
func (r *Roster) IsOnline(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[username]
	return ok
}

// Clear очищает ростер при отключении от комнаты.
func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = make(map[string]OnlineUser)
}
