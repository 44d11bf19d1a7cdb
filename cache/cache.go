package cache

import (
	"sync"
	"time"
)

// Cache — TTL-кэш для производных и удалённых данных (статистика
// пользователей, диалоги, топ типперов). Кэш сам ничего не загружает:
// это только ворота свежести, промахи восполняет вызывающий код через
// Set. Значение считается свежим, пока now - fetchedAt <= ttl.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry[V]
	loading map[string]struct{}
	now     func() time.Time
}

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// New создаёт кэш с заданным временем жизни записей.
func New[V any](ttl time.Duration) *Cache[V] {
	return newCache[V](ttl, time.Now)
}

func newCache[V any](ttl time.Duration, now func() time.Time) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		loading: make(map[string]struct{}),
		now:     now,
	}
}

// Get возвращает значение, только если оно ещё свежее. Протухшая
// запись равносильна отсутствующей: второй результат false.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) > c.ttl {
		var zero V
		return zero, false
	}

	return e.value, true
}

// Set сохраняет значение и отметку времени загрузки. Запись обновляется
// целиком, частичных обновлений не бывает.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, fetchedAt: c.now()}
	delete(c.loading, key)
}

// Clear инвалидирует одну запись.
func (c *Cache[V]) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	delete(c.loading, key)
}

// ClearAll инвалидирует весь кэш. Обязателен при смене пользователя,
// иначе данные утекут между сессиями.
func (c *Cache[V]) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[V])
	c.loading = make(map[string]struct{})
}

// Len возвращает число записей, включая протухшие.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// MarkLoading помечает ключ как загружаемый, чтобы подавить
// дублирующие запросы к бэкенду. Возвращает false, если загрузка по
// этому ключу уже идёт.
func (c *Cache[V]) MarkLoading(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.loading[key]; busy {
		return false
	}
	c.loading[key] = struct{}{}
	return true
}

// DoneLoading снимает пометку загрузки; вызывается и при ошибке
// запроса, иначе ключ зависнет навсегда.
func (c *Cache[V]) DoneLoading(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.loading, key)
}

// IsLoading сообщает, идёт ли сейчас загрузка по ключу.
func (c *Cache[V]) IsLoading(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, busy := c.loading[key]
	return busy
}
