package debounce

import (
	"sync"
	"time"
)

// Coordinator склеивает всплески повторных срабатываний в один вызов:
// пока по ключу продолжают приходить Debounce, таймер перезапускается,
// и колбэк выполняется ровно один раз после паузы. Используется, чтобы
// серия подряд идущих типов не породила серию обновлений с бэкенда.
type Coordinator struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New создаёт координатор без активных таймеров.
func New() *Coordinator {
	return &Coordinator{timers: make(map[string]*time.Timer)}
}

// Debounce откладывает вызов callback на delay. Повторный вызов с тем
// же ключом отменяет ещё не сработавший колбэк и перезапускает отсчёт.
func (c *Coordinator) Debounce(key string, callback func(), delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.timers[key]; ok {
		timer.Stop()
	}

	// Stop мог опоздать: таймер уже сработал, а его колбэк ждёт mu.
	// Такой устаревший колбэк не должен ни выполняться, ни трогать
	// запись более нового таймера, поэтому сверяем таймер по ключу.
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		current, ok := c.timers[key]
		if ok && current == timer {
			delete(c.timers, key)
		}
		c.mu.Unlock()

		if !ok || current != timer {
			return
		}
		callback()
	})
	c.timers[key] = timer
}

// Clear отменяет отложенный вызов по ключу, не выполняя его.
func (c *Coordinator) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.timers[key]; ok {
		timer.Stop()
		delete(c.timers, key)
	}
}

// ClearAll отменяет все отложенные вызовы, не выполняя их; вызывается
// при завершении сессии.
func (c *Coordinator) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, timer := range c.timers {
		timer.Stop()
		delete(c.timers, key)
	}
}

// Pending возвращает число ключей с ещё не сработавшими таймерами.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.timers)
}
