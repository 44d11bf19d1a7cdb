package storage

import (
	"sync"

	"cb-sidebar-logger/model"
)

// DefaultMaxEvents — предел журнала по умолчанию; старые события
// вытесняются первыми.
const DefaultMaxEvents = 1000

// EventStore — ограниченный по размеру журнал нормализованных событий
// сессии. Запись ведёт один писатель (очередь инжеста), читатели
// получают снимок на момент вызова; мьютекс сериализует и то и другое.
type EventStore struct {
	mu     sync.RWMutex
	events []model.Event
	nextID int64
	max    int
}

// NewEventStore создаёт пустой журнал с заданным пределом. Значение
// max <= 0 заменяется DefaultMaxEvents.
func NewEventStore(max int) *EventStore {
	if max <= 0 {
		max = DefaultMaxEvents
	}
	return &EventStore{
		events: make([]model.Event, 0, max),
		nextID: 1,
		max:    max,
	}
}

// Append назначает событию следующий монотонный ID, дописывает его в
// журнал и возвращает сохранённую копию. При превышении предела журнал
// вытесняет самые старые записи.
func (s *EventStore) Append(ev model.Event) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = s.nextID
	s.nextID++

	s.events = append(s.events, ev)
	if len(s.events) > s.max {
		overflow := len(s.events) - s.max
		s.events = append(s.events[:0:0], s.events[overflow:]...)
	}

	return ev
}

// All возвращает снимок журнала в порядке вставки, от старых к новым.
func (s *EventStore) All() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.Event(nil), s.events...)
}

// Len возвращает текущее число событий в журнале.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.events)
}

// Clear очищает журнал. Счётчик ID не сбрасывается: идентификаторы
// остаются уникальными в пределах сессии даже после очистки.
func (s *EventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = s.events[:0]
}
