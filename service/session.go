package service

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"cb-sidebar-logger/backend"
	"cb-sidebar-logger/cache"
	"cb-sidebar-logger/config"
	"cb-sidebar-logger/debounce"
	"cb-sidebar-logger/events"
	"cb-sidebar-logger/filter"
	"cb-sidebar-logger/model"
	"cb-sidebar-logger/stats"
	"cb-sidebar-logger/storage"
)

// tippersCacheKey — единственный ключ кэша топа типперов.
const tippersCacheKey = "top"

// refreshTippersKey — ключ дебаунса для отложенного обновления топа.
const refreshTippersKey = "refresh_tippers"

// Backend — срез REST-клиента, который нужен сессии. Выделен в
// интерфейс ради заглушек в тестах.
type Backend interface {
	TopTippers(ctx context.Context) ([]backend.Tipper, error)
	TokenBalance(ctx context.Context) (int, error)
	UserStats(ctx context.Context, username string) (backend.UserStats, error)
	Conversations(ctx context.Context) ([]backend.Conversation, error)
}

// Session — состояние одного подключения к комнате: журнал событий,
// кэши, ростер, настройки фильтра, координатор дебаунса. Раньше всё
// это жило бы глобальными переменными; явная сборка с жизненным циклом
// attach/detach делает тесты и изоляцию сессий тривиальными.
type Session struct {
	ID string

	cfg    config.Config
	remote Backend

	store  *storage.EventStore
	ingest *storage.Ingestor

	filterMu sync.Mutex
	filters  filter.Config

	userStats     *cache.Cache[backend.UserStats]
	conversations *cache.Cache[[]backend.Conversation]
	tippers       *cache.Cache[[]backend.Tipper]

	debounce *debounce.Coordinator
	roster   *stats.Roster
	tally    *stats.TipTally

	triggers map[string]struct{}

	listenMu  sync.RWMutex
	listeners []func(model.Event)

	baseCtx context.Context
	cancel  context.CancelFunc
}

// Attach создаёт сессию и запускает её очередь инжеста. Журнал пуст,
// фильтры в значениях по умолчанию. Сессия живёт до Detach.
func Attach(ctx context.Context, cfg config.Config, remote Backend) *Session {
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		ID:            uuid.NewString(),
		cfg:           cfg,
		remote:        remote,
		store:         storage.NewEventStore(cfg.Pipeline.MaxEvents),
		filters:       filter.DefaultConfig(),
		userStats:     cache.New[backend.UserStats](cfg.Cache.UserStatsTTL),
		conversations: cache.New[[]backend.Conversation](cfg.Cache.ConversationsTTL),
		tippers:       cache.New[[]backend.Tipper](cfg.Cache.TippersTTL),
		debounce:      debounce.New(),
		roster:        stats.NewRoster(),
		tally:         stats.NewTipTally(),
		triggers:      make(map[string]struct{}, len(cfg.Refresh.TriggerTypes)),
		baseCtx:       ctx,
		cancel:        cancel,
	}

	for _, typ := range cfg.Refresh.TriggerTypes {
		s.triggers[typ] = struct{}{}
	}

	s.ingest = storage.NewIngestor(ctx, s.store, storage.IngestConfig{
		ChanBuffer:    cfg.Pipeline.ChanBuffer,
		StatsLogEvery: cfg.Pipeline.StatsLogEvery,
	}, s.onStored)

	log.Printf("сессия %s: подключение к комнате", s.ID)

	return s
}

// Detach завершает сессию: отменяет отложенные обновления, чистит
// кэши и останавливает очередь. Журнал событий логически уничтожается,
// новое подключение начинает с чистого состояния.
func (s *Session) Detach() {
	s.cancel()
	s.debounce.ClearAll()
	s.userStats.ClearAll()
	s.conversations.ClearAll()
	s.tippers.ClearAll()
	s.roster.Clear()
	s.tally.Clear()
	s.store.Clear()

	log.Printf("сессия %s: отключение", s.ID)
}

// HandleEvent реализует feed.Handler: нормализует payload и ставит
// событие в очередь на запись. Выполняется синхронно в колбэке
// транспорта; тяжёлой работы здесь нет.
func (s *Session) HandleEvent(_ context.Context, raw map[string]any) {
	ev := events.Normalize(raw)
	if ok := s.ingest.Enqueue(ev); !ok {
		log.Printf("сессия %s: событие %s отброшено, очередь заполнена", s.ID, ev.Type)
	}
}

// onStored вызывается очередью инжеста для каждого сохранённого
// события, строго в порядке записи.
func (s *Session) onStored(ev model.Event) {
	switch ev.Type {
	case model.TypeUserJoin:
		status := "Regular"
		if ev.IsModerator {
			status = "Moderator"
		}
		s.roster.Add(ev.Username, status)
	case model.TypeUserLeave:
		s.roster.Remove(ev.Username)
	case model.TypeTip:
		s.tally.Record(ev.Username, ev.AmountOrZero())
	}

	if _, ok := s.triggers[ev.Type]; ok {
		s.debounce.Debounce(refreshTippersKey, func() {
			if err := s.RefreshTippers(s.baseCtx); err != nil && s.baseCtx.Err() == nil {
				log.Printf("сессия %s: обновление топа типперов: %v", s.ID, err)
			}
		}, s.cfg.Refresh.Delay)
	}

	s.listenMu.RLock()
	for _, notify := range s.listeners {
		notify(ev)
	}
	s.listenMu.RUnlock()
}

// Subscribe регистрирует слушателя сохранённых событий (SSE-поток).
// Слушатели вызываются на горутине очереди и не должны блокироваться.
func (s *Session) Subscribe(listener func(model.Event)) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	s.listeners = append(s.listeners, listener)
}

// Visible возвращает события журнала, проходящие текущие фильтры.
func (s *Session) Visible() []model.Event {
	return filter.Query(s.store.All(), s.Filters())
}

// Events возвращает весь журнал в порядке вставки.
func (s *Session) Events() []model.Event {
	return s.store.All()
}

// ClearEvents очищает журнал по явному действию пользователя.
func (s *Session) ClearEvents() {
	s.store.Clear()
}

// Filters возвращает копию текущих настроек фильтра.
func (s *Session) Filters() filter.Config {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()

	cfg := s.filters
	cfg.Categories = append([]model.Category(nil), s.filters.Categories...)
	return cfg
}

// UpdateFilters применяет мутацию к настройкам фильтра под замком.
// Ошибка мутации оставляет настройки нетронутыми.
func (s *Session) UpdateFilters(mutate func(*filter.Config) error) error {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()

	draft := s.filters
	draft.Categories = append([]model.Category(nil), s.filters.Categories...)

	if err := mutate(&draft); err != nil {
		return err
	}

	s.filters = draft
	return nil
}

// ResetFilters возвращает настройки фильтра к значениям по умолчанию.
func (s *Session) ResetFilters() {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()

	s.filters.Reset()
}

// TopTippers отдаёт топ типперов через кэш: свежее значение — из
// памяти, протухшее восполняется запросом к бэкенду.
func (s *Session) TopTippers(ctx context.Context) ([]backend.Tipper, error) {
	if tippers, ok := s.tippers.Get(tippersCacheKey); ok {
		return tippers, nil
	}
	return s.fetchTippers(ctx)
}

// RefreshTippers принудительно перечитывает топ типперов с бэкенда.
func (s *Session) RefreshTippers(ctx context.Context) error {
	_, err := s.fetchTippers(ctx)
	return err
}

func (s *Session) fetchTippers(ctx context.Context) ([]backend.Tipper, error) {
	tippers, err := s.remote.TopTippers(ctx)
	if err != nil {
		return nil, err
	}

	s.tippers.Set(tippersCacheKey, tippers)
	return tippers, nil
}

// ErrAlreadyLoading сообщает, что загрузка по этому ключу уже идёт;
// вызывающий код сам решает, подождать или показать заглушку.
var ErrAlreadyLoading = errors.New("загрузка уже выполняется")

// UserStatsFor отдаёт статистику пользователя через кэш. Повторный
// запрос, пока первый в полёте, подавляется через ErrAlreadyLoading.
func (s *Session) UserStatsFor(ctx context.Context, username string) (backend.UserStats, error) {
	if cached, ok := s.userStats.Get(username); ok {
		return cached, nil
	}

	if !s.userStats.MarkLoading(username) {
		return backend.UserStats{}, ErrAlreadyLoading
	}

	fetched, err := s.remote.UserStats(ctx, username)
	if err != nil {
		s.userStats.DoneLoading(username)
		return backend.UserStats{}, err
	}

	s.userStats.Set(username, fetched)
	return fetched, nil
}

// Conversations отдаёт список диалогов через кэш.
func (s *Session) Conversations(ctx context.Context) ([]backend.Conversation, error) {
	const key = "conversations"

	if cached, ok := s.conversations.Get(key); ok {
		return cached, nil
	}

	fetched, err := s.remote.Conversations(ctx)
	if err != nil {
		return nil, err
	}

	s.conversations.Set(key, fetched)
	return fetched, nil
}

// TokenBalance возвращает суммарный баланс токенов с бэкенда.
// Значение не кэшируется: запрашивается по явному действию в UI.
func (s *Session) TokenBalance(ctx context.Context) (int, error) {
	return s.remote.TokenBalance(ctx)
}

// Roster возвращает ростер присутствующих.
func (s *Session) Roster() *stats.Roster {
	return s.roster
}

// Tally возвращает локальный счётчик типов сессии.
func (s *Session) Tally() *stats.TipTally {
	return s.tally
}

// Dropped возвращает число событий, отброшенных очередью инжеста.
func (s *Session) Dropped() uint64 {
	return s.ingest.Dropped()
}

// Summary — сводка состояния сессии для отладки и health-эндпоинта.
type Summary struct {
	SessionID     string `json:"session_id"`
	EventsCount   int    `json:"events_count"`
	OnlineUsers   int    `json:"online_users"`
	SessionTokens int    `json:"session_tokens"`
	Dropped       uint64 `json:"dropped"`
	ActiveFilters int    `json:"active_filters"`
}

// Summarize собирает сводку текущего состояния.
func (s *Session) Summarize() Summary {
	return Summary{
		SessionID:     s.ID,
		EventsCount:   s.store.Len(),
		OnlineUsers:   s.roster.Count(),
		SessionTokens: s.tally.TotalTokens(),
		Dropped:       s.ingest.Dropped(),
		ActiveFilters: s.Filters().ActiveFilterCount(),
	}
}
