package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"cb-sidebar-logger/model"
)

// SortOrder задаёт порядок выдачи событий.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// categoryMap сводит типы событий к трём категориям фильтра. Всё, что
// не tip и не chat, попадает в system — включая незнакомые типы.
var categoryMap = map[string]model.Category{
	model.TypeTip:            model.CategoryTip,
	model.TypeChat:           model.CategoryChat,
	model.TypeSystem:         model.CategorySystem,
	model.TypeUserJoin:       model.CategorySystem,
	model.TypeUserLeave:      model.CategorySystem,
	model.TypeMediaPurchase:  model.CategorySystem,
	model.TypePrivate:        model.CategorySystem,
	model.TypePrivateMessage: model.CategorySystem,
	model.TypeError:          model.CategorySystem,
}

// Classify возвращает категорию для типа события. Функция тотальна:
// любой вход даёт ровно одну категорию, по умолчанию system.
func Classify(eventType string) model.Category {
	if cat, ok := categoryMap[eventType]; ok {
		return cat
	}
	return model.CategorySystem
}

// Config — текущие настройки отображения ленты. Меняется только через
// явные операции (toggle/set/reset), сам конвейер её не трогает.
type Config struct {
	Categories            []model.Category `json:"message_types"`
	SortOrder             SortOrder        `json:"sort_order"`
	TippersOnly           bool             `json:"show_tippers_only"`
	ModeratorsOnly        bool             `json:"show_moderators_only"`
	TipAmountFilterEnable bool             `json:"enable_tip_amount_filter"`
	MinTipAmount          int              `json:"min_tip_amount"`
}

// DefaultConfig возвращает настройки по умолчанию: все категории,
// новые сверху, пороги выключены.
func DefaultConfig() Config {
	return Config{
		Categories:   []model.Category{model.CategoryTip, model.CategoryChat, model.CategorySystem},
		SortOrder:    SortNewest,
		MinTipAmount: 1,
	}
}

// Reset возвращает настройки к значениям по умолчанию.
func (c *Config) Reset() {
	*c = DefaultConfig()
}

// ToggleCategory включает категорию, если она выключена, и наоборот.
func (c *Config) ToggleCategory(cat model.Category) {
	for i, existing := range c.Categories {
		if existing == cat {
			c.Categories = append(c.Categories[:i], c.Categories[i+1:]...)
			return
		}
	}
	c.Categories = append(c.Categories, cat)
}

// HasCategory сообщает, включена ли категория.
func (c Config) HasCategory(cat model.Category) bool {
	for _, existing := range c.Categories {
		if existing == cat {
			return true
		}
	}
	return false
}

// SetSortOrder устанавливает порядок сортировки, отклоняя незнакомые
// значения на границе мутации.
func (c *Config) SetSortOrder(order SortOrder) error {
	if order != SortNewest && order != SortOldest {
		return fmt.Errorf("неизвестный порядок сортировки %q", order)
	}
	c.SortOrder = order
	return nil
}

// SetTippersOnly включает или выключает фильтр "только типперы".
func (c *Config) SetTippersOnly(on bool) {
	c.TippersOnly = on
}

// SetModeratorsOnly включает или выключает фильтр "только модераторы".
func (c *Config) SetModeratorsOnly(on bool) {
	c.ModeratorsOnly = on
}

// SetMinTipAmount задаёт порог суммы типа. Отрицательный порог —
// ошибка конфигурации, внутрь Query она не попадает.
func (c *Config) SetMinTipAmount(amount int) error {
	if amount < 0 {
		return fmt.Errorf("порог суммы типа не может быть отрицательным: %d", amount)
	}
	c.MinTipAmount = amount
	return nil
}

// SetTipAmountFilterEnabled включает или выключает порог суммы.
func (c *Config) SetTipAmountFilterEnabled(on bool) {
	c.TipAmountFilterEnable = on
}

// ActiveFilterCount возвращает число активных фильтров для бейджа в UI.
func (c Config) ActiveFilterCount() int {
	count := 0
	if c.TippersOnly {
		count++
	}
	if c.ModeratorsOnly {
		count++
	}
	if c.TipAmountFilterEnable {
		count++
	}
	if c.SortOrder != SortNewest {
		count++
	}
	return count
}

// Export сериализует настройки фильтра в JSON.
func (c Config) Export() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("export filter state: %w", err)
	}
	return string(data), nil
}

// Import накладывает сохранённое состояние поверх текущего. Кривой
// JSON или отрицательный порог отвергаются, текущее состояние при
// этом не меняется.
func (c *Config) Import(state string) error {
	merged := *c
	merged.Categories = append([]model.Category(nil), c.Categories...)

	if err := json.Unmarshal([]byte(state), &merged); err != nil {
		return fmt.Errorf("import filter state: %w", err)
	}
	if merged.MinTipAmount < 0 {
		return fmt.Errorf("import filter state: порог суммы отрицательный")
	}
	if merged.SortOrder != SortNewest && merged.SortOrder != SortOldest {
		return fmt.Errorf("import filter state: неизвестный порядок %q", merged.SortOrder)
	}

	*c = merged
	return nil
}

// Query выбирает из журнала события, проходящие фильтры, и упорядочивает
// их. Функция чистая: ни журнал, ни настройки не мутируются, вызов на
// каждый рендер безопасен. Пустое множество категорий означает "ничего
// не показывать", а не "показывать всё".
func Query(evs []model.Event, cfg Config) []model.Event {
	if len(cfg.Categories) == 0 {
		return []model.Event{}
	}

	filtered := make([]model.Event, 0, len(evs))
	for _, ev := range evs {
		if !keep(ev, cfg) {
			continue
		}
		filtered = append(filtered, ev)
	}

	if cfg.SortOrder == SortNewest {
		reverse(filtered)
	}

	return filtered
}

func keep(ev model.Event, cfg Config) bool {
	cat := Classify(ev.Type)

	if !cfg.HasCategory(cat) {
		return false
	}
	if cfg.TippersOnly && cat != model.CategoryTip {
		return false
	}
	if cfg.ModeratorsOnly && !isModerator(ev) {
		return false
	}
	if cfg.TipAmountFilterEnable && cat == model.CategoryTip && ev.AmountOrZero() < cfg.MinTipAmount {
		return false
	}

	return true
}

// isModerator: явный признак с события, текстовая эвристика — запасной
// вариант для источников, не передающих статус пользователя.
func isModerator(ev model.Event) bool {
	return ev.IsModerator || strings.Contains(ev.Message, "Moderator")
}

// reverse переворачивает срез на месте; журнал хранится от старых к
// новым, поэтому "новые сверху" — это обратный порядок вставки.
func reverse(evs []model.Event) {
	for i, j := 0, len(evs)-1; i < j; i, j = i+1, j-1 {
		evs[i], evs[j] = evs[j], evs[i]
	}
}
