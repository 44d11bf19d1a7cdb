package model

import "time"

// Category — грубая группа типа события, используемая при фильтрации.
type Category string

const (
	CategoryTip    Category = "tip"
	CategoryChat   Category = "chat"
	CategorySystem Category = "system"
)

// Известные типы событий ленты. Множество открытое: транспорт может
// прислать любой тег, неизвестные сохраняются как есть.
const (
	TypeTip            = "tip"
	TypeChat           = "chat"
	TypePrivateMessage = "private_message"
	TypePrivate        = "private" // устаревший алиас private_message
	TypeUserJoin       = "user_join"
	TypeUserLeave      = "user_leave"
	TypeMediaPurchase  = "media_purchase"
	TypeSystem         = "system"
	TypeError          = "error"
	TypeUnknown        = "unknown"
)

// Event — нормализованная модель события ленты Chaturbate.
type Event struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Username    string    `json:"username,omitempty"`
	Message     string    `json:"message"`
	Amount      *int      `json:"amount,omitempty"`
	IsModerator bool      `json:"is_moderator,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// HasAmount сообщает, извлечена ли для события сумма токенов.
// Сумма присутствует только у событий типа tip.
func (e Event) HasAmount() bool {
	return e.Amount != nil
}

// AmountOrZero возвращает сумму токенов, считая отсутствующую нулём.
func (e Event) AmountOrZero() int {
	if e.Amount == nil {
		return 0
	}
	return *e.Amount
}
