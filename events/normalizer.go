package events

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cb-sidebar-logger/model"
)

// Normalize превращает сырой payload ленты в нормализованное событие.
// Форма payload не гарантирована: присутствовать обязан разве что тег
// type, остальные поля извлекаются по явным ключам либо эвристиками из
// текста сообщения. Normalize никогда не завершается ошибкой — любое
// неудачное извлечение деградирует до пустого значения, событие не
// теряется. ID события здесь не назначается, это делает хранилище.
func Normalize(raw map[string]any) model.Event {
	p := payload(raw)

	ev := model.Event{
		Type:        p.str("type"),
		SentAt:      eventTime(p),
		IsModerator: moderatorFlag(p),
	}
	if ev.Type == "" {
		ev.Type = model.TypeUnknown
	}

	extract, ok := extractors[ev.Type]
	if !ok {
		extract = extractDefault
	}
	extract(p, &ev)

	ev.Username = CleanUsername(ev.Username)

	return ev
}

// extractor заполняет username/message/amount для одного типа события.
type extractor func(p payload, ev *model.Event)

// Таблица извлечения по заявленному типу события. Неизвестные типы
// обрабатывает extractDefault.
var extractors = map[string]extractor{
	model.TypeTip:            extractTip,
	model.TypeChat:           extractChat,
	model.TypePrivateMessage: extractPrivate,
	model.TypePrivate:        extractPrivate,
	model.TypeUserJoin:       extractJoin,
	model.TypeUserLeave:      extractLeave,
	model.TypeMediaPurchase:  extractMediaPurchase,
	model.TypeSystem:         extractSystem,
	model.TypeError:          extractSystem,
}

var (
	tipUserRe   = regexp.MustCompile(`(?i)^(\S+)\s+tipped`)
	chatUserRe  = regexp.MustCompile(`^([^:]+):\s*`)
	joinUserRe  = regexp.MustCompile(`(?i)^(\S+)\s+joined`)
	leaveUserRe = regexp.MustCompile(`(?i)^(\S+)\s+left`)
	amountRe    = regexp.MustCompile(`(?i)(\d+)\s*tokens?`)

	usernameNoiseRe = regexp.MustCompile(`[^0-9A-Za-z_\s-]+`)
	spacesRe        = regexp.MustCompile(`\s+`)
)

func extractTip(p payload, ev *model.Event) {
	msg := p.str("message")

	ev.Username = p.firstStr("username", "from_username")
	if ev.Username == "" {
		ev.Username = matchFirst(tipUserRe, msg)
	}

	if n, ok := p.intVal("amount"); ok && n >= 0 {
		ev.Amount = &n
	} else if n, ok := ExtractAmount(msg); ok {
		ev.Amount = &n
	}

	ev.Message = msg
	if ev.Message == "" {
		name := CleanUsername(ev.Username)
		if name == "" {
			name = "Anonymous"
		}
		ev.Message = fmt.Sprintf("%s tipped %d tokens", name, ev.AmountOrZero())
	}
}

func extractChat(p payload, ev *model.Event) {
	msg := p.str("message")

	ev.Username = p.firstStr("username", "from_username")
	if ev.Username == "" {
		ev.Username = matchFirst(chatUserRe, msg)
	}

	ev.Message = msg
}

func extractPrivate(p payload, ev *model.Event) {
	ev.Username = p.firstStr("from_username", "username")
	if ev.Username == "" {
		ev.Username = "Unknown"
	}

	ev.Message = p.str("message")
	if ev.Message == "" {
		ev.Message = "Private message received"
	}
}

func extractJoin(p payload, ev *model.Event) {
	msg := p.str("message")

	ev.Username = p.str("username")
	if ev.Username == "" {
		ev.Username = matchFirst(joinUserRe, msg)
	}

	ev.Message = msg
	if ev.Message == "" {
		ev.Message = fmt.Sprintf("%s joined the room", nameOr(ev.Username, "Someone"))
	}
}

func extractLeave(p payload, ev *model.Event) {
	msg := p.str("message")

	ev.Username = p.str("username")
	if ev.Username == "" {
		ev.Username = matchFirst(leaveUserRe, msg)
	}

	ev.Message = msg
	if ev.Message == "" {
		ev.Message = fmt.Sprintf("%s left the room", nameOr(ev.Username, "Someone"))
	}
}

func extractMediaPurchase(p payload, ev *model.Event) {
	ev.Username = p.firstStr("username", "buyer")
	if ev.Username == "" {
		ev.Username = "Unknown"
	}

	ev.Message = p.str("message")
	if ev.Message == "" {
		ev.Message = fmt.Sprintf("%s purchased media", ev.Username)
	}
}

func extractSystem(p payload, ev *model.Event) {
	ev.Message = p.firstStr("message", "error")
	if ev.Message == "" {
		ev.Message = "System message"
	}
}

// extractDefault обрабатывает незнакомые типы: сообщение берётся как
// есть, а при его отсутствии событие остаётся видимым как JSON-дамп
// payload — диагностика важнее, чем красота.
func extractDefault(p payload, ev *model.Event) {
	ev.Message = p.str("message")
	if ev.Message == "" {
		if dump, err := json.Marshal(map[string]any(p)); err == nil {
			ev.Message = string(dump)
		} else {
			ev.Message = fmt.Sprintf("%v", map[string]any(p))
		}
	}
}

// CleanUsername убирает из имени эмодзи и прочий шум: остаются буквы,
// цифры, пробелы, дефис и подчёркивание, повторные пробелы схлопываются.
// Пустой результат и имя "system" (без учёта регистра) считаются
// отсутствием имени.
func CleanUsername(username string) string {
	cleaned := usernameNoiseRe.ReplaceAllString(username, "")
	cleaned = strings.TrimSpace(spacesRe.ReplaceAllString(cleaned, " "))

	if cleaned == "" || strings.EqualFold(cleaned, "system") {
		return ""
	}

	return cleaned
}

// ExtractAmount достаёт из текста первую сумму вида "<N> tokens".
func ExtractAmount(message string) (int, bool) {
	m := amountRe.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0, false
	}

	return n, true
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// payload — нетипизированный JSON-объект на границе транспорта.
// Дальше нормализатора эта форма не просачивается.
type payload map[string]any

func (p payload) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}

	s, ok := v.(string)
	if !ok {
		return ""
	}

	return strings.TrimSpace(s)
}

func (p payload) firstStr(keys ...string) string {
	for _, key := range keys {
		if s := p.str(key); s != "" {
			return s
		}
	}
	return ""
}

// intVal приводит числовое поле к int: JSON после Unmarshal отдаёт
// float64, но транспорт встречается и со строками из цифр.
func (p payload) intVal(key string) (int, bool) {
	switch v := p[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// eventTime нормализует отметку времени события к time.Time. Источник
// передаёт epoch-секунды (возможно дробные), встречается и RFC3339
// строка; при отсутствии поля берётся текущее время.
func eventTime(p payload) time.Time {
	switch v := p["timestamp"].(type) {
	case float64:
		sec := int64(v)
		nsec := int64((v - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC()
	case int64:
		return time.Unix(v, 0).UTC()
	case int:
		return time.Unix(int64(v), 0).UTC()
	case json.Number:
		if f, err := v.Float64(); err == nil {
			sec := int64(f)
			nsec := int64((f - float64(sec)) * float64(time.Second))
			return time.Unix(sec, nsec).UTC()
		}
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts.UTC()
		}
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC()
		}
	}

	return time.Now().UTC()
}

// moderatorFlag читает явный признак модератора из payload. Эвристика
// по тексту сообщения остаётся в фильтре как запасной вариант.
func moderatorFlag(p payload) bool {
	if b, ok := p["is_mod"].(bool); ok {
		return b
	}
	return p.str("user_status") == "Moderator"
}
