package feed

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"cb-sidebar-logger/config"
)

// Handler принимает сырые payload ленты, по одному на сообщение сокета.
// Форма payload не гарантирована; за нормализацию отвечает получатель.
type Handler interface {
	HandleEvent(ctx context.Context, raw map[string]any)
}

// Client читает ленту событий комнаты по вебсокету и передаёт сырые
// payload обработчику. Обрыв соединения не фатален: клиент
// переподключается с экспоненциальной паузой.
type Client struct {
	config  config.FeedConfig
	handler Handler
	dialer  *websocket.Dialer
}

// NewClient собирает клиента ленты.
func NewClient(cfg config.FeedConfig, handler Handler) *Client {
	return &Client{
		config:  cfg,
		handler: handler,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Run подключается к ленте и блокируется до отмены контекста.
// Ошибки чтения приводят к переподключению, а не к выходу.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.config.ReconnectMin

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		err := c.readLoop(ctx)
		if err != nil && ctx.Err() == nil {
			log.Printf("лента: соединение потеряно: %v, переподключение через %s", err, backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		// долгоживущее соединение сбрасывает паузу
		if time.Since(started) > c.config.ReconnectMax {
			backoff = c.config.ReconnectMin
		} else {
			backoff *= 2
			if backoff > c.config.ReconnectMax {
				backoff = c.config.ReconnectMax
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("лента: подключено к %s", c.config.URL)

	if c.config.Room != "" {
		sub := map[string]string{"action": "subscribe", "room": c.config.Room}
		if err := conn.WriteJSON(sub); err != nil {
			return err
		}
		log.Printf("лента: подписка на комнату %s", c.config.Room)
	}

	// при отмене контекста рвём блокирующее чтение
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		c.handler.HandleEvent(ctx, decodePayload(data))
	}
}

// decodePayload разбирает кадр сокета в нетипизированный объект.
// Кадр, не являющийся JSON-объектом, не теряется: он превращается в
// payload без типа, и дальше по конвейеру пойдёт как unknown.
func decodePayload(data []byte) map[string]any {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return map[string]any{"message": string(data)}
	}
	return raw
}
