package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"cb-sidebar-logger/model"
)

// Hub раздаёт сохранённые события подключённым SSE-клиентам сайдбара.
// Медленный клиент не тормозит остальных: его сообщения отбрасываются.
type Hub struct {
	mu        sync.RWMutex
	clients   map[chan []byte]bool
	broadcast chan []byte
}

// NewHub создаёт hub и запускает диспетчер рассылки.
func NewHub() *Hub {
	hub := &Hub{
		clients:   make(map[chan []byte]bool),
		broadcast: make(chan []byte, 256),
	}

	go func() {
		for msg := range hub.broadcast {
			hub.mu.RLock()
			for ch := range hub.clients {
				select {
				case ch <- msg:
				default:
					// медленный клиент — сообщение пропускается
				}
			}
			hub.mu.RUnlock()
		}
	}()

	return hub
}

// Publish ставит событие в очередь рассылки. Регистрируется как
// слушатель сессии, поэтому блокироваться здесь нельзя.
func (hub *Hub) Publish(ev model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("sse: сериализация события: %v", err)
		return
	}

	select {
	case hub.broadcast <- data:
	default:
		// буфер рассылки переполнен — событие пропускается
	}
}

// HandleSSE обслуживает GET /api/events/stream как Server-Sent Events.
func (hub *Hub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 64)
	hub.mu.Lock()
	hub.clients[ch] = true
	hub.mu.Unlock()

	defer func() {
		hub.mu.Lock()
		delete(hub.clients, ch)
		hub.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			w.Write([]byte("data: "))
			w.Write(msg)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
