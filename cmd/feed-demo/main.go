// Команда feed-demo поднимает локальный websocket-фид с синтетическими
// событиями комнаты. Удобна для разработки дашборда без живого фида.
package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var demoUsers = []string{
	"BigSpender99", "ChattyKathy", "LurkerLarry", "NightOwl_7",
	"TipMaster", "QuietMouse", "PartyAnimal22", "ModeratorMike",
}

var demoMessages = []string{
	"hello everyone!",
	"how is the stream going?",
	"lol that was great",
	"brb",
	"anyone from europe here?",
	"nice one",
	"what song is this?",
	"keep it up!",
}

var tipAmounts = []int{1, 5, 10, 15, 20, 25, 50, 100, 200, 500, 1000}
var tipWeights = []int{25, 20, 15, 10, 8, 8, 6, 4, 2, 1, 1}

func pickAmount(rng *rand.Rand) int {
	total := 0
	for _, w := range tipWeights {
		total += w
	}
	n := rng.Intn(total)
	for i, w := range tipWeights {
		if n < w {
			return tipAmounts[i]
		}
		n -= w
	}
	return tipAmounts[0]
}

func nextEvent(rng *rand.Rand) map[string]any {
	user := demoUsers[rng.Intn(len(demoUsers))]
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	switch n := rng.Intn(100); {
	case n < 55:
		return map[string]any{
			"type":      "chat",
			"username":  user,
			"message":   demoMessages[rng.Intn(len(demoMessages))],
			"timestamp": now,
			"is_mod":    user == "ModeratorMike",
		}
	case n < 75:
		return map[string]any{
			"type":      "tip",
			"username":  user,
			"amount":    pickAmount(rng),
			"message":   user + " tipped tokens",
			"timestamp": now,
		}
	case n < 85:
		return map[string]any{
			"type":        "user_join",
			"username":    user,
			"user_status": statusFor(user),
			"timestamp":   now,
		}
	case n < 93:
		return map[string]any{
			"type":      "user_leave",
			"username":  user,
			"timestamp": now,
		}
	case n < 97:
		return map[string]any{
			"type":      "media_purchase",
			"username":  user,
			"amount":    pickAmount(rng),
			"item":      "photo set",
			"timestamp": now,
		}
	default:
		return map[string]any{
			"type":      "system",
			"message":   "room subject changed",
			"timestamp": now,
		}
	}
}

func statusFor(user string) string {
	if user == "ModeratorMike" {
		return "Moderator"
	}
	return "Regular"
}

func serveFeed(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("демо-фид: апгрейд не удался: %v", err)
		return
	}
	defer conn.Close()

	// Читатель нужен только чтобы заметить закрытие со стороны клиента.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	log.Printf("демо-фид: клиент подключился: %s", r.RemoteAddr)

	for {
		delay := time.Duration(500+rng.Intn(2500)) * time.Millisecond
		select {
		case <-ctx.Done():
			return
		case <-done:
			log.Printf("демо-фид: клиент отключился: %s", r.RemoteAddr)
			return
		case <-time.After(delay):
		}

		data, err := json.Marshal(nextEvent(rng))
		if err != nil {
			log.Printf("демо-фид: не удалось сериализовать событие: %v", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func main() {
	_ = godotenv.Load()

	addr := os.Getenv("DEMO_FEED_ADDR")
	if addr == "" {
		addr = ":8788"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		serveFeed(ctx, w, r)
	})

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("демо-фид: слушаю %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("демо-фид: сервер упал: %v", err)
	}
}
