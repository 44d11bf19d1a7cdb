package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"cb-sidebar-logger/config"
	"cb-sidebar-logger/service"
)

// Server — HTTP API дашборда: отдаёт отфильтрованную ленту сайдбару и
// принимает изменения фильтров.
type Server struct {
	config  config.ServerConfig
	session *service.Session
	hub     *Hub
	router  *chi.Mux
}

// NewServer собирает сервер и подписывает SSE-hub на события сессии.
func NewServer(cfg config.ServerConfig, session *service.Session) *Server {
	s := &Server{
		config:  cfg,
		session: session,
		hub:     NewHub(),
	}

	session.Subscribe(s.hub.Publish)
	s.router = s.routes()

	return s
}

// Handler возвращает корневой http.Handler; используется и тестами.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run слушает адрес из конфигурации и блокируется до отмены контекста,
// после чего гасит сервер с таймаутом.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("api: сервер слушает %s", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Delete("/events", s.handleClearEvents)
		r.Get("/events/stream", s.hub.HandleSSE)

		r.Route("/filters", func(r chi.Router) {
			r.Get("/", s.handleGetFilters)
			r.Put("/", s.handleImportFilters)
			r.Post("/reset", s.handleResetFilters)
			r.Post("/category", s.handleToggleCategory)
			r.Post("/sort", s.handleSetSortOrder)
			r.Post("/tippers-only", s.handleTippersOnly)
			r.Post("/moderators-only", s.handleModeratorsOnly)
			r.Post("/min-tip-amount", s.handleMinTipAmount)
		})

		r.Get("/tippers", s.handleTopTippers)
		r.Get("/tippers/session", s.handleSessionTippers)
		r.Get("/tokens", s.handleTokenBalance)
		r.Get("/users/{username}/stats", s.handleUserStats)
		r.Get("/conversations", s.handleConversations)
		r.Get("/roster", s.handleRoster)
		r.Get("/summary", s.handleSummary)
	})

	return r
}
