package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"multichat-backend/internal/handlers"
	"multichat-backend/internal/middleware"
	"multichat-backend/internal/websocket"
)

func New(
	conversationHandler *handlers.ConversationHandler,
	pageHandler *handlers.PageHandler,
	wsHub *websocket.Hub,
	turnLimiter *middleware.RateLimiter,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	// ──── Chat Page ────
	r.Get("/", pageHandler.Show)
	r.With(turnLimiter.Middleware).Post("/", pageHandler.Submit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/models", conversationHandler.Models)

		// ──── Conversation Routes ────
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/{id}", conversationHandler.Get)
			r.Delete("/{id}", conversationHandler.Delete)

			r.Group(func(r chi.Router) {
				r.Use(turnLimiter.Middleware)
				r.Post("/{id}/messages", conversationHandler.SendMessage)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
