package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"multichat-backend/internal/adapter"
	"multichat-backend/internal/chat"
	"multichat-backend/internal/config"
	"multichat-backend/internal/database"
	"multichat-backend/internal/handlers"
	"multichat-backend/internal/middleware"
	"multichat-backend/internal/models"
	"multichat-backend/internal/router"
	"multichat-backend/internal/session"
	"multichat-backend/internal/websocket"
	"multichat-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Multi-Model Chat Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize Session Store ────
	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	var redisClient *redis.Client
	var store chat.Store
	var cleanup []session.Task
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer client.Close()
		redisClient = client
		store = session.NewRedisStore(client, sessionTTL)
		log.Println("✓ Redis connected, conversations stored in Redis")
	} else {
		memoryStore := session.NewMemoryStore(sessionTTL)
		cleanup = append(cleanup, memoryStore.Sweep)
		store = memoryStore
		log.Println("✓ Conversations stored in memory")
	}

	// ──── Step 3: Register Model Backends ────
	gemini := adapter.NewGeminiProvider(cfg.GoogleAPIKey, cfg.GeminiModel)
	defer gemini.Close()

	deepseek, err := adapter.NewDeepseekProvider(cfg.OllamaHost, cfg.DeepseekModel, nil)
	if err != nil {
		log.Fatalf("✗ Deepseek backend initialization failed: %v", err)
	}

	registry := adapter.NewRegistry(
		gemini,
		adapter.NewMistralProvider(cfg.MistralAPIKey, cfg.MistralBaseURL, cfg.MistralModel),
		deepseek,
	)
	if cfg.AnthropicAPIKey != "" {
		registry.Register(adapter.NewClaudeProvider(cfg.AnthropicAPIKey, cfg.ClaudeModel))
	}
	log.Printf("✓ Model backends registered: %v", registry.Names())

	service := chat.NewService(store, registry)

	cleanup = append(cleanup, func(ctx context.Context, now time.Time) {
		if n, err := service.PruneSessions(ctx); err != nil {
			log.Printf("Session janitor: %v", err)
		} else if n > 0 {
			log.Printf("Session janitor: released backend sessions of %d expired conversations", n)
		}
	})
	janitor := session.NewJanitor(time.Minute, cleanup...)
	janitor.Start()
	defer janitor.Stop()

	// ──── Step 4: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClient)
	log.Println("✓ WebSocket hub started")

	// ──── Step 5: Start Turn Worker Pool ────
	workerPool := worker.NewPool(service, publishTurn(wsHub), cfg.WorkerCount, cfg.WorkerQueueSize)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 6: Start HTTP Server ────
	turnLimiter := middleware.NewRateLimiter(cfg.TurnRateLimit, time.Minute)
	defer turnLimiter.Stop()

	r := router.New(
		handlers.NewConversationHandler(service, workerPool),
		handlers.NewPageHandler(service, config.LoadStylesheet(cfg.StylesheetPath)),
		wsHub,
		turnLimiter,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		workerPool.Stop()
	}()

	log.Printf("✓ Chat ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-done
}

// publishTurn forwards finished background turns to the conversation's sockets.
func publishTurn(hub *websocket.Hub) worker.CompletionFunc {
	return func(job models.TurnJob, result *chat.TurnResult, err error) {
		update := models.TurnUpdate{JobID: job.ID, ConversationID: job.ConversationID}
		msg := models.WSMessage{Type: models.WSTurnCompleted, Payload: &update}
		if err != nil {
			msg.Type = models.WSTurnFailed
			update.Error = err.Error()
		} else {
			turn := models.NewTurnResponse(job.ConversationID, result)
			update.Turn = &turn
		}
		hub.Publish(context.Background(), job.ConversationID, msg)
	}
}
