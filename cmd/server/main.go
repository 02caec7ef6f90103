package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"bookswap/internal/auth"
	"bookswap/internal/book"
	"bookswap/internal/chat"
	"bookswap/internal/config"
	"bookswap/internal/db"
	"bookswap/internal/exchange"
	"bookswap/internal/middleware"
	"bookswap/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Platform layer.
	database, err := db.NewDatabase(cfg.DBDSN)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	log.Println("connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("running migrations: %v", err)
	}
	log.Println("database schema initialized")

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("connecting to redis: %v", err)
	}
	log.Println("connected to Redis")

	// Repositories.
	userRepo := user.NewRepository(database.Conn)
	bookRepo := book.NewRepository(database.Conn)
	chatRepo := chat.NewRepository(database.Conn)
	exchangeRepo := exchange.NewRepository(database.Conn)

	// Services.
	chatService := chat.NewService(chatRepo, userRepo)
	exchangeService := exchange.NewService(exchangeRepo, bookRepo)

	// Realtime gateway, scoped to the server lifecycle.
	hub := chat.NewHub(redisClient, chatService)
	go hub.Run(ctx)
	go hub.SubscribeToRedis(ctx)

	chatHandler := chat.NewHandler(hub, chatService)
	exchangeHandler := exchange.NewHandler(exchangeService)

	authMiddleware := middleware.NewAuthMiddleware(func(tokenString string) (int64, string, error) {
		claims, err := auth.ValidateToken(cfg.JWTSecret, tokenString)
		if err != nil {
			return 0, "", err
		}
		return claims.UserID, claims.Username, nil
	})

	// Routes.
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		// WebSocket (real-time).
		r.Get("/ws", chatHandler.ServeWs)

		// Transaction coordinator.
		r.Post("/api/transactions", exchangeHandler.Create)
		r.Get("/api/transactions", exchangeHandler.ListForBook)
		r.Get("/api/transactions/mine", exchangeHandler.ListMine)
		r.Patch("/api/transactions/{id}/accept", exchangeHandler.Accept)

		// Chat (REST, also the fallback when the live channel is down).
		r.Post("/api/chats/start", chatHandler.StartConversation)
		r.Get("/api/chats", chatHandler.ListConversations)
		r.Get("/api/chats/{id}/messages", chatHandler.ListMessages)
		r.Post("/api/chats/{id}/messages", chatHandler.PostMessage)
		r.Put("/api/chats/{id}/read", chatHandler.MarkRead)
	})

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("server starting on %s", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("server stopped")
}
