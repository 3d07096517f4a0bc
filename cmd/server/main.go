package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jw6ventures/tuition/internal/auth"
	"github.com/jw6ventures/tuition/internal/config"
	httpserver "github.com/jw6ventures/tuition/internal/http"
	"github.com/jw6ventures/tuition/internal/live"
	"github.com/jw6ventures/tuition/internal/store"
	"github.com/jw6ventures/tuition/internal/store/memstore"
	"github.com/jw6ventures/tuition/internal/validation"
)

func main() {
	log.Println("Starting tuition portal...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		stor *store.Store
		pool *pgxpool.Pool
	)
	switch cfg.Store {
	case config.StoreMemory:
		log.Println("[WARN] using in-memory store; data is lost on restart")
		stor = memstore.New()
	default:
		pool, err = pgxpool.New(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatalf("failed to create db pool: %v", err)
		}
		defer pool.Close()
		if err := store.ApplyMigrations(ctx, pool); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
		stor = store.New(pool)
	}

	for _, email := range cfg.AdminEmails {
		if err := stor.Admins.Add(ctx, email); err != nil {
			log.Fatalf("failed to seed admin %s: %v", email, err)
		}
	}

	var feed live.Feed
	switch cfg.Live.Feed {
	case config.FeedPostgres:
		feed = live.NewPostgresFeed(pool, cfg.Live.Channel)
	case config.FeedRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		feed = live.NewRedisFeed(client, cfg.Live.Channel)
	default:
		feed = live.NewMemoryFeed()
	}
	log.Printf("live chat feed: %s", cfg.Live.Feed)

	hub := live.NewHub(stor.ChatMessages)
	go func() {
		if err := hub.Run(ctx, feed); err != nil {
			log.Printf("[ERROR] live feed stopped: %v", err)
		}
	}()
	chat := live.NewChatService(stor.ChatMessages, feed, validation.New(cfg.ChatMaxLength))

	sessions := auth.NewSessionManager(cfg)
	authService, err := auth.NewService(ctx, cfg, sessions, auth.NewResolver(stor.Admins))
	if err != nil {
		log.Fatalf("failed to initialize auth service: %v", err)
	}

	router := httpserver.NewRouter(cfg, stor, authService, hub, chat)
	defer router.Close()

	// No WriteTimeout: chat streams stay open and manage their own deadlines.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
