package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"io.winapps.huddle/internal/config"
	"io.winapps.huddle/internal/db"
	firebaseutil "io.winapps.huddle/internal/firebase"
	"io.winapps.huddle/internal/handlers"
	"io.winapps.huddle/internal/logging"
	"io.winapps.huddle/internal/metrics"
	"io.winapps.huddle/internal/middleware"
)

// repository is what both the handlers and the auth middleware need.
type repository interface {
	handlers.Repository
	middleware.SessionResolver
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var repo repository
	switch cfg.StoreBackend {
	case "memory":
		logger.Warnw("using in-memory store, data is lost on restart")
		mem := db.NewMemoryRepository()
		for token, uid := range cfg.DevSessions {
			mem.AddSession(token, uid)
		}
		repo = mem
	default:
		pool, err := db.InitPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalw("Failed to initialize PostgreSQL", "error", err)
		}
		defer pool.Close()
		repo = db.NewPostgresRepository(pool)
	}

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient, err = db.InitRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Fatalw("Failed to initialize Redis", "error", err)
		}
		defer redisClient.Close()
	}

	var sender handlers.Sender
	var verifier middleware.IDTokenVerifier
	firebaseApp, err := firebaseutil.InitFirebase(ctx, cfg.Firebase)
	if err != nil {
		logger.Warnw("Firebase unavailable, test pushes will not be delivered", "error", err)
	} else {
		if s, err := firebaseutil.NewSender(ctx, firebaseApp); err != nil {
			logger.Warnw("FCM client unavailable", "error", err)
		} else {
			sender = s
		}
		if v, err := firebaseutil.NewAuthVerifier(ctx, firebaseApp); err != nil {
			logger.Warnw("Firebase Auth unavailable", "error", err)
		} else {
			verifier = v
		}
	}

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	router := handlers.NewRouter(handlers.RouterConfig{
		Notifications: handlers.NewNotificationsHandler(repo, sender, redisClient, m, logger.Named("notifications")),
		Auth: middleware.AuthMiddleware(middleware.AuthConfig{
			Sessions: repo,
			Cache:    redisClient,
			Verifier: verifier,
			Logger:   logger.Named("auth"),
		}),
		Metrics: m,
		Logger:  logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infow("Server starting", "port", cfg.Port, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infow("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("Server forced to shutdown", "error", err)
	}

	logger.Infow("Server exited")
}
