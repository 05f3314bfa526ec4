package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"guestpulse/database"
	"guestpulse/internal/config"
	"guestpulse/internal/microservices/http-api/handler"
	"guestpulse/internal/microservices/http-api/middleware"
	"guestpulse/internal/microservices/http-api/models"
	"guestpulse/internal/microservices/http-api/repository"
	"guestpulse/internal/microservices/http-api/service"
	"guestpulse/internal/microservices/realtime"
	"guestpulse/internal/microservices/websocket"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := newLogger(cfg)

	db, err := database.ConnectDB(cfg, logger)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}
	defer database.Close(db, logger)

	transport, err := realtime.NewRedisTransport(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("could not connect to redis: %v", err)
	}
	defer transport.Close()

	// Repositories
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Services
	router := realtime.NewRouter(transport, logger)
	broadcastLimiter := rate.NewLimiter(rate.Limit(cfg.BroadcastRatePerSec), cfg.BroadcastRatePerSec)
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, router, broadcastLimiter, logger)
	readStateSvc := service.NewReadStateService(notificationRepo, router)
	authSvc := service.NewAuthService(userRepo, cfg)

	gateway := websocket.NewGateway(notificationSvc, transport, logger, realtime.Options{
		PollInterval:    cfg.PollInterval,
		SnapshotTimeout: cfg.SnapshotTimeout,
	})

	// HTTP server
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.GET("/check-conn", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is alive and database connected"})
	})

	authHandler := handler.NewAuthHandler(authSvc)
	authHandler.RegisterRoutes(r.Group("/api/auth"))

	authed := r.Group("/api", middleware.AuthMiddleware(authSvc))
	notifications := authed.Group("/notifications")
	producers := authed.Group("/notifications", middleware.RequireRole(models.RoleAdmin))
	handler.NewNotificationHandler(notificationSvc, readStateSvc).RegisterRoutes(notifications, producers)

	r.GET("/ws/notifications", middleware.AuthMiddleware(authSvc), gateway.Handle)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	logger.Info("server starting", "addr", addr)
	if err := r.Run(addr); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelDebug
	switch cfg.LogLevel {
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h)
}
