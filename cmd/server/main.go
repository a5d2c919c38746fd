package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitmatch/backend/internal/auth"
	"fitmatch/backend/internal/cache"
	"fitmatch/backend/internal/config"
	"fitmatch/backend/internal/database"
	"fitmatch/backend/internal/enrollment"
	"fitmatch/backend/internal/events"
	"fitmatch/backend/internal/handler"
	"fitmatch/backend/internal/hub"
	"fitmatch/backend/internal/logger"
	"fitmatch/backend/internal/query"
	"fitmatch/backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	// Swagger imports
	_ "fitmatch/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Fitmatch API
// @version         1.0
// @description     Pickup sports matches: publish a match, join and leave it, browse by date and region.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.LoadConfig()

	logFormat := cfg.LogFormat
	if cfg.IsProduction() {
		logFormat = "json"
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: logFormat, ServiceName: "fitmatch"})
	defer func() { _ = log.Sync() }()

	// Connect to the database
	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}

	st := store.New(db, store.WithMaxAttempts(cfg.TxMaxAttempts), store.WithLogger(log))

	var matchCache cache.MatchCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("redis unavailable, caching disabled", "error", err)
		} else {
			defer rdb.Close()
			matchCache = cache.NewRedis(rdb, cfg.CacheTTL, log)
			log.Info("match cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		}
	}

	watchers := hub.NewHub()
	publishers := events.Multi{watchers}
	if cfg.RabbitMQURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventsQueue)
		if err != nil {
			log.Warn("rabbitmq unavailable, events stay in-process", "error", err)
		} else {
			defer amqpPublisher.Close()
			publishers = append(publishers, amqpPublisher)
			log.Info("publishing match events", "queue", cfg.EventsQueue)
		}
	}

	manager := enrollment.NewManager(st,
		enrollment.WithCache(matchCache),
		enrollment.WithPublisher(publishers),
		enrollment.WithLogger(log),
	)
	queries := query.NewService(st, query.WithCache(matchCache))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(handler.Recovery(log), handler.RequestLogger(log))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 routes
	identity := auth.IdentityMiddleware(auth.IdentityConfig{
		JWTSecret:     cfg.JWTSecret,
		DefaultUserID: cfg.DefaultUserID,
	})
	handler.New(manager, queries, watchers, log).RegisterRoutes(router.Group("/api/v1"), identity)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", auth.UserIDHeader, handler.RequestIDHeader},
		ExposedHeaders:   []string{handler.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.StdLog(),
	}
	srv.RegisterOnShutdown(watchers.CloseAll)

	go func() {
		log.Info("server is running", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		log.Info("swagger UI is available", "url", "http://localhost"+cfg.HTTPAddr+"/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped")
}
