package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shopworks/fulfillment/internal/adapter/handler"
	"github.com/shopworks/fulfillment/internal/adapter/storage"
	"github.com/shopworks/fulfillment/internal/auth"
	"github.com/shopworks/fulfillment/internal/config"
	"github.com/shopworks/fulfillment/internal/core/service"
	"github.com/shopworks/fulfillment/internal/pkg/logging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger("user-service")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	userAdapter := storage.NewMySQLUserAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.CacheTTL)

	userService := service.NewUserService(userAdapter, redisAdapter, logger)
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	userHandler := handler.NewUserHandler(userService, tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", userHandler.HealthCheck)
	mux.HandleFunc("POST /auth/login", userHandler.Login)
	mux.HandleFunc("POST /users", userHandler.Create)
	// Lookup stays open: the fulfillment consumer calls it service-to-service.
	mux.HandleFunc("GET /users/{id}", userHandler.Get)
	mux.HandleFunc("PUT /users/{id}", handler.RequireAuth(tokens, userHandler.Update))
	mux.HandleFunc("DELETE /users/{id}", handler.RequireAuth(tokens, userHandler.Delete))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
