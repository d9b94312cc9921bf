package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shopworks/fulfillment/internal/adapter/broker"
	"github.com/shopworks/fulfillment/internal/adapter/client"
	"github.com/shopworks/fulfillment/internal/adapter/handler"
	"github.com/shopworks/fulfillment/internal/adapter/storage"
	"github.com/shopworks/fulfillment/internal/auth"
	"github.com/shopworks/fulfillment/internal/config"
	"github.com/shopworks/fulfillment/internal/core/service"
	"github.com/shopworks/fulfillment/internal/event"
	"github.com/shopworks/fulfillment/internal/pkg/logging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger("product-service")
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.CacheTTL)

	productService := service.NewProductService(mysqlAdapter, redisAdapter, logger)

	userClient := client.NewUserClient(cfg.UserServiceURL, cfg.LookupTimeout)
	productUpdated := broker.NewPublisher(cfg.KafkaBrokers, event.TopicProductUpdated)
	defer productUpdated.Close()

	fulfillment := service.NewFulfillmentService(mysqlAdapter, redisAdapter, userClient, productUpdated, logger)

	reader := broker.NewGroupReader(cfg.KafkaBrokers, event.GroupProductService, event.TopicOrderCreated)
	deadLetter := broker.NewPublisher(cfg.KafkaBrokers, event.DeadLetterTopic(event.TopicOrderCreated))
	defer deadLetter.Close()

	consumer := broker.NewConsumer(reader, deadLetter, fulfillment.Handle, cfg.MaxRetries, cfg.RetryBackoff, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("order-created consumer started", zap.String("group", event.GroupProductService))
		if err := consumer.Run(ctx); err != nil {
			logger.Error("consumer stopped", zap.Error(err))
		}
	}()

	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	productHandler := handler.NewProductHandler(productService)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", productHandler.HealthCheck)
	mux.HandleFunc("GET /products", handler.RequireAuth(tokens, productHandler.Search))
	mux.HandleFunc("GET /products/{id}", handler.RequireAuth(tokens, productHandler.Get))
	mux.HandleFunc("POST /products", handler.RequireAuth(tokens, productHandler.Create))
	mux.HandleFunc("PATCH /products/{id}", handler.RequireAuth(tokens, productHandler.Update))
	mux.HandleFunc("DELETE /products/{id}", handler.RequireAuth(tokens, productHandler.Delete))

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

	cancel()
	reader.Close()
	wg.Wait()
	logger.Info("consumer stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
