package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/shopworks/fulfillment/internal/adapter/broker"
	"github.com/shopworks/fulfillment/internal/adapter/handler"
	"github.com/shopworks/fulfillment/internal/auth"
	"github.com/shopworks/fulfillment/internal/config"
	"github.com/shopworks/fulfillment/internal/core/service"
	"github.com/shopworks/fulfillment/internal/event"
	"github.com/shopworks/fulfillment/internal/pkg/logging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger("order-service")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	publisher := broker.NewPublisher(cfg.KafkaBrokers, event.TopicOrderCreated)
	defer publisher.Close()

	orderService := service.NewOrderService(publisher, logger)
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	orderHandler := handler.NewOrderHandler(orderService)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", orderHandler.HealthCheck)
	mux.HandleFunc("POST /orders", handler.RequireAuth(tokens, orderHandler.Create))

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")
}
