package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shopworks/fulfillment/internal/adapter/broker"
	"github.com/shopworks/fulfillment/internal/adapter/notify"
	"github.com/shopworks/fulfillment/internal/adapter/storage"
	"github.com/shopworks/fulfillment/internal/config"
	"github.com/shopworks/fulfillment/internal/core/service"
	"github.com/shopworks/fulfillment/internal/event"
	"github.com/shopworks/fulfillment/internal/pkg/logging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger("notifier")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	redisAdapter := storage.NewRedisAdapter(rdb, cfg.CacheTTL)
	notifier := notify.NewSMTPNotifier(cfg.SMTPAddr, cfg.SMTPFrom)
	notificationService := service.NewNotificationService(redisAdapter, notifier, logger)

	reader := broker.NewGroupReader(cfg.KafkaBrokers, event.GroupUserService, event.TopicProductUpdated)
	deadLetter := broker.NewPublisher(cfg.KafkaBrokers, event.DeadLetterTopic(event.TopicProductUpdated))
	defer deadLetter.Close()

	consumer := broker.NewConsumer(reader, deadLetter, notificationService.Handle, cfg.MaxRetries, cfg.RetryBackoff, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("product-updated consumer started", zap.String("group", event.GroupUserService))
		if err := consumer.Run(ctx); err != nil {
			logger.Error("consumer stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	cancel()
	reader.Close()
	wg.Wait()
	logger.Info("consumer stopped")

	rdb.Close()
	logger.Info("connections closed")
}
