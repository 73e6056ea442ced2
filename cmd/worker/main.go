package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/boutique-orders/internal/config"
	"github.com/ariefcatur/boutique-orders/internal/events"
	"github.com/ariefcatur/boutique-orders/internal/imagepurge"
	"github.com/ariefcatur/boutique-orders/internal/images"
	kafkax "github.com/ariefcatur/boutique-orders/internal/kafka"
	"github.com/ariefcatur/boutique-orders/internal/logging"
	"github.com/ariefcatur/boutique-orders/internal/redisx"
	"github.com/ariefcatur/boutique-orders/internal/tracing"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	service := cfg.ServiceName + "-worker"
	logger, err := logging.New(service, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.ValidateWorker(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, service, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	svc := &imagepurge.Service{
		Images: images.NewHTTPStore(cfg.ImageStoreURL, cfg.ImageStoreToken),
		Logger: logger.Named("imagepurge"),
	}
	if cfg.RedisAddr != "" {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		svc.Dedup = redisx.NewDeduper(rdb, service)
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, events.TopicProductDeleted, cfg.WorkerCount, logger)
	logger.Info("consumer started",
		zap.String("group", cfg.WorkerGroup),
		zap.String("topic", events.TopicProductDeleted),
		zap.Int("workers", cfg.WorkerCount))

	if err := cons.Start(ctx, svc.HandleProductDeleted); err != nil {
		logger.Error("consumer exit", zap.Error(err))
	}
	logger.Info("worker stopped")
}
