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

	"github.com/ariefcatur/boutique-orders/internal/catalog"
	"github.com/ariefcatur/boutique-orders/internal/config"
	"github.com/ariefcatur/boutique-orders/internal/events"
	"github.com/ariefcatur/boutique-orders/internal/httpx"
	kafkax "github.com/ariefcatur/boutique-orders/internal/kafka"
	"github.com/ariefcatur/boutique-orders/internal/logging"
	"github.com/ariefcatur/boutique-orders/internal/memstore"
	"github.com/ariefcatur/boutique-orders/internal/orders"
	"github.com/ariefcatur/boutique-orders/internal/postgres"
	"github.com/ariefcatur/boutique-orders/internal/redisx"
	"github.com/ariefcatur/boutique-orders/internal/tracing"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("tracing", zap.Error(err))
	}

	// Stores
	var (
		repo   catalog.Repository
		ledger orders.Ledger
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory stores; data is lost on restart")
		repo, ledger = memstore.NewCatalog(), memstore.NewLedger()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		repo, ledger = &postgres.CatalogStore{DB: db}, &postgres.OrderLedger{DB: db}
	}

	// Kafka producer
	var pub events.Publisher = events.Discard{}
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
		prod.Start(ctx)
		pub = prod
	} else {
		logger.Info("KAFKA_BROKERS not set, events are not published")
	}

	// Redis
	ordersHandler := &httpx.OrdersHandler{Logger: logger}
	if cfg.RedisAddr != "" {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		ordersHandler.Cache = redisx.NewOrderCache(rdb)
		ordersHandler.Idem = redisx.NewIdempotency(rdb)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ordersHandler.Service = orders.NewService(repo, ledger,
		orders.WithEvents(pub, cfg.ServiceName),
		orders.WithLogger(logger.Named("orders")),
		orders.WithMetrics(orders.NewMetrics(reg)),
	)
	router := httpx.NewRouter(httpx.RouterDeps{
		Orders: ordersHandler,
		Products: &httpx.ProductsHandler{
			Service: catalog.NewService(repo, pub, logger.Named("catalog"), cfg.ServiceName),
			Logger:  logger,
		},
		JWTSecret: []byte(cfg.JWTSecret),
		Logger:    logger.Named("http"),
		Gatherer:  reg,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		// handlers may still be running; late events get ErrProducerClosed
		logger.Warn("http shutdown", zap.Error(err))
	}
	if prod != nil {
		prod.Close() // close inbox -> flush & close writer
		prod.WaitClosed()
	}
	cancel()
	if err := shutdownTracing(ctx2); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
