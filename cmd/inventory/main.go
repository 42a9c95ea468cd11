package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ariefcatur/resilient-orders/internal/config"
	"github.com/ariefcatur/resilient-orders/internal/httpx"
	"github.com/ariefcatur/resilient-orders/internal/inventory"
	kafkax "github.com/ariefcatur/resilient-orders/internal/kafka"
	"github.com/ariefcatur/resilient-orders/internal/logger"
	"github.com/ariefcatur/resilient-orders/internal/orders"
	"github.com/ariefcatur/resilient-orders/internal/postgres"
	"github.com/ariefcatur/resilient-orders/internal/rabbitmq"
	"github.com/ariefcatur/resilient-orders/internal/tracing"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-inventory"
	if err := logger.Init(cfg.IsDev(), service); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()
	for _, w := range cfg.Warnings {
		log.Warn("config", zap.String("detail", w))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(service, cfg.JaegerEndpoint, log)
	if err != nil {
		log.Fatal("tracing init", zap.Error(err))
	}

	// Ledger
	var store inventory.StockStore
	if cfg.InventoryStore == config.StoreMemory {
		log.Info("using in-memory stock ledger")
		store = inventory.NewMemoryStore(postgres.SeedStock)
	} else {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.DefaultPoolOptions())
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.MigrateInventory(ctx, db, log); err != nil {
			log.Fatal("migrate inventory", zap.Error(err))
		}
		store = &inventory.PgStore{DB: db}
	}

	// Reconciliation consumer
	rec := &inventory.Reconciler{Store: store, Log: log}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consume(ctx, cfg, rec, log); err != nil {
			log.Error("consumer exit", zap.Error(err))
			stop()
		}
	}()

	router := httpx.NewRouter(log)
	(&httpx.InventoryHandler{Store: store, Log: log}).Register(router)
	srv := &http.Server{Addr: cfg.InventoryHTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	if err := httpx.Serve(ctx, srv, log); err != nil {
		log.Error("http server", zap.Error(err))
		stop()
	}
	log.Info("shutting down")
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}

func consume(ctx context.Context, cfg config.Config, rec *inventory.Reconciler, log *zap.Logger) error {
	if cfg.EventBroker == config.BrokerRabbitMQ {
		s := rabbitmq.NewSession(cfg.RabbitMQURL, log)
		defer s.Close()
		log.Info("inventory consumer started", zap.String("broker", "rabbitmq"), zap.String("queue", orders.TopicOrderCreated))
		return rabbitmq.NewConsumer(s, orders.TopicOrderCreated, log).Start(ctx, rec.HandleOrderCreated)
	}
	log.Info("inventory consumer started",
		zap.String("broker", "kafka"),
		zap.String("group", cfg.InventoryGroup),
		zap.String("topic", orders.TopicOrderCreated),
		zap.Int("workers", cfg.InventoryWorkers),
	)
	c := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, orders.TopicOrderCreated, cfg.InventoryWorkers, log)
	return c.Start(ctx, kafkax.Values(rec.HandleOrderCreated))
}
