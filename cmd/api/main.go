package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/resilient-orders/internal/config"
	"github.com/ariefcatur/resilient-orders/internal/httpx"
	"github.com/ariefcatur/resilient-orders/internal/inventory"
	kafkax "github.com/ariefcatur/resilient-orders/internal/kafka"
	"github.com/ariefcatur/resilient-orders/internal/logger"
	"github.com/ariefcatur/resilient-orders/internal/metrics"
	"github.com/ariefcatur/resilient-orders/internal/orders"
	"github.com/ariefcatur/resilient-orders/internal/postgres"
	"github.com/ariefcatur/resilient-orders/internal/rabbitmq"
	"github.com/ariefcatur/resilient-orders/internal/redisx"
	"github.com/ariefcatur/resilient-orders/internal/resilience"
	"github.com/ariefcatur/resilient-orders/internal/tracing"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type publisher interface {
	orders.EventPublisher
	Close() error
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := logger.Init(cfg.IsDev(), cfg.ServiceName); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()
	for _, w := range cfg.Warnings {
		log.Warn("config", zap.String("detail", w))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.JaegerEndpoint, log)
	if err != nil {
		log.Fatal("tracing init", zap.Error(err))
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.DefaultPoolOptions())
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.MigrateOrders(ctx, db, log); err != nil {
		log.Fatal("migrate orders", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Inventory client
	listener := resilience.Listeners{resilience.LogListener(log), metrics.Listener{}}
	breaker := resilience.NewBreaker("inventory", resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.Failures,
		OpenFor:          cfg.Breaker.OpenFor,
	}, resilience.WithListener(listener))
	if cfg.InventoryURL == "" {
		log.Warn("INVENTORY_URL not set, inventory calls will fail")
	}
	inv := inventory.NewClient(cfg.InventoryURL, inventory.ClientOptions{
		Retries:   cfg.Retry.Count,
		BaseDelay: cfg.Retry.BaseDelay,
		Breaker:   breaker,
		Listener:  listener,
	})

	events := newPublisher(cfg, log)

	placer := orders.NewPlacer(inv, &orders.PgStore{DB: db}, events, log, cfg.ServiceName)
	timeout := inv.PlacementBudget() + 5*time.Second
	log.Info("request timeout", zap.Duration("timeout", timeout))
	router := httpx.NewRouter(log, httpx.WithRequestTimeout(timeout))
	(&httpx.OrdersHandler{
		Placer:    placer,
		Inventory: inv,
		Cache:     redisx.NewOrderCache(rdb),
		Log:       log,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second, WriteTimeout: timeout + 5*time.Second}
	if err := httpx.Serve(ctx, srv, log); err != nil {
		log.Error("http server", zap.Error(err))
	}
	log.Info("shutting down")

	if err := events.Close(); err != nil {
		log.Warn("event publisher close", zap.Error(err))
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}

func newPublisher(cfg config.Config, log *zap.Logger) publisher {
	if cfg.EventBroker == config.BrokerRabbitMQ {
		log.Info("publishing events to rabbitmq")
		return rabbitmq.NewPublisher(rabbitmq.NewSession(cfg.RabbitMQURL, log))
	}
	log.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	p := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	p.Start()
	return p
}
