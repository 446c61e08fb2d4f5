package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/OrderBox/config"
	ordersapi "github.com/BearBump/OrderBox/internal/api/orders_api"
	"github.com/BearBump/OrderBox/internal/broker/kafka"
	"github.com/BearBump/OrderBox/internal/cache/rediscache"
	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/docstore/memdocs"
	"github.com/BearBump/OrderBox/internal/integrations/photos"
	"github.com/BearBump/OrderBox/internal/integrations/photos/cdnhttp"
	"github.com/BearBump/OrderBox/internal/integrations/photos/fake"
	"github.com/BearBump/OrderBox/internal/services/orders"
	"github.com/BearBump/OrderBox/internal/services/retention"
	"github.com/BearBump/OrderBox/internal/services/synctime"
	"github.com/BearBump/OrderBox/internal/storage/mongoorders"
	"github.com/BearBump/OrderBox/internal/storage/pgorders"
)

type orderAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     orderAPIOpts
	deps     orderAPIDeps
	consumer *kafka.Consumer
	producer *kafka.Producer
	cache    *rediscache.RedisCache
	closeDB  func()
}

// sharedStore: документы заказов плюс общие метки синхронизации.
type sharedStore interface {
	docstore.Store
	synctime.SharedStore
}

func mustBootstrapOrderAPI() *orderAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.OrderBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.OrderBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "order-api"
	}
	syncTopic := cfg.Kafka.CatalogSyncedTopicName
	if syncTopic == "" {
		syncTopic = "catalog.synced"
	}
	lifecycleTopic := cfg.Kafka.LifecycleTopicName
	if lifecycleTopic == "" {
		lifecycleTopic = "order.lifecycle"
	}
	photoTTL := time.Duration(cfg.OrderBox.PhotoCacheTTLSeconds) * time.Second
	if photoTTL <= 0 {
		photoTTL = time.Hour
	}

	st, closeDB := mustOpenStore(cfg, 60*time.Second)

	rc := rediscache.New(cfg.Redis.Addr())

	producer := kafka.NewProducer(cfg.Kafka.Brokers())
	rm := retention.New(st, kafka.NewLifecyclePublisher(producer, lifecycleTopic)).
		WithBulkWorkers(cfg.OrderBox.BulkWorkers).
		WithActor("order-api")

	var shared synctime.SharedStore
	if s, ok := st.(synctime.SharedStore); ok {
		shared = s
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers(), syncTopic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &orderAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: orderAPIOpts{
			httpAddr:         httpAddr,
			swaggerPath:      swaggerPath,
			topic:            syncTopic,
			consumerGroup:    consumerGroup,
			syncPollInterval: time.Duration(cfg.OrderBox.SyncPollIntervalSeconds) * time.Second,
		},
		deps: orderAPIDeps{
			orders:    orders.New(st, newPhotoClient(cfg, rc, photoTTL)),
			retention: rm,
			sync:      synctime.New(rc, shared),
			auth:      newAuthorizer(cfg),
			consumer:  consumer,
		},
		consumer: consumer,
		producer: producer,
		cache:    rc,
		closeDB:  closeDB,
	}
}

func newPhotoClient(cfg *config.Config, rc *rediscache.RedisCache, ttl time.Duration) photos.Client {
	if cfg.OrderBox.PhotoCDNBaseURL == "" {
		return fake.New("")
	}
	return cdnhttp.New(cfg.OrderBox.PhotoCDNBaseURL, cfg.OrderBox.PhotoCDNAPIKey).WithCache(rc, ttl)
}

func newAuthorizer(cfg *config.Config) ordersapi.Authorizer {
	if cfg.OrderBox.JWTSecret == "" {
		slog.Warn("jwt secret is empty, admin routes are open", "env", config.EnvJWTSecret)
		return ordersapi.AllowAll{}
	}
	return ordersapi.NewJWTAuthorizer(cfg.OrderBox.JWTSecret)
}

func mustOpenStore(cfg *config.Config, wait time.Duration) (docstore.Store, func()) {
	switch cfg.OrderBox.Store {
	case config.StoreMemory:
		slog.Warn("using in-memory order store, data is lost on restart")
		return memdocs.New(), func() {}
	case config.StoreMongo:
		st := mustOpenWithRetry("mongo", wait, func() (*mongoorders.Storage, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return mongoorders.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		})
		return st, st.Close
	case config.StorePostgres, "":
		st := mustOpenWithRetry("postgres", wait, func() (*pgorders.Storage, error) {
			return pgorders.New(cfg.Database.ConnString())
		})
		return st, st.Close
	}
	panic(fmt.Sprintf("unknown store %q", cfg.OrderBox.Store))
}

func mustOpenWithRetry[T sharedStore](name string, wait time.Duration, open func() (T, error)) T {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := open()
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("%s is not ready after %s: %v", name, wait, lastErr))
}

func (a *orderAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *orderAPIApp) Run() error {
	return runOrderAPI(a.ctx, a.opts, a.deps)
}
