package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BearBump/OrderBox/config"
	"github.com/BearBump/OrderBox/internal/broker/kafka"
	"github.com/BearBump/OrderBox/internal/cache/rediscache"
	"github.com/BearBump/OrderBox/internal/docstore"
	"github.com/BearBump/OrderBox/internal/docstore/memdocs"
	"github.com/BearBump/OrderBox/internal/services/retention"
	"github.com/BearBump/OrderBox/internal/services/sweeper"
	"github.com/BearBump/OrderBox/internal/storage/mongoorders"
	"github.com/BearBump/OrderBox/internal/storage/pgorders"
)

type sweeperFactories struct {
	newStore       func(cfg *config.Config) (st docstore.Store, closeFn func(), err error)
	newPublisher   func(cfg *config.Config) (pub retention.Publisher, closeFn func())
	newRateLimiter func(cfg *config.Config) sweeper.RateLimiter
}

func defaultSweeperFactories() sweeperFactories {
	return sweeperFactories{
		newStore: func(cfg *config.Config) (docstore.Store, func(), error) {
			switch cfg.OrderBox.Store {
			case config.StoreMongo:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				st, err := mongoorders.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
				if err != nil {
					return nil, nil, err
				}
				return st, st.Close, nil
			case config.StoreMemory:
				return memdocs.New(), nil, nil
			case config.StorePostgres, "":
				st, err := pgorders.New(cfg.Database.ConnString())
				if err != nil {
					return nil, nil, err
				}
				return st, st.Close, nil
			}
			return nil, nil, fmt.Errorf("unknown store %q", cfg.OrderBox.Store)
		},
		newPublisher: func(cfg *config.Config) (retention.Publisher, func()) {
			topic := cfg.Kafka.LifecycleTopicName
			if topic == "" {
				topic = "order.lifecycle"
			}
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return kafka.NewLifecyclePublisher(p, topic), func() { _ = p.Close() }
		},
		newRateLimiter: func(cfg *config.Config) sweeper.RateLimiter {
			perMin := int64(cfg.OrderBox.SweeperPurgesPerMinute)
			if perMin <= 0 {
				perMin = 600
			}
			rc := rediscache.New(cfg.Redis.Addr())
			return rediscache.NewRateLimiter(rc.Client(), perMin, time.Minute)
		},
	}
}

// RunRetentionSweeper собирает sweeper и крутит его вместе с ops HTTP до отмены ctx.
func RunRetentionSweeper(ctx context.Context, cfg *config.Config, f sweeperFactories) error {
	interval := time.Duration(cfg.OrderBox.SweeperIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	batchSize := cfg.OrderBox.SweeperBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	concurrency := cfg.OrderBox.SweeperConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	st, closeFn, err := f.newStore(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	pub, closePub := f.newPublisher(cfg)
	if closePub != nil {
		defer closePub()
	}

	rm := retention.New(st, pub).WithActor("retention-sweeper")
	sw := sweeper.New(rm, f.newRateLimiter(cfg)).
		WithSettings(interval, batchSize, concurrency).
		WithReconcile(cfg.OrderBox.SweeperReconcile)

	httpErr := make(chan error, 1)
	if swaggerPath := os.Getenv("sweeperSwaggerPath"); swaggerPath != "" {
		go func() {
			httpErr <- runSweeperHTTPServer(ctx, sweeperHTTPOpts{
				httpAddr:    cfg.OrderBox.SweeperHTTPAddr,
				swaggerPath: swaggerPath,
				sweeper:     sw,
				cfg:         cfg,
			})
		}()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- sw.Run(ctx) }()

	select {
	case err := <-runErr:
		return err
	case err := <-httpErr:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
}
