package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	ordersapi "github.com/BearBump/OrderBox/internal/api/orders_api"
	"github.com/BearBump/OrderBox/internal/broker/messages"
	"github.com/BearBump/OrderBox/internal/models"
	"github.com/BearBump/OrderBox/internal/services/orders"
	"github.com/BearBump/OrderBox/internal/services/retention"
	"github.com/BearBump/OrderBox/internal/services/synctime"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type orderAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	syncPollInterval time.Duration

	onListen func(httpAddr string)
}

type catalogConsumer interface {
	ConsumeCatalogSynced(ctx context.Context, handler func(ctx context.Context, msg messages.CatalogSynced) error) error
}

type orderAPIDeps struct {
	orders    *orders.Service
	retention *retention.Manager
	sync      *synctime.Store
	auth      ordersapi.Authorizer
	consumer  catalogConsumer
}

func runOrderAPI(ctx context.Context, opts orderAPIOpts, deps orderAPIDeps) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, opts.swaggerPath, ordersapi.New(deps.orders, deps.retention, deps.sync, deps.auth))
	}()

	if deps.consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			err := deps.consumer.ConsumeCatalogSynced(ctx, func(ctx context.Context, msg messages.CatalogSynced) error {
				return applyCatalogSynced(ctx, deps.sync, msg, time.Now)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("kafka consumer stopped", "topic", opts.topic, "error", err.Error())
			}
		}()
	}

	// Другие экземпляры пишут метки в общее хранилище; здесь только видим их.
	stop := deps.sync.Subscribe(opts.syncPollInterval, func(t models.SyncType, value string) {
		slog.Info("sync timestamp changed", "type", string(t), "value", value)
	})
	defer stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

// applyCatalogSynced records a finished catalog export. Unknown types are
// skipped so one bad producer does not stall the partition.
func applyCatalogSynced(ctx context.Context, st *synctime.Store, msg messages.CatalogSynced, now func() time.Time) error {
	t := models.SyncType(msg.Type)
	if !t.Valid() {
		slog.Warn("skip catalog.synced with unknown type", "type", msg.Type)
		return nil
	}
	ts := msg.Timestamp
	if ts == "" {
		ts = now().UTC().Format(time.RFC3339)
	}
	if err := st.Set(ctx, t, ts); err != nil {
		return err
	}
	slog.Info("sync timestamp recorded", "type", string(t), "timestamp", ts)
	return nil
}

func runHTTPServer(ctx context.Context, lis net.Listener, swaggerPath string, api *ordersapi.OrdersAPI) error {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	api.Register(r)

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
