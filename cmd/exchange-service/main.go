package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	xhttp "github.com/radieske/betting-exchange-poc/internal/exchange/http"
	xmetrics "github.com/radieske/betting-exchange-poc/internal/exchange/metrics"
	"github.com/radieske/betting-exchange-poc/internal/exchange/placement"
	"github.com/radieske/betting-exchange-poc/internal/exchange/producer"
	"github.com/radieske/betting-exchange-poc/internal/exchange/receipt"
	"github.com/radieske/betting-exchange-poc/internal/exchange/repo"
	"github.com/radieske/betting-exchange-poc/internal/exchange/wallet"
	"github.com/radieske/betting-exchange-poc/internal/shared/cache"
	"github.com/radieske/betting-exchange-poc/internal/shared/clock"
	"github.com/radieske/betting-exchange-poc/internal/shared/config"
	"github.com/radieske/betting-exchange-poc/internal/shared/db"
	"github.com/radieske/betting-exchange-poc/internal/shared/kafka"
	"github.com/radieske/betting-exchange-poc/internal/shared/logger"
	"github.com/radieske/betting-exchange-poc/internal/shared/metrics"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/topics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres: books, ordens e mercados
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Env == "local" {
		files, err := db.ApplyMigrations(ctx, pg, "migrations")
		if err != nil {
			log.Fatal("migrations", zap.Error(err))
		}
		log.Info("migrations applied", zap.Int("files", len(files)))
	}

	// Redis só entra no health: o book-feed depende dele
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka: um writer para todos os tópicos, chave = book
	if cfg.Env == "local" || cfg.Env == "dev" {
		if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, topics.All, log); err != nil {
			log.Warn("ensure topics", zap.Error(err))
		}
	}
	writer := kafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	// deps
	store := repo.NewPostgres(pg)
	svc := placement.NewService(log, placement.Deps{
		Clock:    clock.System{},
		Markets:  store,
		Admin:    store,
		Store:    store,
		Custody:  wallet.New(cfg.WalletURL),
		Receipts: receipt.UUIDIssuer{},
		Notifier: producer.NewKafkaPublisher(writer, producer.Topics{
			OrderPlaced:    cfg.TopicOrderPlaced,
			OrderCanceled:  cfg.TopicOrderCanceled,
			CounterUpdated: cfg.TopicOrderCounterUpdated,
			BookSnapshots:  cfg.TopicBookSnapshots,
		}),
		Metrics: xmetrics.NewExchange(prometheus.DefaultRegisterer),
	})

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.All(map[string]metrics.HealthFunc{
		"pg":    pg.PingContext,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}), func(err error) { log.Error("metrics server", zap.Error(err)) })
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	// HTTP público
	api := xhttp.NewServer(log, svc, store)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("exchange-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
