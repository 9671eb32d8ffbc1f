package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/internal/book-processor/cache"
	"github.com/radieske/betting-exchange-poc/internal/book-processor/consumer"
	"github.com/radieske/betting-exchange-poc/internal/book-processor/pubsub"
	"github.com/radieske/betting-exchange-poc/internal/book-processor/repository"
	sharedcache "github.com/radieske/betting-exchange-poc/internal/shared/cache"
	"github.com/radieske/betting-exchange-poc/internal/shared/config"
	"github.com/radieske/betting-exchange-poc/internal/shared/db"
	"github.com/radieske/betting-exchange-poc/internal/shared/kafka"
	"github.com/radieske/betting-exchange-poc/internal/shared/logger"
	"github.com/radieske/betting-exchange-poc/internal/shared/metrics"
	"github.com/radieske/betting-exchange-poc/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	rcache := cache.NewRedisCache(redisClient, cfg.BookCacheTTL)
	repo := repository.NewPostgresRepo(pg)

	// consumer group book-processor; a chave do book garante ordem por partição
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBookSnapshots, "book-processor")
	defer reader.Close()

	pm := metrics.NewPipeline(prometheus.DefaultRegisterer, "book_proc")
	broadcaster := pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Repo:       repo,
		Cache:      rcache,
		OnConsumed: pm.Consumed.Inc,
		OnCached:   pm.Step("cached"),
		OnPersist:  pm.Step("persisted"),
		OnStale:    pm.Step("stale"),
		OnError:    pm.Error,

		// Após persistir, envia o snapshot para o WebSocket via Redis Pub/Sub
		OnAfterPersist: func(ctx context.Context, ev events.BookSnapshot) {
			pctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
			if err := broadcaster.PublishSnapshot(pctx, ev); err != nil {
				log.Warn("ws broadcast publish failed", zap.Error(err))
				pm.Error("broadcast")
			}
		},
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.All(map[string]metrics.HealthFunc{
		"pg":    pg.PingContext,
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}), func(err error) { log.Error("metrics server", zap.Error(err)) })
	defer metricsSrv.Close()
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	log.Info("book-processor started", zap.String("topic", cfg.TopicBookSnapshots))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("book-processor stopped")
}
