package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/internal/audit"
	"github.com/radieske/betting-exchange-poc/internal/shared/config"
	"github.com/radieske/betting-exchange-poc/internal/shared/db"
	"github.com/radieske/betting-exchange-poc/internal/shared/kafka"
	"github.com/radieske/betting-exchange-poc/internal/shared/logger"
	"github.com/radieske/betting-exchange-poc/internal/shared/metrics"
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

	// Postgres: trilha order_audit
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	topics := audit.Topics{
		OrderPlaced:    cfg.TopicOrderPlaced,
		OrderCanceled:  cfg.TopicOrderCanceled,
		CounterUpdated: cfg.TopicOrderCounterUpdated,
	}

	// Kafka consumer: os três tópicos de ordem no mesmo group
	reader := kafka.NewGroupReader(cfg.KafkaBrokers, "order-audit", topics.List()...)
	defer reader.Close()

	// DLQ opcional
	var dlq *kafka.Writer
	if cfg.TopicOrderAuditDLQ != "" {
		dlq = kafka.NewWriter(cfg.KafkaBrokers)
		defer dlq.Close()
	}

	pm := metrics.NewPipeline(prometheus.DefaultRegisterer, "order_audit")
	w := &audit.Worker{
		Log:        log,
		Reader:     reader,
		Store:      audit.NewPostgresStore(pg),
		Topics:     topics,
		DLQTopic:   cfg.TopicOrderAuditDLQ,
		Retries:    cfg.AuditRetries,
		OnConsumed: pm.Consumed.Inc,
		OnAudited:  func(eventType string) { pm.Steps.WithLabelValues(eventType).Inc() },
		OnDLQ:      pm.Step("dlq"),
		OnError:    pm.Error,
	}
	if dlq != nil {
		w.DLQ = dlq
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, pg.PingContext,
		func(err error) { log.Error("metrics server", zap.Error(err)) })
	defer metricsSrv.Close()

	log.Info("audit-worker started",
		zap.Strings("consume", topics.List()),
		zap.String("dlq", cfg.TopicOrderAuditDLQ),
	)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("audit worker stopped with error", zap.Error(err))
	}
	log.Info("audit-worker stopped")
}
