package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/internal/shared/config"
	"github.com/radieske/betting-exchange-poc/internal/shared/logger"
	"github.com/radieske/betting-exchange-poc/internal/shared/metrics"
	"github.com/radieske/betting-exchange-poc/internal/simulator"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := simulator.New(log, simulator.NewClient(cfg.ExchangeURL), simulator.Config{
		Interval:  500 * time.Millisecond,
		Users:     []string{"sim-alice", "sim-bob", "sim-carol", "sim-dave"},
		MinOdds:   150,
		MaxOdds:   450,
		MaxUnits:  20,
		MarketTTL: 15 * time.Minute,
	}, prometheus.DefaultRegisterer, time.Now().UnixNano())

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil,
		func(err error) { log.Error("metrics server", zap.Error(err)) })
	defer metricsSrv.Close()

	log.Info("order-simulator started", zap.String("exchange", cfg.ExchangeURL))
	if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("simulator stopped", zap.Error(err))
	}
}
