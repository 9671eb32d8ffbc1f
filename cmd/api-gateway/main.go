package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/internal/gateway"
	"github.com/radieske/betting-exchange-poc/internal/shared/config"
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

	h, err := gateway.New(log, gateway.Targets{
		Exchange: cfg.ExchangeURL,
		BookFeed: cfg.BookFeedURL,
	}, cfg.AllowedOrigins)
	if err != nil {
		log.Fatal("gateway config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil,
		func(err error) { log.Error("metrics server", zap.Error(err)) })

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("api-gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("exchange", cfg.ExchangeURL),
			zap.String("books", cfg.BookFeedURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("gateway failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
