package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/betting-exchange-poc/internal/book-feed/cache"
	httpapi "github.com/radieske/betting-exchange-poc/internal/book-feed/http"
	"github.com/radieske/betting-exchange-poc/internal/book-feed/repo"
	"github.com/radieske/betting-exchange-poc/internal/book-feed/ws"
	sharedcache "github.com/radieske/betting-exchange-poc/internal/shared/cache"
	"github.com/radieske/betting-exchange-poc/internal/shared/config"
	"github.com/radieske/betting-exchange-poc/internal/shared/db"
	"github.com/radieske/betting-exchange-poc/internal/shared/logger"
	"github.com/radieske/betting-exchange-poc/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// conecta com db Postgres
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	// conecta com cache Redis
	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	// WS: repassa o que o book-processor publica no Redis
	hub := ws.NewHub(log, allowOrigin(cfg.AllowedOrigins))
	ws.StartRedisSubscriber(ctx, log, redisClient, cfg.RedisPubSubChannel, hub)

	api := &httpapi.API{
		Log:      log,
		ReadRepo: &repo.ReadRepo{DB: pg},
		Cache:    cache.New(redisClient),
		CacheTTL: cfg.BookCacheTTL,
		WS:       hub,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.All(map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}), func(err error) { log.Error("metrics server failed", zap.Error(err)) })

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("book-feed listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("book-feed stopped")
}

// allowOrigin: "*" libera qualquer origem; senão compara com a lista
func allowOrigin(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
