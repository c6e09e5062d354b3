package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	feedcache "github.com/midnightgrind/race-wager-platform/internal/live-feed/cache"
	httpapi "github.com/midnightgrind/race-wager-platform/internal/live-feed/http"
	"github.com/midnightgrind/race-wager-platform/internal/live-feed/repo"
	"github.com/midnightgrind/race-wager-platform/internal/live-feed/ws"
	"github.com/midnightgrind/race-wager-platform/internal/shared/cache"
	"github.com/midnightgrind/race-wager-platform/internal/shared/config"
	"github.com/midnightgrind/race-wager-platform/internal/shared/db"
	"github.com/midnightgrind/race-wager-platform/internal/shared/logger"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// conecta com db Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	log.Info("postgres connected")

	// conecta com cache Redis
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// API REST + hub WebSocket alimentado pelo Redis Pub/Sub
	api := &httpapi.API{
		ReadRepo: &repo.ReadRepo{DB: pg},
		Cache:    feedcache.New(redisClient),
	}
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)

	appMux := http.NewServeMux()
	appMux.Handle("/", api.Router())
	appMux.HandleFunc("/ws", hub.HandleWS)

	// sobe servidor de métricas e health
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			hctx, hcancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer hcancel()

			if err := pg.PingContext(hctx); err != nil {
				http.Error(w, "postgres not healthy: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
			if err := redisClient.Ping(hctx).Err(); err != nil {
				http.Error(w, "redis not healthy: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		addr := ":" + cfg.MetricsPort
		log.Info("metrics/health server starting", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: appMux,
	}
	log.Info("live feed server starting", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("http server failed", zap.Error(err))
	}
}
