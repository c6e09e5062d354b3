package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	ghttp "github.com/midnightgrind/race-wager-platform/internal/garage-service/http"
	grepo "github.com/midnightgrind/race-wager-platform/internal/garage-service/repo"
	"github.com/midnightgrind/race-wager-platform/internal/shared/config"
	"github.com/midnightgrind/race-wager-platform/internal/shared/db"
	"github.com/midnightgrind/race-wager-platform/internal/shared/logger"
)

func main() {
	cfg := config.Load()

	// Inicializa logger estruturado
	log, err := logger.New("garage-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "garage-service"), zap.String("env", cfg.Env))

	// Conexão com Postgres para garagem, carteira e perfis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Instancia repositório e servidor HTTP da garagem
	repo := grepo.NewPostgres(pg)
	api := ghttp.NewServer(log, repo)

	// Trade locks e cooldowns vencidos saem do caminho já na subida
	startCtx, startCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if n, err := repo.PurgeExpiredLocks(startCtx); err != nil {
		log.Warn("purge expired locks", zap.Error(err))
	} else if n > 0 {
		log.Info("expired locks purged", zap.Int64("count", n))
	}
	startCancel()

	// Servidor HTTP público (API de garagem)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort, // ex: 8082
		Handler: api.Router(),
	}

	// Servidor de métricas e health check
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.PingContext(ctx); err != nil {
			http.Error(w, "pg", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux} // ex: 9098

	// Inicia servidor de métricas/health em goroutine separada
	go func() {
		log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("metrics srv", zap.Error(err))
		}
	}()

	// Inicia servidor principal da API de garagem
	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
