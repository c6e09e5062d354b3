package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/midnightgrind/race-wager-platform/internal/shared/cache"
	"github.com/midnightgrind/race-wager-platform/internal/shared/config"
	"github.com/midnightgrind/race-wager-platform/internal/shared/db"
	"github.com/midnightgrind/race-wager-platform/internal/shared/garageclient"
	"github.com/midnightgrind/race-wager-platform/internal/shared/kafka"
	"github.com/midnightgrind/race-wager-platform/internal/shared/logger"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/consumer"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/engine"
	whttp "github.com/midnightgrind/race-wager-platform/internal/wager-service/http"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/pinkslip"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/producer"
	wrepo "github.com/midnightgrind/race-wager-platform/internal/wager-service/repo"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/simulator"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/sweeper"
)

func main() {
	cfg := config.Load()

	// Inicializa logger estruturado
	log, err := logger.New("wager-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "wager-service"), zap.String("env", cfg.Env))

	// Conexão com Postgres para persistência dos wagers
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis guarda as sessões de confirmação de pink slip
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Kafka producer: publica wager_accepted quando a corrida é agendada
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerAccepted)
	defer writer.Close()
	pub := producer.NewKafkaPublisher(writer, cfg.TopicWagerAccepted)

	// Kafka consumer: desfechos do settlement voltam para o feed recente
	settledReader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		GroupID:  "wager-history",
		Topic:    cfg.TopicWagerSettled,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	defer settledReader.Close()

	// Métricas Prometheus do ciclo de vida dos wagers
	proposed := prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_proposals_total", Help: "propostas de wager criadas"})
	accepted := prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_accepted_total", Help: "wagers aceitos"})
	closedBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_closed_total", Help: "wagers fechados antes da corrida, por estado"}, []string{"state"})
	challenges := prometheus.NewCounter(prometheus.CounterOpts{Name: "pinkslip_challenges_total", Help: "desafios pink slip abertos"})
	settledApplied := prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_settled_applied_total", Help: "desfechos de settlement aplicados ao histórico"})
	prometheus.MustRegister(proposed, accepted, closedBy, challenges, settledApplied)

	repo := wrepo.NewPostgres(pg)
	garage := garageclient.New(cfg.GarageURL)
	sim := simulator.New(cfg.SimulatorHTTPURL)
	store := pinkslip.NewStore(redisClient)
	history := engine.NewHistory()
	rules := engine.Rules{
		MinCurrencyCR: cfg.MinCurrencyWagerCR,
		MaxCurrencyCR: cfg.MaxCurrencyWagerCR,
		TolerancePct:  engine.DefaultRules().TolerancePct,
	}

	api := whttp.NewServer(log, repo, garage, sim, pub, store, rules, history, whttp.Metrics{
		OnProposed:  func() { proposed.Inc() },
		OnAccepted:  func() { accepted.Inc() },
		OnClosed:    func(state string) { closedBy.WithLabelValues(state).Inc() },
		OnChallenge: func() { challenges.Inc() },
	})

	// Varredura de propostas vencidas a cada minuto
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.New(log, repo, garage, history).Run(ctx)

	// Desfechos (completed/disputed) entram no histórico via Kafka
	feed := &consumer.SettledFeed{
		Log:       log,
		Reader:    settledReader,
		History:   history,
		OnApplied: func() { settledApplied.Inc() },
	}
	go func() {
		if err := feed.Run(ctx); err != nil {
			log.Error("settled feed stopped", zap.Error(err))
		}
	}()

	// Servidor HTTP público (API de wagers)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort, // ex: 8083
		Handler: api.Router(),
	}

	// Servidor de métricas e health check
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		hctx, hcancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer hcancel()
		if err := pg.PingContext(hctx); err != nil {
			http.Error(w, "pg", http.StatusServiceUnavailable)
			return
		}
		if err := redisClient.Ping(hctx).Err(); err != nil {
			http.Error(w, "redis", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux} // ex: 9099

	// Inicia servidor de métricas/health em goroutine separada
	go func() {
		log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("metrics srv", zap.Error(err))
		}
	}()

	// Inicia servidor principal da API de wagers
	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
