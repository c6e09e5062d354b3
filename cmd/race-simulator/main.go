package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/midnightgrind/race-wager-platform/internal/race-simulator/sim"
	sdto "github.com/midnightgrind/race-wager-platform/internal/settlement/dto"
	"github.com/midnightgrind/race-wager-platform/internal/shared/config"
	"github.com/midnightgrind/race-wager-platform/internal/shared/logger"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Métricas Prometheus para monitoramento de conexões e corridas
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "race_sim_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "race_sim_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
	racesRun = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "race_sim_races_total",
		Help: "Corridas disputadas, por origem",
	}, []string{"origin"})
)

// Conexão de um cliente WebSocket
type clientConn struct {
	id   string
	conn *websocket.Conn
}

// hub gerencia os clientes conectados e o broadcast de telemetria
type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{
		clients: make(map[string]*clientConn),
		log:     log,
	}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		} else {
			wsMessagesSent.Inc()
		}
	}
}

type server struct {
	log    *zap.Logger
	engine *sim.Engine
	hub    *hub
}

// runRace dispara a corrida: os ticks saem espaçados para o feed
// parecer vivo, e o resultado fecha a transmissão
func (s *server) runRace(req sim.RunRequest, origin string) {
	ticks, fin := s.engine.Race(req, time.Now().UTC())
	racesRun.WithLabelValues(origin).Inc()
	s.log.Info("race started",
		zap.String("raceId", req.RaceID),
		zap.String("trackId", req.TrackID),
		zap.String("raceType", req.RaceType),
		zap.String("origin", origin),
	)

	for _, t := range ticks {
		s.hub.broadcast(t)
		time.Sleep(500 * time.Millisecond)
	}
	s.hub.broadcast(fin)
	s.log.Info("race finished",
		zap.String("raceId", fin.RaceID),
		zap.String("winner", fin.ReportedWinner),
		zap.Int64("marginMs", fin.MarginMS),
	)
}

// Handler de agendamento de corrida apostada
func (s *server) runHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req sim.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.RaceID == "" || len(req.Entrants) != 2 {
		http.Error(w, "raceId and two entrants required", http.StatusBadRequest)
		return
	}

	go s.runRace(req, "wager")

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"scheduled"}`))
}

// Handler de conferência de resultado para o settlement
func (s *server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req sdto.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	fin, ok, err := s.engine.Verify(req.RaceID, req.WinnerID, req.MarginMS)
	if err != nil {
		http.Error(w, "race not found", http.StatusNotFound)
		return
	}

	resp := sdto.VerifyResponse{
		RaceID:    req.RaceID,
		Status:    "confirmed",
		WinnerID:  fin.ReportedWinner,
		Witnesses: fin.Witnesses,
	}
	if !ok {
		resp.Status = "rejected"
		resp.Reason = "result does not match recorded race"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, wsMessagesSent, racesRun)

	h := newHub(log)
	s := &server{
		log:    log,
		engine: sim.NewEngine(time.Now().UnixNano()),
		hub:    h,
	}

	// Corridas ambiente de NPCs mantêm o feed vivo entre corridas apostadas
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		n := 0
		for range ticker.C {
			n++
			req := s.engine.AmbientRequest(fmt.Sprintf("ambient-%d-%d", time.Now().Unix(), n))
			s.runRace(req, "ambient")
		}
	}()

	// ==== MUX PÚBLICO (HTTP principal): /ws, /races/run e /races/verify
	appMux := http.NewServeMux()

	appMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		c := &clientConn{id: id, conn: conn}
		h.add(c)

		// Goroutine para manter a conexão viva e remover cliente ao desconectar
		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			_ = conn.SetReadDeadline(time.Time{})
			for {
				// Lê e descarta mensagens do cliente para manter o socket limpo
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	appMux.HandleFunc("/races/run", s.runHandler)
	appMux.HandleFunc("/races/verify", s.verifyHandler)

	// ==== MUX DE MÉTRICAS (/healthz, /metrics)
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("race simulator (metrics) running",
			zap.String("addr", metricsAddr),
			zap.String("paths", "/healthz,/metrics"),
		)
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("race simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/ws,/races/run,/races/verify"),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
