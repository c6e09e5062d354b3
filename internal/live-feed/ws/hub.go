package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub distribui os ticks de corrida para os espectadores conectados.
// Cada conexão pode assinar várias corridas ao mesmo tempo; quem entra
// no meio da corrida recebe na hora o último tick conhecido, para não
// ficar com a tela vazia até o próximo broadcast
type Hub struct {
	upgrader websocket.Upgrader

	mu sync.RWMutex
	// raceID -> conexões inscritas
	subs map[string]map[*websocket.Conn]struct{}
	// raceID -> último tick serializado
	lastTick map[string][]byte
}

// NewHub cria o hub com a política de origem recebida (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*websocket.Conn]struct{}),
		lastTick: make(map[string][]byte),
	}
}

// HandleWS cuida do ciclo de vida de uma conexão: subscribe,
// unsubscribe e ping. Sai do loop no primeiro erro de leitura
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	defer h.dropConn(conn)

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.RaceID == "" {
				continue
			}
			if tick := h.subscribe(conn, msg.RaceID); tick != nil {
				_ = conn.WriteMessage(websocket.TextMessage, tick)
			}
		case "unsubscribe":
			h.unsubscribe(conn, msg.RaceID)
		case "ping":
			_ = conn.WriteJSON(map[string]string{"type": "pong"})
		}
	}
}

// subscribe registra a conexão e devolve o último tick da corrida, se houver
func (h *Hub) subscribe(conn *websocket.Conn, raceID string) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[raceID]; !ok {
		h.subs[raceID] = make(map[*websocket.Conn]struct{})
	}
	h.subs[raceID][conn] = struct{}{}
	return h.lastTick[raceID]
}

func (h *Hub) unsubscribe(conn *websocket.Conn, raceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[raceID]; ok {
		delete(m, conn)
		if len(m) == 0 {
			delete(h.subs, raceID)
		}
	}
}

// dropConn tira a conexão de todas as corridas que ela assinava
func (h *Hub) dropConn(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for raceID, set := range h.subs {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.subs, raceID)
		}
	}
}

// Broadcast manda o tick para os inscritos na corrida e guarda o payload
// para os próximos assinantes. Conexão que falha na escrita já morreu
// do outro lado: sai do hub na hora
func (h *Hub) Broadcast(update FeedUpdate) {
	b, err := json.Marshal(update)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.lastTick[update.RaceID] = b
	conns := make([]*websocket.Conn, 0, len(h.subs[update.RaceID]))
	for c := range h.subs[update.RaceID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	var dead []*websocket.Conn
	for _, c := range conns {
		if werr := c.WriteMessage(websocket.TextMessage, b); werr != nil {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		h.dropConn(c)
		_ = c.Close()
	}
}

// Subscribers conta quantas conexões acompanham a corrida
func (h *Hub) Subscribers(raceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[raceID])
}
