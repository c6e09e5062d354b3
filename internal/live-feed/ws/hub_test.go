package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	url := strings.Replace(srv.URL, "http", "ws", 1)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) FeedUpdate {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var upd FeedUpdate
	if jerr := json.Unmarshal(b, &upd); jerr != nil {
		t.Fatalf("unmarshal: %v", jerr)
	}
	return upd
}

func subscribe(t *testing.T, hub *Hub, conn *websocket.Conn, raceID string) {
	t.Helper()
	if err := conn.WriteJSON(ClientMsg{Type: "subscribe", RaceID: raceID}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(raceID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	conn := dialHub(t, hub)
	subscribe(t, hub, conn, "r1")

	hub.Broadcast(FeedUpdate{RaceID: "r1", Payload: map[string]any{"stage": float64(2)}})

	upd := readUpdate(t, conn)
	if upd.RaceID != "r1" {
		t.Fatalf("raceId = %q, want r1", upd.RaceID)
	}
}

func TestLateSubscriberGetsLastTick(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	hub.Broadcast(FeedUpdate{RaceID: "r1", Payload: "mid-race"})

	conn := dialHub(t, hub)
	if err := conn.WriteJSON(ClientMsg{Type: "subscribe", RaceID: "r1"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	upd := readUpdate(t, conn)
	if upd.RaceID != "r1" || upd.Payload != "mid-race" {
		t.Fatalf("late subscriber got %+v, want the cached tick", upd)
	}
}

func TestPingPong(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	conn := dialHub(t, hub)

	if err := conn.WriteJSON(ClientMsg{Type: "ping"}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong map[string]string
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong["type"] != "pong" {
		t.Fatalf("got %v, want pong", pong)
	}
}

func TestDisconnectDropsSubscriptions(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	conn := dialHub(t, hub)
	subscribe(t, hub, conn, "r1")

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("r1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed connection still subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
