package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/midnightgrind/race-wager-platform/internal/shared/config"
	"github.com/midnightgrind/race-wager-platform/internal/shared/logger"
)

func rp(to string) *httputil.ReverseProxy {
	u, _ := url.Parse(to)
	return httputil.NewSingleHostReverseProxy(u)
}

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// targets
	feedURL := os.Getenv("FEED_URL")
	if feedURL == "" {
		feedURL = "http://localhost:8080"
	}
	garageURL := os.Getenv("GARAGE_URL")
	if garageURL == "" {
		garageURL = "http://localhost:8082"
	}
	wagerURL := os.Getenv("WAGER_URL")
	if wagerURL == "" {
		wagerURL = "http://localhost:8083"
	}
	feed := rp(feedURL)
	garage := rp(garageURL)
	wager := rp(wagerURL)

	mux := http.NewServeMux()

	// feed ao vivo (ex.: /api/feed/* -> live-feed-service)
	mux.Handle("/api/feed/", http.StripPrefix("/api/feed", feed))

	// garagem (ex.: /api/garage/* -> garage-service)
	mux.Handle("/api/garage/", http.StripPrefix("/api/garage", garage))

	// wagers e pink slips (ex.: /api/wagers/* -> wager-service)
	mux.Handle("/api/wagers/", http.StripPrefix("/api/wagers", wager))

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
