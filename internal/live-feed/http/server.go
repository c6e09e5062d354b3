package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/midnightgrind/race-wager-platform/internal/live-feed/cache"
	"github.com/midnightgrind/race-wager-platform/internal/live-feed/dto"
	"github.com/midnightgrind/race-wager-platform/internal/live-feed/repo"
)

// API expõe os endpoints REST de consulta do feed de corridas
// Utiliza um repositório de leitura (Postgres) e cache (Redis)
type API struct {
	ReadRepo *repo.ReadRepo // acesso ao banco de dados
	Cache    *cache.Cache   // cache de classificação
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/races", a.listRaces)                   // Corridas recentes
	r.Get("/v1/races/{id}/standings", a.getStandings) // Classificação corrente
	r.Get("/v1/wagers/history", a.listWagerHistory)   // Últimos wagers encerrados
	r.Get("/v1/pinkslips/history", a.listPinkSlips)   // Mural de pink slips
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func limitParam(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

// listRaces retorna as corridas mais recentes do quadro
func (a *API) listRaces(w http.ResponseWriter, r *http.Request) {
	races, err := a.ReadRepo.ListRaces(r.Context(), limitParam(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, races)
}

// getStandings retorna a classificação de uma corrida, preferencialmente do cache
func (a *API) getStandings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var fromCache json.RawMessage
	if ok, _ := a.Cache.GetStandings(r.Context(), id, &fromCache); ok {
		writeJSON(w, http.StatusOK, fromCache)
		return
	}

	st, err := a.ReadRepo.GetStandings(r.Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	_ = a.Cache.SetStandings(r.Context(), id, st, 30*time.Second) // salva no cache por 30s
	writeJSON(w, http.StatusOK, st)
}

// listWagerHistory retorna os últimos wagers encerrados (até 100, novo primeiro)
func (a *API) listWagerHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := a.ReadRepo.ListRecentWagers(r.Context(), limitParam(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if hist == nil {
		hist = []dto.WagerHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, hist)
}

// listPinkSlips retorna o mural de transferências de posse
func (a *API) listPinkSlips(w http.ResponseWriter, r *http.Request) {
	hist, err := a.ReadRepo.ListPinkSlips(r.Context(), limitParam(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if hist == nil {
		hist = []dto.PinkSlipEntry{}
	}
	writeJSON(w, http.StatusOK, hist)
}
