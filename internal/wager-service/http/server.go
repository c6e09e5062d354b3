package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	gdto "github.com/midnightgrind/race-wager-platform/internal/garage-service/dto"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/dto"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/engine"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/pinkslip"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/simulator"
	"github.com/midnightgrind/race-wager-platform/pkg/contracts/events"
)

// Repo persiste wagers
type Repo interface {
	Create(ctx context.Context, w *engine.Wager) error
	Save(ctx context.Context, w *engine.Wager) error
	Get(ctx context.Context, id string) (*engine.Wager, error)
	InsertTransition(ctx context.Context, wagerID string, from, to engine.State, reason string) error
}

// Garage cobre reservas de stake e dados de elegibilidade
type Garage interface {
	ReserveStake(ctx context.Context, playerID string, stake gdto.Stake, externalRef string) (string, error)
	RefundStake(ctx context.Context, playerID string, stake gdto.Stake, externalRef string) error
	Eligibility(ctx context.Context, playerID, vehicleID string) (gdto.EligibilityDataResponse, error)
}

// Sim agenda corridas no simulador
type Sim interface {
	RunRace(ctx context.Context, req simulator.RunRaceRequest) error
}

// Publisher emite o evento de wager aceito
type Publisher interface {
	PublishWagerAccepted(ctx context.Context, e events.WagerAccepted) error
}

// ChallengeStore guarda as sessões de desafio pink slip durante a confirmação
type ChallengeStore interface {
	Save(ctx context.Context, sess *pinkslip.Session) error
	Get(ctx context.Context, challengeID string) (*pinkslip.Session, error)
	Delete(ctx context.Context, challengeID string) error
}

// Metrics são callbacks opcionais ligados aos contadores do main
type Metrics struct {
	OnProposed  func()
	OnAccepted  func()
	OnClosed    func(state string)
	OnChallenge func()
}

func (m Metrics) proposed() {
	if m.OnProposed != nil {
		m.OnProposed()
	}
}
func (m Metrics) accepted() {
	if m.OnAccepted != nil {
		m.OnAccepted()
	}
}
func (m Metrics) closed(state string) {
	if m.OnClosed != nil {
		m.OnClosed(state)
	}
}
func (m Metrics) challenge() {
	if m.OnChallenge != nil {
		m.OnChallenge()
	}
}

// ProposalTTL: uma proposta sem resposta vence em 10 minutos
const ProposalTTL = 10 * time.Minute

// Server expõe a API de wagers e de desafios pink slip
type Server struct {
	log     *zap.Logger
	repo    Repo
	garage  Garage
	sim     Sim
	publ    Publisher
	store   ChallengeStore
	rules   engine.Rules
	history *engine.History
	metrics Metrics
}

func NewServer(log *zap.Logger, repo Repo, garage Garage, sim Sim, publ Publisher, store ChallengeStore, rules engine.Rules, history *engine.History, m Metrics) *Server {
	return &Server{log: log, repo: repo, garage: garage, sim: sim, publ: publ, store: store, rules: rules, history: history, metrics: m}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/wagers", s.propose)
	r.Get("/v1/wagers/recent", s.recent)
	r.Get("/v1/wagers/{id}", s.getWager)
	r.Post("/v1/wagers/{id}/accept", s.accept)
	r.Post("/v1/wagers/{id}/decline", s.decline)
	r.Post("/v1/wagers/{id}/cancel", s.cancel)
	r.Get("/v1/pinkslips/eligibility", s.eligibility)
	r.Post("/v1/pinkslips/challenges", s.createChallenge)
	r.Get("/v1/pinkslips/challenges/{id}", s.getChallenge)
	r.Post("/v1/pinkslips/challenges/{id}/confirm", s.confirmChallenge)
	return r
}

// propose valida e registra a proposta; a aposta do proponente trava aqui
func (s *Server) propose(w http.ResponseWriter, r *http.Request) {
	var req dto.ProposeWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	wg, err := engine.NewProposal(id,
		engine.Participant{PlayerID: req.ProposerID, Stake: req.ProposerStake},
		engine.Participant{PlayerID: req.TargetID, Stake: req.TargetStake},
		req.Conditions, false, s.rules, time.Now().UTC(), ProposalTTL)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	// Reserva a aposta do proponente; falha aqui aborta a proposta
	if _, err := s.garage.ReserveStake(r.Context(), wg.Proposer.PlayerID, toGarageStake(wg.Proposer.Stake), wg.ID); err != nil {
		http.Error(w, "stake reserve failed: "+err.Error(), http.StatusConflict)
		return
	}
	wg.Proposer.Stake.ReservedRef = wg.ID

	if err := s.repo.Create(r.Context(), wg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.metrics.proposed()
	writeJSON(w, http.StatusCreated, dto.WagerResponse{Wager: wg})
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	wg, err := s.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, dto.WagerResponse{Wager: wg})
}

// accept trava a aposta do alvo, agenda a corrida e ativa o wager
func (s *Server) accept(w http.ResponseWriter, r *http.Request) {
	wg, actor, ok := s.loadWithActor(w, r)
	if !ok {
		return
	}
	if actor != wg.Target.PlayerID {
		http.Error(w, "only the target can accept", http.StatusForbidden)
		return
	}

	// Reserva antes da transição: sem stake travado não há aceite
	if _, err := s.garage.ReserveStake(r.Context(), wg.Target.PlayerID, toGarageStake(wg.Target.Stake), wg.ID); err != nil {
		http.Error(w, "stake reserve failed: "+err.Error(), http.StatusConflict)
		return
	}
	wg.Target.Stake.ReservedRef = wg.ID

	now := time.Now().UTC()
	if err := wg.Accept(now); err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.repo.Save(r.Context(), wg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = s.repo.InsertTransition(r.Context(), wg.ID, engine.StateProposed, engine.StateAccepted, "accepted by target")
	s.metrics.accepted()

	s.startRace(r.Context(), wg)
	writeJSON(w, http.StatusOK, dto.WagerResponse{Wager: wg})
}

// startRace agenda a corrida no simulador e ativa o wager.
// Falha de agendamento deixa o wager em ACCEPTED para nova tentativa
func (s *Server) startRace(ctx context.Context, wg *engine.Wager) {
	raceID := uuid.NewString()
	err := s.sim.RunRace(ctx, simulator.RunRaceRequest{
		RaceID:   raceID,
		TrackID:  wg.Conditions.TrackID,
		RaceType: wg.Conditions.RaceType,
		Laps:     wg.Conditions.Laps,
		Entrants: []string{wg.Proposer.PlayerID, wg.Target.PlayerID},
		PinkSlip: wg.PinkSlip,
	})
	if err != nil {
		s.log.Warn("race schedule failed", zap.String("wagerId", wg.ID), zap.Error(err))
		return
	}

	now := time.Now().UTC()
	if err := wg.Activate(raceID, now); err != nil {
		s.log.Error("activate wager", zap.String("wagerId", wg.ID), zap.Error(err))
		return
	}
	if err := s.repo.Save(ctx, wg); err != nil {
		s.log.Error("save active wager", zap.String("wagerId", wg.ID), zap.Error(err))
		return
	}
	_ = s.repo.InsertTransition(ctx, wg.ID, engine.StateAccepted, engine.StateActive, "race scheduled")

	_ = s.publ.PublishWagerAccepted(ctx, events.WagerAccepted{
		WagerID:       wg.ID,
		RaceID:        raceID,
		ProposerID:    wg.Proposer.PlayerID,
		TargetID:      wg.Target.PlayerID,
		ProposerStake: toEventStake(wg.Proposer.Stake),
		TargetStake:   toEventStake(wg.Target.Stake),
		TrackID:       wg.Conditions.TrackID,
		RaceType:      wg.Conditions.RaceType,
		Laps:          wg.Conditions.Laps,
		PinkSlip:      wg.PinkSlip,
	})
}

// decline recusa a proposta e devolve o stake do proponente
func (s *Server) decline(w http.ResponseWriter, r *http.Request) {
	s.closeProposal(w, r, engine.StateDeclined)
}

// cancel retira a proposta; só o proponente pode
func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	s.closeProposal(w, r, engine.StateCancelled)
}

func (s *Server) closeProposal(w http.ResponseWriter, r *http.Request, to engine.State) {
	wg, actor, ok := s.loadWithActor(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	var err error
	switch to {
	case engine.StateDeclined:
		if actor != wg.Target.PlayerID {
			http.Error(w, "only the target can decline", http.StatusForbidden)
			return
		}
		err = wg.Decline(now)
	case engine.StateCancelled:
		if actor != wg.Proposer.PlayerID {
			http.Error(w, "only the proposer can cancel", http.StatusForbidden)
			return
		}
		err = wg.Cancel(now)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	// Devolve o stake do proponente (o do alvo nunca chegou a travar)
	if err := s.garage.RefundStake(r.Context(), wg.Proposer.PlayerID, toGarageStake(wg.Proposer.Stake), wg.ID); err != nil {
		s.log.Error("stake refund", zap.String("wagerId", wg.ID), zap.Error(err))
	}

	if err := s.repo.Save(r.Context(), wg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = s.repo.InsertTransition(r.Context(), wg.ID, engine.StateProposed, to, string(to))
	s.metrics.closed(string(to))

	s.history.Push(engine.HistoryEntry{
		WagerID:    wg.ID,
		State:      wg.State,
		ProposerID: wg.Proposer.PlayerID,
		TargetID:   wg.Target.PlayerID,
		ValueCR:    wg.Proposer.Stake.EffectiveValue(),
		PinkSlip:   wg.PinkSlip,
		ClosedAt:   now,
	})
	writeJSON(w, http.StatusOK, dto.WagerResponse{Wager: wg})
}

// recent devolve o histórico recente em memória (até 100, mais novo primeiro)
func (s *Server) recent(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, s.history.Recent(n))
}

func (s *Server) loadWithActor(w http.ResponseWriter, r *http.Request) (*engine.Wager, string, bool) {
	var req dto.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		http.Error(w, "playerId required", http.StatusBadRequest)
		return nil, "", false
	}
	wg, err := s.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, "", false
	}
	return wg, req.PlayerID, true
}

func toGarageStake(s engine.Stake) gdto.Stake {
	return gdto.Stake{
		Type:       string(s.Type),
		CurrencyCR: s.CurrencyCR,
		ItemID:     s.ItemID,
		XPAmount:   s.XPAmount,
	}
}

func toEventStake(s engine.Stake) events.StakePayload {
	return events.StakePayload{
		Type:          string(s.Type),
		CurrencyCR:    s.CurrencyCR,
		ItemID:        s.ItemID,
		DeclaredValue: s.EffectiveValue(),
		ReservedRef:   s.ReservedRef,
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrSelfWager),
		errors.Is(err, engine.ErrBadStake),
		errors.Is(err, engine.ErrNotPinkSlipStake):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrStakeMismatch),
		errors.Is(err, engine.ErrCurrencyOutOfRange):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
