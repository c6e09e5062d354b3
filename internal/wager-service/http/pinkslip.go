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

	"github.com/midnightgrind/race-wager-platform/internal/wager-service/dto"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/engine"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/pinkslip"
)

// eligibility checa, sem abrir desafio, se o veículo pode ir a pink slip.
// opponent_pi é opcional; sem ele só as checagens do próprio lado rodam
func (s *Server) eligibility(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	vehicleID := r.URL.Query().Get("vehicleId")
	if playerID == "" || vehicleID == "" {
		http.Error(w, "playerId and vehicleId required", http.StatusBadRequest)
		return
	}

	snap, err := s.snapshot(r.Context(), playerID, vehicleID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	opponentPI := snap.VehiclePI
	if v := r.URL.Query().Get("opponent_pi"); v != "" {
		pi, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "bad opponent_pi", http.StatusBadRequest)
			return
		}
		opponentPI = pi
	}

	reason := pinkslip.CheckVehicleEligibility(snap, opponentPI)
	writeJSON(w, http.StatusOK, dto.EligibilityResponse{
		Reason:   string(reason),
		Eligible: reason == pinkslip.Eligible,
	})
}

// createChallenge valida os dois lados e abre a sessão de tripla confirmação
func (s *Server) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.ChallengerID == req.DefenderID {
		http.Error(w, "challenger and defender must differ", http.StatusBadRequest)
		return
	}

	chSnap, err := s.snapshot(r.Context(), req.ChallengerID, req.ChallengerVehicleID)
	if err != nil {
		http.Error(w, "challenger: "+err.Error(), http.StatusBadGateway)
		return
	}
	dfSnap, err := s.snapshot(r.Context(), req.DefenderID, req.DefenderVehicleID)
	if err != nil {
		http.Error(w, "defender: "+err.Error(), http.StatusBadGateway)
		return
	}

	// Os dois lados precisam estar elegíveis; o primeiro motivo de recusa responde
	if reason := pinkslip.CheckVehicleEligibility(chSnap, dfSnap.VehiclePI); reason != pinkslip.Eligible {
		writeJSON(w, http.StatusUnprocessableEntity, dto.EligibilityResponse{Reason: string(reason)})
		return
	}
	if reason := pinkslip.CheckVehicleEligibility(dfSnap, chSnap.VehiclePI); reason != pinkslip.Eligible {
		writeJSON(w, http.StatusUnprocessableEntity, dto.EligibilityResponse{Reason: string(reason)})
		return
	}

	// Os valores declarados seguem a mesma tolerância de qualquer wager.
	// Checado aqui: um desafio que não promove não pode chegar a READY
	chStake := engine.Stake{Type: engine.StakeVehicle, ItemID: req.ChallengerVehicleID, DeclaredValue: chSnap.VehicleValueCR}
	dfStake := engine.Stake{Type: engine.StakeVehicle, ItemID: req.DefenderVehicleID, DeclaredValue: dfSnap.VehicleValueCR}
	if !s.rules.StakesMatch(chStake, dfStake) {
		writeEngineError(w, engine.ErrStakeMismatch)
		return
	}

	sess := pinkslip.NewSession(uuid.NewString(), req.TrackID, req.RaceType,
		pinkslip.Side{PlayerID: req.ChallengerID, VehicleID: req.ChallengerVehicleID, VehiclePI: chSnap.VehiclePI, ValueCR: chSnap.VehicleValueCR},
		pinkslip.Side{PlayerID: req.DefenderID, VehicleID: req.DefenderVehicleID, VehiclePI: dfSnap.VehiclePI, ValueCR: dfSnap.VehicleValueCR},
		time.Now().UTC())
	if err := s.store.Save(r.Context(), sess); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.metrics.challenge()

	display, _ := sess.Display(req.ChallengerID)
	writeJSON(w, http.StatusCreated, dto.ChallengeResponse{
		ChallengeID: sess.ChallengeID,
		Status:      sess.Status,
		Display:     &display,
	})
}

func (s *Server) getChallenge(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sess == nil {
		http.Error(w, "challenge not found or expired", http.StatusNotFound)
		return
	}

	resp := dto.ChallengeResponse{ChallengeID: sess.ChallengeID, Status: sess.Status}
	if playerID := r.URL.Query().Get("playerId"); playerID != "" {
		if d, err := sess.Display(playerID); err == nil {
			resp.Display = &d
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// confirmChallenge registra um passo; os três "sim" dos dois lados
// convertem o desafio num wager pink slip ativo
func (s *Server) confirmChallenge(w http.ResponseWriter, r *http.Request) {
	var req dto.ConfirmChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		http.Error(w, "playerId required", http.StatusBadRequest)
		return
	}

	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sess == nil {
		http.Error(w, "challenge not found or expired", http.StatusNotFound)
		return
	}

	if err := sess.Submit(req.PlayerID, req.Accept); err != nil {
		switch {
		case errors.Is(err, pinkslip.ErrUnknownPlayer):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, pinkslip.ErrSessionClosed):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusConflict)
		}
		return
	}

	if sess.Status == "CANCELLED" {
		if err := s.store.Delete(r.Context(), sess.ChallengeID); err != nil {
			s.log.Warn("delete cancelled challenge", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, dto.ChallengeResponse{ChallengeID: sess.ChallengeID, Status: sess.Status})
		return
	}

	if !sess.Ready() {
		if err := s.store.Save(r.Context(), sess); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		display, _ := sess.Display(req.PlayerID)
		writeJSON(w, http.StatusOK, dto.ChallengeResponse{
			ChallengeID: sess.ChallengeID,
			Status:      sess.Status,
			Display:     &display,
		})
		return
	}

	wg, err := s.promoteChallenge(r.Context(), sess)
	if err != nil {
		s.log.Error("promote pink slip challenge", zap.String("challengeId", sess.ChallengeID), zap.Error(err))
		// A sessão não pode ficar pendurada em READY: sem wager, o desafio morre
		if derr := s.store.Delete(r.Context(), sess.ChallengeID); derr != nil {
			s.log.Warn("delete unpromotable challenge", zap.Error(derr))
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err := s.store.Delete(r.Context(), sess.ChallengeID); err != nil {
		s.log.Warn("delete ready challenge", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, dto.ChallengeResponse{
		ChallengeID: sess.ChallengeID,
		Status:      sess.Status,
		WagerID:     wg.ID,
		RaceID:      wg.RaceID,
	})
}

// promoteChallenge cria o wager pink slip já confirmado: trava os dois
// veículos, aceita e agenda a corrida
func (s *Server) promoteChallenge(ctx context.Context, sess *pinkslip.Session) (*engine.Wager, error) {
	now := time.Now().UTC()
	wg, err := engine.NewProposal(uuid.NewString(),
		engine.Participant{PlayerID: sess.Challenger.PlayerID, Stake: vehicleStake(sess.Challenger)},
		engine.Participant{PlayerID: sess.Defender.PlayerID, Stake: vehicleStake(sess.Defender)},
		engine.Conditions{TrackID: sess.TrackID, RaceType: sess.RaceType, Laps: 1},
		true, s.rules, now, ProposalTTL)
	if err != nil {
		return nil, err
	}

	if _, err := s.garage.ReserveStake(ctx, wg.Proposer.PlayerID, toGarageStake(wg.Proposer.Stake), wg.ID); err != nil {
		return nil, err
	}
	wg.Proposer.Stake.ReservedRef = wg.ID

	if _, err := s.garage.ReserveStake(ctx, wg.Target.PlayerID, toGarageStake(wg.Target.Stake), wg.ID); err != nil {
		// Desfaz o primeiro lado antes de abortar
		if rerr := s.garage.RefundStake(ctx, wg.Proposer.PlayerID, toGarageStake(wg.Proposer.Stake), wg.ID); rerr != nil {
			s.log.Error("rollback challenger stake", zap.String("wagerId", wg.ID), zap.Error(rerr))
		}
		return nil, err
	}
	wg.Target.Stake.ReservedRef = wg.ID

	if err := wg.Accept(now); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, wg); err != nil {
		return nil, err
	}
	_ = s.repo.InsertTransition(ctx, wg.ID, engine.StateProposed, engine.StateAccepted, "pink slip challenge confirmed")
	s.metrics.accepted()

	s.startRace(ctx, wg)
	return wg, nil
}

func vehicleStake(side pinkslip.Side) engine.Stake {
	return engine.Stake{
		Type:          engine.StakeVehicle,
		ItemID:        side.VehicleID,
		DeclaredValue: side.ValueCR,
	}
}

func (s *Server) snapshot(ctx context.Context, playerID, vehicleID string) (pinkslip.Snapshot, error) {
	data, err := s.garage.Eligibility(ctx, playerID, vehicleID)
	if err != nil {
		return pinkslip.Snapshot{}, err
	}
	return pinkslip.Snapshot{
		VehicleID:      data.VehicleID,
		VehiclePI:      data.VehiclePI,
		VehicleValueCR: data.VehicleValueCR,
		Staked:         data.Staked,
		TradeLocked:    data.TradeLocked,
		OwnerRepTier:   data.OwnerRepTier,
		OwnedVehicles:  data.OwnedVehicles,
		CooldownActive: data.CooldownActive,
	}, nil
}
