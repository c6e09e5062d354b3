package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gdto "github.com/midnightgrind/race-wager-platform/internal/garage-service/dto"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/dto"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/engine"
)

func challengeSnapshot(vehicleID string, pi int, valueCR int64) gdto.EligibilityDataResponse {
	return gdto.EligibilityDataResponse{
		VehicleID:      vehicleID,
		VehiclePI:      pi,
		VehicleValueCR: valueCR,
		OwnerRepTier:   4,
		OwnedVehicles:  2,
	}
}

func challengeBody() dto.CreateChallengeRequest {
	return dto.CreateChallengeRequest{
		ChallengerID:        "p1",
		ChallengerVehicleID: "v1",
		DefenderID:          "p2",
		DefenderVehicleID:   "v2",
		TrackID:             "haruna_downhill",
		RaceType:            "touge",
	}
}

func (f *wagerFixture) createChallengeOK(t *testing.T) dto.ChallengeResponse {
	t.Helper()
	w := f.post(t, "/v1/pinkslips/challenges", challengeBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create challenge = %d: %s", w.Code, w.Body.String())
	}
	var resp dto.ChallengeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestCreateChallengeRejectsValueMismatch(t *testing.T) {
	f := newWagerFixture()
	// PIs pareados, valores não: 10k contra 40k está fora dos 20%
	f.garage.snapshots["v1"] = challengeSnapshot("v1", 700, 40_000)
	f.garage.snapshots["v2"] = challengeSnapshot("v2", 700, 10_000)

	w := f.post(t, "/v1/pinkslips/challenges", challengeBody())
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("create = %d, want 422", w.Code)
	}
	if len(f.store.sessions) != 0 {
		t.Error("a mismatched challenge must never open a session")
	}
}

func TestCreateChallengeAcceptsValuesWithinTolerance(t *testing.T) {
	f := newWagerFixture()
	f.garage.snapshots["v1"] = challengeSnapshot("v1", 700, 40_000)
	f.garage.snapshots["v2"] = challengeSnapshot("v2", 690, 32_000) // exatamente nos 20%

	resp := f.createChallengeOK(t)
	if resp.Status != "OPEN" {
		t.Errorf("Status = %s, want OPEN", resp.Status)
	}
	if resp.Display == nil || resp.Display.Warning == "" {
		t.Error("creation must show the first-step warning")
	}
	if _, ok := f.store.sessions[resp.ChallengeID]; !ok {
		t.Error("session was not stored")
	}
}

func (f *wagerFixture) confirm(t *testing.T, challengeID, playerID string) *httptest.ResponseRecorder {
	t.Helper()
	return f.post(t, "/v1/pinkslips/challenges/"+challengeID+"/confirm",
		dto.ConfirmChallengeRequest{PlayerID: playerID, Accept: true})
}

func TestConfirmedChallengePromotesToActiveWager(t *testing.T) {
	f := newWagerFixture()
	f.garage.snapshots["v1"] = challengeSnapshot("v1", 700, 40_000)
	f.garage.snapshots["v2"] = challengeSnapshot("v2", 690, 38_000)

	ch := f.createChallengeOK(t)

	var last dto.ChallengeResponse
	for step := 0; step < 3; step++ {
		for _, p := range []string{"p1", "p2"} {
			w := f.confirm(t, ch.ChallengeID, p)
			if w.Code != http.StatusOK {
				t.Fatalf("confirm %s step %d = %d: %s", p, step+1, w.Code, w.Body.String())
			}
			if err := json.Unmarshal(w.Body.Bytes(), &last); err != nil {
				t.Fatal(err)
			}
		}
	}

	if last.WagerID == "" || last.RaceID == "" {
		t.Fatalf("final confirm must return the wager and race: %+v", last)
	}
	wg := f.repo.wagers[last.WagerID]
	if wg == nil || wg.State != engine.StateActive || !wg.PinkSlip {
		t.Fatalf("wager = %+v, want ACTIVE pink slip", wg)
	}
	if _, ok := f.garage.reserved[wg.ID+":p1"]; !ok {
		t.Error("challenger vehicle was not reserved")
	}
	if _, ok := f.garage.reserved[wg.ID+":p2"]; !ok {
		t.Error("defender vehicle was not reserved")
	}
	if _, ok := f.store.sessions[ch.ChallengeID]; ok {
		t.Error("promoted session must leave the store")
	}
	if len(f.sim.runs) != 1 || !f.sim.runs[0].PinkSlip {
		t.Errorf("sim runs = %+v, want one pink slip race", f.sim.runs)
	}
}

func TestFailedPromotionDropsSession(t *testing.T) {
	f := newWagerFixture()
	f.garage.snapshots["v1"] = challengeSnapshot("v1", 700, 40_000)
	f.garage.snapshots["v2"] = challengeSnapshot("v2", 690, 38_000)

	ch := f.createChallengeOK(t)

	// Cinco passos passam; a reserva quebra na promoção do sexto
	f.confirm(t, ch.ChallengeID, "p1")
	f.confirm(t, ch.ChallengeID, "p2")
	f.confirm(t, ch.ChallengeID, "p1")
	f.confirm(t, ch.ChallengeID, "p2")
	f.confirm(t, ch.ChallengeID, "p1")
	f.garage.reserveErr = errors.New("vehicle already staked")

	w := f.confirm(t, ch.ChallengeID, "p2")
	if w.Code != http.StatusConflict {
		t.Fatalf("final confirm = %d, want 409", w.Code)
	}
	if _, ok := f.store.sessions[ch.ChallengeID]; ok {
		t.Error("an unpromotable challenge must not linger in the store")
	}
	if len(f.repo.wagers) != 0 {
		t.Error("no wager may persist when promotion fails")
	}
}

func TestDeclineCancelsChallenge(t *testing.T) {
	f := newWagerFixture()
	f.garage.snapshots["v1"] = challengeSnapshot("v1", 700, 40_000)
	f.garage.snapshots["v2"] = challengeSnapshot("v2", 690, 38_000)

	ch := f.createChallengeOK(t)
	f.confirm(t, ch.ChallengeID, "p1")

	w := f.post(t, "/v1/pinkslips/challenges/"+ch.ChallengeID+"/confirm",
		dto.ConfirmChallengeRequest{PlayerID: "p2", Accept: false})
	if w.Code != http.StatusOK {
		t.Fatalf("decline = %d", w.Code)
	}
	var resp dto.ChallengeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "CANCELLED" {
		t.Errorf("Status = %s, want CANCELLED", resp.Status)
	}
	if _, ok := f.store.sessions[ch.ChallengeID]; ok {
		t.Error("cancelled session must leave the store")
	}
}

func TestEligibilityEndpointReportsFirstFailure(t *testing.T) {
	f := newWagerFixture()
	snap := challengeSnapshot("v1", 700, 40_000)
	snap.OwnedVehicles = 1 // único carro do jogador
	snap.TradeLocked = true
	f.garage.snapshots["v1"] = snap

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/pinkslips/eligibility?playerId=p1&vehicleId=v1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("eligibility = %d", w.Code)
	}
	var resp dto.EligibilityResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Eligible {
		t.Fatal("only vehicle must not be eligible")
	}
	if resp.Reason != "ONLY_VEHICLE" {
		t.Errorf("Reason = %s, the only-vehicle check outranks the trade lock", resp.Reason)
	}
}
