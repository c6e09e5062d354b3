package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/midnightgrind/race-wager-platform/internal/garage-service/dto"
	"github.com/midnightgrind/race-wager-platform/internal/garage-service/repo"
)

// fakeRepo implementa Repo em memória para exercitar os handlers HTTP
type fakeRepo struct {
	balances     map[string]int64         // playerId → saldo
	reservations map[string]int64         // externalRef → valor travado
	vehicles     map[string]*repo.Vehicle // vehicleId → veículo
	transfers    map[string]string        // raceId → transferId
	jobs         []repo.MechanicJob
	seq          int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		balances:     map[string]int64{},
		reservations: map[string]int64{},
		vehicles:     map[string]*repo.Vehicle{},
		transfers:    map[string]string{},
	}
}

func (f *fakeRepo) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeRepo) GetOrCreateWallet(_ context.Context, playerID string) (string, int64, error) {
	return "w-" + playerID, f.balances[playerID], nil
}

func (f *fakeRepo) GetOrCreateProfile(_ context.Context, playerID string) (repo.Profile, error) {
	return repo.Profile{PlayerID: playerID, DriverName: "Driver " + playerID, RepTier: 4}, nil
}

func (f *fakeRepo) Deposit(_ context.Context, playerID string, amount int64, _ string) (string, int64, error) {
	f.balances[playerID] += amount
	return "w-" + playerID, f.balances[playerID], nil
}

func (f *fakeRepo) ReserveCurrency(_ context.Context, playerID string, amount int64, ref string) (string, error) {
	if f.balances[playerID] < amount {
		return "", repo.ErrInsufficientFunds
	}
	f.balances[playerID] -= amount
	f.reservations[ref] = amount
	return f.nextID("res"), nil
}

func (f *fakeRepo) CommitCurrency(_ context.Context, _, ref string) (int64, error) {
	amount, ok := f.reservations[ref]
	if !ok {
		return 0, repo.ErrNotFound
	}
	delete(f.reservations, ref)
	return amount, nil
}

func (f *fakeRepo) RefundCurrency(_ context.Context, playerID, ref string) error {
	amount, ok := f.reservations[ref]
	if !ok {
		return repo.ErrNotFound
	}
	delete(f.reservations, ref)
	f.balances[playerID] += amount
	return nil
}

func (f *fakeRepo) ReserveXP(_ context.Context, _ string, _ int64, _ string) (string, error) {
	return f.nextID("res"), nil
}

func (f *fakeRepo) SettleXP(_ context.Context, _, _, _ string) error { return nil }

func (f *fakeRepo) AddVehicle(_ context.Context, v *repo.Vehicle) (string, error) {
	id := f.nextID("v")
	v.ID = id
	v.CreatedAt = time.Now()
	f.vehicles[id] = v
	return id, nil
}

func (f *fakeRepo) ListVehicles(_ context.Context, ownerID string) ([]repo.Vehicle, error) {
	var out []repo.Vehicle
	for _, v := range f.vehicles {
		if v.OwnerID == ownerID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetVehicle(_ context.Context, vehicleID string) (repo.Vehicle, error) {
	v, ok := f.vehicles[vehicleID]
	if !ok {
		return repo.Vehicle{}, repo.ErrNotFound
	}
	return *v, nil
}

func (f *fakeRepo) ReserveVehicle(_ context.Context, ownerID, vehicleID, ref string) error {
	v, ok := f.vehicles[vehicleID]
	if !ok {
		return repo.ErrNotFound
	}
	if v.OwnerID != ownerID {
		return repo.ErrNotOwner
	}
	if v.StakeRef != "" {
		return repo.ErrVehicleStaked
	}
	v.StakeRef = ref
	return nil
}

func (f *fakeRepo) ReleaseVehicle(_ context.Context, vehicleID, ref string) error {
	v, ok := f.vehicles[vehicleID]
	if !ok || v.StakeRef != ref {
		return repo.ErrNotFound
	}
	v.StakeRef = ""
	return nil
}

func (f *fakeRepo) AddItem(_ context.Context, it *repo.InventoryItem) (string, error) {
	return f.nextID("it"), nil
}

func (f *fakeRepo) ReserveItem(_ context.Context, _, _, _ string) error  { return nil }
func (f *fakeRepo) ReleaseItem(_ context.Context, _, _ string) error     { return nil }
func (f *fakeRepo) TransferItem(_ context.Context, _, _, _ string) error { return nil }

func (f *fakeRepo) EligibilityData(_ context.Context, playerID, vehicleID string) (repo.EligibilitySnapshot, error) {
	v, ok := f.vehicles[vehicleID]
	if !ok || v.OwnerID != playerID {
		return repo.EligibilitySnapshot{}, repo.ErrNotFound
	}
	owned := 0
	for _, o := range f.vehicles {
		if o.OwnerID == playerID {
			owned++
		}
	}
	return repo.EligibilitySnapshot{
		VehicleID:      v.ID,
		VehiclePI:      v.PI,
		VehicleValueCR: v.ValueCR,
		StakeRef:       v.StakeRef,
		OwnerID:        playerID,
		OwnerRepTier:   4,
		OwnedVehicles:  owned,
	}, nil
}

func (f *fakeRepo) ExecuteTransfer(_ context.Context, req repo.TransferRequest) (string, error) {
	if _, done := f.transfers[req.RaceID]; done {
		return "", repo.ErrAlreadyTransferred
	}
	v, ok := f.vehicles[req.VehicleID]
	if !ok {
		return "", repo.ErrNotFound
	}
	if v.OwnerID != req.LoserID {
		return "", repo.ErrNotOwner
	}
	v.OwnerID = req.WinnerID
	v.StakeRef = ""
	v.AcquiredVia = "pink_slip"
	id := f.nextID("tr")
	f.transfers[req.RaceID] = id
	return id, nil
}

func (f *fakeRepo) ListTransfers(_ context.Context, _ string, _ int) ([]repo.PinkSlipTransfer, error) {
	return nil, nil
}

func (f *fakeRepo) StartMechanicJob(_ context.Context, playerID, vehicleID, jobType string) (repo.MechanicJob, error) {
	if _, ok := f.vehicles[vehicleID]; !ok {
		return repo.MechanicJob{}, repo.ErrNotFound
	}
	job := repo.MechanicJob{
		ID: f.nextID("job"), VehicleID: vehicleID, PlayerID: playerID,
		JobType: jobType, Status: "IN_PROGRESS",
	}
	f.jobs = append(f.jobs, job)
	return job, nil
}

func (f *fakeRepo) ListMechanicJobs(_ context.Context, playerID string) ([]repo.MechanicJob, error) {
	var out []repo.MechanicJob
	for _, j := range f.jobs {
		if j.PlayerID == playerID {
			out = append(out, j)
		}
	}
	return out, nil
}

func newTestServer(f *fakeRepo) http.Handler {
	return NewServer(zap.NewNop(), f).Router()
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b)))
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestCurrencyStakeLifecycle(t *testing.T) {
	f := newFakeRepo()
	h := newTestServer(f)

	if w := post(t, h, "/garage/deposit", dto.DepositRequest{PlayerID: "p1", AmountCR: 50_000}); w.Code != http.StatusOK {
		t.Fatalf("deposit = %d: %s", w.Code, w.Body.String())
	}

	// Reserva trava o valor fora do saldo
	w := post(t, h, "/garage/stake/reserve", dto.ReserveStakeRequest{
		PlayerID:    "p1",
		Stake:       dto.Stake{Type: "currency", CurrencyCR: 10_000},
		ExternalRef: "wager-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reserve = %d: %s", w.Code, w.Body.String())
	}
	if f.balances["p1"] != 40_000 {
		t.Fatalf("balance after reserve = %d, want 40000", f.balances["p1"])
	}

	// Saldo insuficiente vira conflito
	w = post(t, h, "/garage/stake/reserve", dto.ReserveStakeRequest{
		PlayerID:    "p1",
		Stake:       dto.Stake{Type: "currency", CurrencyCR: 100_000},
		ExternalRef: "wager-2",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("over-reserve = %d, want 409", w.Code)
	}

	// Commit entrega ao vencedor
	w = post(t, h, "/garage/stake/commit", dto.SettleStakeRequest{
		PlayerID:      "p1",
		Stake:         dto.Stake{Type: "currency"},
		ExternalRef:   "wager-1",
		BeneficiaryID: "p2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("commit = %d: %s", w.Code, w.Body.String())
	}
	if f.balances["p2"] != 10_000 {
		t.Errorf("winner balance = %d, want 10000", f.balances["p2"])
	}
	if f.balances["p1"] != 40_000 {
		t.Errorf("loser balance = %d, want 40000", f.balances["p1"])
	}

	// Commit repetido não acha mais a reserva
	w = post(t, h, "/garage/stake/commit", dto.SettleStakeRequest{
		PlayerID: "p1", Stake: dto.Stake{Type: "currency"}, ExternalRef: "wager-1", BeneficiaryID: "p2",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("double commit = %d, want 409", w.Code)
	}
}

func TestRefundRestoresBalance(t *testing.T) {
	f := newFakeRepo()
	f.balances["p1"] = 20_000
	h := newTestServer(f)

	post(t, h, "/garage/stake/reserve", dto.ReserveStakeRequest{
		PlayerID: "p1", Stake: dto.Stake{Type: "currency", CurrencyCR: 5_000}, ExternalRef: "wager-9",
	})
	w := post(t, h, "/garage/stake/refund", dto.SettleStakeRequest{
		PlayerID: "p1", Stake: dto.Stake{Type: "currency"}, ExternalRef: "wager-9",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("refund = %d: %s", w.Code, w.Body.String())
	}
	if f.balances["p1"] != 20_000 {
		t.Errorf("balance after refund = %d, want 20000", f.balances["p1"])
	}
}

func TestVehicleStakeReserveAndRelease(t *testing.T) {
	f := newFakeRepo()
	f.vehicles["v1"] = &repo.Vehicle{ID: "v1", OwnerID: "p1", Make: "Nissan", Model: "180SX", ValueCR: 40_000}
	h := newTestServer(f)

	w := post(t, h, "/garage/stake/reserve", dto.ReserveStakeRequest{
		PlayerID: "p1", Stake: dto.Stake{Type: "vehicle", ItemID: "v1"}, ExternalRef: "wager-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reserve = %d: %s", w.Code, w.Body.String())
	}
	if f.vehicles["v1"].StakeRef != "wager-1" {
		t.Fatalf("StakeRef = %q, want wager-1", f.vehicles["v1"].StakeRef)
	}

	// Um veículo só entra em um wager por vez
	w = post(t, h, "/garage/stake/reserve", dto.ReserveStakeRequest{
		PlayerID: "p1", Stake: dto.Stake{Type: "vehicle", ItemID: "v1"}, ExternalRef: "wager-2",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("double stake = %d, want 409", w.Code)
	}

	// Veículo de outro jogador não reserva
	w = post(t, h, "/garage/stake/reserve", dto.ReserveStakeRequest{
		PlayerID: "p2", Stake: dto.Stake{Type: "vehicle", ItemID: "v1"}, ExternalRef: "wager-3",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("foreign stake = %d, want 409", w.Code)
	}

	w = post(t, h, "/garage/stake/refund", dto.SettleStakeRequest{
		PlayerID: "p1", Stake: dto.Stake{Type: "vehicle", ItemID: "v1"}, ExternalRef: "wager-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("release = %d: %s", w.Code, w.Body.String())
	}
	if f.vehicles["v1"].StakeRef != "" {
		t.Errorf("StakeRef = %q, want empty after release", f.vehicles["v1"].StakeRef)
	}
}

func TestVehicleStakesNeverCommit(t *testing.T) {
	f := newFakeRepo()
	h := newTestServer(f)

	w := post(t, h, "/garage/stake/commit", dto.SettleStakeRequest{
		PlayerID: "p1", Stake: dto.Stake{Type: "vehicle", ItemID: "v1"}, ExternalRef: "wager-1", BeneficiaryID: "p2",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("vehicle commit = %d, want 422: ownership moves only through transfer", w.Code)
	}
}

func TestTransferIsOncePerRace(t *testing.T) {
	f := newFakeRepo()
	f.vehicles["v1"] = &repo.Vehicle{ID: "v1", OwnerID: "loser", Make: "Mazda", Model: "RX-7", ValueCR: 60_000}
	h := newTestServer(f)

	req := dto.TransferRequest{
		WagerID: "wg1", RaceID: "race-1", WinnerID: "winner", LoserID: "loser",
		VehicleID: "v1", TrackID: "haruna_downhill", MarginMS: 840, Witnesses: 3,
	}
	w := post(t, h, "/garage/vehicles/transfer", req)
	if w.Code != http.StatusOK {
		t.Fatalf("transfer = %d: %s", w.Code, w.Body.String())
	}
	if f.vehicles["v1"].OwnerID != "winner" {
		t.Fatalf("OwnerID = %s, want winner", f.vehicles["v1"].OwnerID)
	}
	if f.vehicles["v1"].AcquiredVia != "pink_slip" {
		t.Errorf("AcquiredVia = %s, want pink_slip", f.vehicles["v1"].AcquiredVia)
	}

	// Reentrega do evento da corrida não pode transferir de novo
	if w = post(t, h, "/garage/vehicles/transfer", req); w.Code != http.StatusConflict {
		t.Errorf("repeat transfer = %d, want 409", w.Code)
	}

	// Perdedor que não é dono vira 422
	f.vehicles["v2"] = &repo.Vehicle{ID: "v2", OwnerID: "someone-else", Make: "Toyota", Model: "AE86", ValueCR: 25_000}
	req.RaceID, req.VehicleID = "race-2", "v2"
	if w = post(t, h, "/garage/vehicles/transfer", req); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("not-owner transfer = %d, want 422", w.Code)
	}
}

func TestEligibilityEndpoint(t *testing.T) {
	f := newFakeRepo()
	f.vehicles["v1"] = &repo.Vehicle{ID: "v1", OwnerID: "p1", PI: 710, ValueCR: 40_000, StakeRef: "wager-7"}
	h := newTestServer(f)

	w := get(h, "/garage/eligibility?playerId=p1&vehicleId=v1")
	if w.Code != http.StatusOK {
		t.Fatalf("eligibility = %d: %s", w.Code, w.Body.String())
	}
	var resp dto.EligibilityDataResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Staked {
		t.Error("Staked = false, vehicle has an open stake ref")
	}
	if resp.VehiclePI != 710 || resp.OwnedVehicles != 1 {
		t.Errorf("PI/OwnedVehicles = %d/%d, want 710/1", resp.VehiclePI, resp.OwnedVehicles)
	}

	if w = get(h, "/garage/eligibility?playerId=p1&vehicleId=nope"); w.Code != http.StatusNotFound {
		t.Errorf("unknown vehicle = %d, want 404", w.Code)
	}
	if w = get(h, "/garage/eligibility?playerId=p1"); w.Code != http.StatusBadRequest {
		t.Errorf("missing vehicleId = %d, want 400", w.Code)
	}
}

func TestMechanicJobs(t *testing.T) {
	f := newFakeRepo()
	f.vehicles["v1"] = &repo.Vehicle{ID: "v1", OwnerID: "p1", ValueCR: 30_000}
	h := newTestServer(f)

	w := post(t, h, "/garage/mechanic/jobs", dto.StartMechanicJobRequest{
		PlayerID: "p1", VehicleID: "v1", JobType: "tune",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("start job = %d: %s", w.Code, w.Body.String())
	}

	w = post(t, h, "/garage/mechanic/jobs", dto.StartMechanicJobRequest{
		PlayerID: "p1", VehicleID: "ghost", JobType: "repair",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("job on unknown vehicle = %d, want 404", w.Code)
	}

	w = get(h, "/garage/mechanic/jobs?playerId=p1")
	if w.Code != http.StatusOK {
		t.Fatalf("list jobs = %d", w.Code)
	}
	var jobs []dto.MechanicJobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &jobs); err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].JobType != "tune" {
		t.Errorf("jobs = %+v, want one tune job", jobs)
	}
}
