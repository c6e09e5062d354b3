package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	gdto "github.com/midnightgrind/race-wager-platform/internal/garage-service/dto"
	sdto "github.com/midnightgrind/race-wager-platform/internal/settlement/dto"
	"github.com/midnightgrind/race-wager-platform/internal/shared/config"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/engine"
	wrepo "github.com/midnightgrind/race-wager-platform/internal/wager-service/repo"
	ev "github.com/midnightgrind/race-wager-platform/pkg/contracts/events"
)

type fakeWagers struct {
	byRace  map[string]*engine.Wager
	saveErr error
	saves   int
}

func (f *fakeWagers) GetByRace(_ context.Context, raceID string) (*engine.Wager, error) {
	w, ok := f.byRace[raceID]
	if !ok {
		return nil, wrepo.ErrNotFound
	}
	cp := *w // o repo real relê do banco; sem Save, nada muda
	return &cp, nil
}

func (f *fakeWagers) Save(_ context.Context, w *engine.Wager) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.byRace[w.RaceID] = w
	return nil
}

func (f *fakeWagers) InsertTransition(context.Context, string, engine.State, engine.State, string) error {
	return nil
}

type garageCall struct {
	op          string // "commit" | "refund" | "transfer"
	playerID    string
	beneficiary string
	vehicleID   string
}

type fakeGarageAPI struct {
	calls []garageCall
}

func (f *fakeGarageAPI) Transfer(_ context.Context, req gdto.TransferRequest) (string, error) {
	f.calls = append(f.calls, garageCall{op: "transfer", playerID: req.LoserID, beneficiary: req.WinnerID, vehicleID: req.VehicleID})
	return "t1", nil
}

func (f *fakeGarageAPI) CommitStake(_ context.Context, playerID string, _ gdto.Stake, _, beneficiaryID string) error {
	f.calls = append(f.calls, garageCall{op: "commit", playerID: playerID, beneficiary: beneficiaryID})
	return nil
}

func (f *fakeGarageAPI) RefundStake(_ context.Context, playerID string, _ gdto.Stake, _ string) error {
	f.calls = append(f.calls, garageCall{op: "refund", playerID: playerID})
	return nil
}

type memSink struct{ msgs [][]byte }

func (s *memSink) Publish(_ context.Context, _ string, payload []byte) error {
	s.msgs = append(s.msgs, payload)
	return nil
}

type workerFixture struct {
	w       *worker
	wagers  *fakeWagers
	garage  *fakeGarageAPI
	settled *memSink
	pinks   *memSink
	dlq     *memSink
	sim     *httptest.Server
}

// newWorkerFixture monta o worker com um simulador HTTP que confirma
// qualquer resultado, salvo se verdict disser outra coisa
func newWorkerFixture(t *testing.T, verdict string) *workerFixture {
	t.Helper()
	if verdict == "" {
		verdict = "confirmed"
	}
	sim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sdto.VerifyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(sdto.VerifyResponse{
			RaceID:    req.RaceID,
			Status:    verdict,
			WinnerID:  req.WinnerID,
			Reason:    "stage times diverge",
			Witnesses: 3,
		})
	}))
	t.Cleanup(sim.Close)

	f := &workerFixture{
		wagers:  &fakeWagers{byRace: map[string]*engine.Wager{}},
		garage:  &fakeGarageAPI{},
		settled: &memSink{},
		pinks:   &memSink{},
		dlq:     &memSink{},
		sim:     sim,
	}
	f.w = &worker{
		log:       zap.NewNop(),
		cfg:       config.Config{SimulatorHTTPURL: sim.URL},
		wagers:    f.wagers,
		garage:    f.garage,
		settled:   f.settled,
		pinkSlips: f.pinks,
		dlq:       f.dlq,
	}
	return f
}

func activeWager(raceID string, pinkSlip bool) *engine.Wager {
	proposer := engine.Participant{PlayerID: "a", Stake: engine.Stake{Type: engine.StakeCurrency, CurrencyCR: 1_000, Locked: true, Accepted: true}}
	target := engine.Participant{PlayerID: "b", Stake: engine.Stake{Type: engine.StakeCurrency, CurrencyCR: 1_000, Locked: true, Accepted: true}}
	if pinkSlip {
		proposer.Stake = engine.Stake{Type: engine.StakeVehicle, ItemID: "veh-a", DeclaredValue: 40_000, Locked: true, Accepted: true}
		target.Stake = engine.Stake{Type: engine.StakeVehicle, ItemID: "veh-b", DeclaredValue: 38_000, Locked: true, Accepted: true}
	}
	return &engine.Wager{
		ID:       "w1",
		State:    engine.StateActive,
		Proposer: proposer,
		Target:   target,
		Conditions: engine.Conditions{
			TrackID:  "wangan_loop",
			RaceType: "sprint",
			Laps:     1,
		},
		PinkSlip: pinkSlip,
		RaceID:   raceID,
	}
}

func finishedSprint(raceID, winner string) ev.RaceFinished {
	times := map[string]int64{"a": 61_000, "b": 62_500}
	if winner == "b" {
		times = map[string]int64{"a": 62_500, "b": 61_000}
	}
	return ev.RaceFinished{
		RaceID:         raceID,
		TrackID:        "wangan_loop",
		RaceType:       "sprint",
		Entrants:       []string{"a", "b"},
		ReportedWinner: winner,
		Stages: []ev.StageResult{{
			Stage:   1,
			Kind:    "sprint",
			TimesMS: times,
		}},
	}
}

func raceMessage(race ev.RaceFinished) []byte {
	b, _ := json.Marshal(race)
	return b
}

func TestConsumeOneHoldsOffsetWhenSettleFails(t *testing.T) {
	f := newWorkerFixture(t, "")
	f.wagers.byRace["r1"] = activeWager("r1", false)
	f.wagers.saveErr = errors.New("pg down")

	msg := raceMessage(finishedSprint("r1", "a"))
	if f.w.consumeOne(context.Background(), []byte("r1"), msg) {
		t.Fatal("offset committed even though the wager could not be saved")
	}
	if got := f.wagers.byRace["r1"].State; got != engine.StateActive {
		t.Fatalf("state = %s, want ACTIVE until the settlement lands", got)
	}

	// A mensagem volta (offset não commitado) e agora fecha
	f.wagers.saveErr = nil
	if !f.w.consumeOne(context.Background(), []byte("r1"), msg) {
		t.Fatal("retry should commit the offset")
	}
	if got := f.wagers.byRace["r1"].State; got != engine.StateCompleted {
		t.Fatalf("state = %s, want COMPLETED after retry", got)
	}
}

func TestConsumeOneSendsMalformedPayloadToDLQ(t *testing.T) {
	f := newWorkerFixture(t, "")
	if !f.w.consumeOne(context.Background(), []byte("k"), []byte("{not json")) {
		t.Fatal("malformed payload should be dropped, not redelivered forever")
	}
	if len(f.dlq.msgs) != 1 {
		t.Fatalf("dlq messages = %d, want 1", len(f.dlq.msgs))
	}
	if len(f.settled.msgs) != 0 {
		t.Fatal("nothing should be settled for a malformed payload")
	}
}

func TestConsumeOneSkipsAmbientRace(t *testing.T) {
	f := newWorkerFixture(t, "")
	if !f.w.consumeOne(context.Background(), []byte("r9"), raceMessage(finishedSprint("r9", "a"))) {
		t.Fatal("ambient race (no wager) should still advance the offset")
	}
	if len(f.settled.msgs) != 0 || len(f.garage.calls) != 0 {
		t.Fatal("ambient race must not touch stakes or publish settlements")
	}
}

func TestCompletePaysWinnerAndPublishes(t *testing.T) {
	f := newWorkerFixture(t, "")
	f.wagers.byRace["r1"] = activeWager("r1", false)

	if !f.w.consumeOne(context.Background(), []byte("r1"), raceMessage(finishedSprint("r1", "b"))) {
		t.Fatal("clean settlement should commit the offset")
	}
	if got := f.wagers.byRace["r1"].State; got != engine.StateCompleted {
		t.Fatalf("state = %s, want COMPLETED", got)
	}

	// Stake do perdedor vai pro vencedor, o do vencedor volta
	want := []garageCall{
		{op: "commit", playerID: "a", beneficiary: "b"},
		{op: "refund", playerID: "b"},
	}
	if len(f.garage.calls) != len(want) {
		t.Fatalf("garage calls = %v, want %v", f.garage.calls, want)
	}
	for i, c := range want {
		if f.garage.calls[i] != c {
			t.Fatalf("garage call %d = %+v, want %+v", i, f.garage.calls[i], c)
		}
	}

	if len(f.settled.msgs) != 1 {
		t.Fatalf("settled events = %d, want 1", len(f.settled.msgs))
	}
	var out ev.WagerSettled
	if err := json.Unmarshal(f.settled.msgs[0], &out); err != nil {
		t.Fatalf("unmarshal settled: %v", err)
	}
	if out.WinnerID != "b" || out.Status != string(engine.StateCompleted) {
		t.Fatalf("settled = %+v, want winner b COMPLETED", out)
	}
	if out.ProposerID != "a" || out.TargetID != "b" || out.ValueCR != 1_000 {
		t.Fatalf("settled sides = %+v, want proposer a, target b, 1000 CR", out)
	}
}

func TestDisputeWhenSimulatorRejects(t *testing.T) {
	f := newWorkerFixture(t, "rejected")
	f.wagers.byRace["r1"] = activeWager("r1", false)

	if !f.w.consumeOne(context.Background(), []byte("r1"), raceMessage(finishedSprint("r1", "a"))) {
		t.Fatal("dispute is a final outcome, the offset should advance")
	}
	if got := f.wagers.byRace["r1"].State; got != engine.StateDisputed {
		t.Fatalf("state = %s, want DISPUTED", got)
	}
	if len(f.garage.calls) != 0 {
		t.Fatalf("disputed wager must keep stakes locked, got %v", f.garage.calls)
	}
	var out ev.WagerSettled
	_ = json.Unmarshal(f.settled.msgs[0], &out)
	if out.Status != string(engine.StateDisputed) || out.WinnerID != "" {
		t.Fatalf("settled = %+v, want DISPUTED without winner", out)
	}
}

func TestPinkSlipTransfersLoserVehicle(t *testing.T) {
	f := newWorkerFixture(t, "")
	f.wagers.byRace["r1"] = activeWager("r1", true)

	if !f.w.consumeOne(context.Background(), []byte("r1"), raceMessage(finishedSprint("r1", "a"))) {
		t.Fatal("pink slip settlement should commit the offset")
	}

	want := []garageCall{
		{op: "transfer", playerID: "b", beneficiary: "a", vehicleID: "veh-b"},
		{op: "refund", playerID: "a"},
	}
	if len(f.garage.calls) != len(want) {
		t.Fatalf("garage calls = %v, want %v", f.garage.calls, want)
	}
	for i, c := range want {
		if f.garage.calls[i] != c {
			t.Fatalf("garage call %d = %+v, want %+v", i, f.garage.calls[i], c)
		}
	}

	if len(f.pinks.msgs) != 1 {
		t.Fatalf("pink slip events = %d, want 1", len(f.pinks.msgs))
	}
	var tr ev.PinkSlipTransferred
	if err := json.Unmarshal(f.pinks.msgs[0], &tr); err != nil {
		t.Fatalf("unmarshal transfer: %v", err)
	}
	if tr.TransferID != "t1" || tr.WinnerID != "a" || tr.VehicleID != "veh-b" {
		t.Fatalf("transfer = %+v, want t1 to a for veh-b", tr)
	}
}
