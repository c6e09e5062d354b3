package sim

import (
	"fmt"
	"testing"
	"time"

	"github.com/midnightgrind/race-wager-platform/internal/settlement/handlers"
)

var simNow = time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

// O settlement worker confere toda corrida do simulador contra o handler
// da disciplina. Uma corrida gerada que o handler disputa travaria stakes
// à toa, então nenhum seed pode produzir uma.
func TestGeneratedRacesAlwaysSettle(t *testing.T) {
	for _, raceType := range []string{"sprint", "touge", "highway_battle"} {
		t.Run(raceType, func(t *testing.T) {
			e := NewEngine(42)
			for i := 0; i < 500; i++ {
				req := RunRequest{
					RaceID:   fmt.Sprintf("race-%s-%d", raceType, i),
					TrackID:  "shutoko_c1_loop",
					RaceType: raceType,
					Laps:     1,
					Entrants: []string{"a", "b"},
				}
				_, fin := e.Race(req, simNow)

				h, err := handlers.ForRaceType(raceType)
				if err != nil {
					t.Fatal(err)
				}
				out := handlers.Settle(h, fin)
				if !out.Decided || out.Disputed {
					t.Fatalf("race %d disputed: %s (stages %+v)", i, out.Note, fin.Stages)
				}
				if out.WinnerID != fin.ReportedWinner {
					t.Fatalf("race %d: handler winner %s, simulator reported %s", i, out.WinnerID, fin.ReportedWinner)
				}
			}
		})
	}
}

func TestVerify(t *testing.T) {
	e := NewEngine(7)
	_, fin := e.Race(RunRequest{
		RaceID: "r1", TrackID: "akagi_pass", RaceType: "sprint", Laps: 1, Entrants: []string{"a", "b"},
	}, simNow)

	got, ok, err := e.Verify("r1", fin.ReportedWinner, fin.MarginMS)
	if err != nil || !ok {
		t.Fatalf("Verify(exact) = %v, %v", ok, err)
	}
	if got.RaceID != "r1" {
		t.Errorf("RaceID = %s", got.RaceID)
	}

	// Margem tolera 1ms de arredondamento, nada além
	if _, ok, _ := e.Verify("r1", fin.ReportedWinner, fin.MarginMS+1); !ok {
		t.Error("Verify must tolerate a 1ms margin difference")
	}
	if _, ok, _ := e.Verify("r1", fin.ReportedWinner, fin.MarginMS+2); ok {
		t.Error("Verify must reject a 2ms margin difference")
	}

	loser := otherOf(fin.Entrants, fin.ReportedWinner)
	if _, ok, _ := e.Verify("r1", loser, fin.MarginMS); ok {
		t.Error("Verify must reject the wrong winner")
	}

	if _, _, err := e.Verify("ghost", "a", 0); err != ErrUnknownRace {
		t.Errorf("Verify(unknown) = %v, want %v", err, ErrUnknownRace)
	}
}

func TestAmbientRequestPicksTwoDistinctNPCs(t *testing.T) {
	e := NewEngine(99)
	for i := 0; i < 200; i++ {
		req := e.AmbientRequest(fmt.Sprintf("ambient-%d", i))
		if len(req.Entrants) != 2 || req.Entrants[0] == req.Entrants[1] {
			t.Fatalf("Entrants = %v", req.Entrants)
		}
		if req.TrackID == "" || req.RaceType == "" {
			t.Fatalf("incomplete request: %+v", req)
		}
	}
}

func TestTelemetryTicksCoverEveryStage(t *testing.T) {
	e := NewEngine(3)
	ticks, fin := e.Race(RunRequest{
		RaceID: "r2", TrackID: "haruna_downhill", RaceType: "touge", Laps: 1, Entrants: []string{"a", "b"},
	}, simNow)

	if len(ticks) == 0 {
		t.Fatal("race produced no telemetry")
	}
	seen := map[int]bool{}
	for _, tk := range ticks {
		if tk.RaceID != "r2" {
			t.Fatalf("tick RaceID = %s", tk.RaceID)
		}
		seen[tk.Stage] = true
	}
	for _, st := range fin.Stages {
		if !seen[st.Stage] {
			t.Errorf("stage %d has no telemetry ticks", st.Stage)
		}
	}
}
