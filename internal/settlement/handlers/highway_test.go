package handlers

import (
	"testing"

	"github.com/midnightgrind/race-wager-platform/pkg/contracts/events"
)

func highwayRace(stages ...events.StageResult) events.RaceFinished {
	return events.RaceFinished{
		RaceID:   "r1",
		RaceType: "highway_battle",
		Entrants: []string{"a", "b"},
		Stages:   stages,
	}
}

func rolling(leader string, gapMS int64, maxLeadM float64, holdMS int64) events.StageResult {
	return events.StageResult{
		Kind:           "rolling",
		LeaderID:       leader,
		FinishGapMS:    gapMS,
		MaxLeadGapM:    maxLeadM,
		OvertakeHoldMS: holdMS,
	}
}

func TestHighwayDecide(t *testing.T) {
	tests := []struct {
		name       string
		race       events.RaceFinished
		wantWinner string
		wantNote   string
		disputed   bool
	}{
		{
			name:       "leader gaps out in meters",
			race:       highwayRace(rolling("a", 4_300, 312.5, 0)),
			wantWinner: "a",
			wantNote:   "gapped out",
		},
		{
			name: "gap-out on a later stage",
			race: highwayRace(
				rolling("a", 600, 120.0, 0),
				rolling("a", 2_100, 300.0, 0),
			),
			wantWinner: "a",
			wantNote:   "gapped out",
		},
		{
			name:       "chaser overtakes and holds the lead",
			race:       highwayRace(rolling("a", -800, 90.0, 1_400)),
			wantWinner: "b",
			wantNote:   "overtake held",
		},
		{
			name:       "overtake without the hold falls to the marker",
			race:       highwayRace(rolling("a", -800, 90.0, 600)),
			wantWinner: "b",
			wantNote:   "first across the marker",
		},
		{
			name: "no decision, leader first across the marker",
			race: highwayRace(
				rolling("a", 400, 110.0, 0),
				rolling("a", 250, 95.0, 0),
			),
			wantWinner: "a",
			wantNote:   "first across the marker",
		},
		{
			name:     "level at the marker",
			race:     highwayRace(rolling("a", 0, 80.0, 0)),
			disputed: true,
		},
		{
			name:     "stage without a leader",
			race:     highwayRace(rolling("", 400, 80.0, 0)),
			disputed: true,
		},
		{
			name:     "no stages",
			race:     highwayRace(),
			disputed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Highway{}.Decide(tt.race)
			if !out.Decided {
				t.Fatal("highway must always decide or dispute")
			}
			if out.Disputed != tt.disputed {
				t.Fatalf("Disputed = %v, want %v (%s)", out.Disputed, tt.disputed, out.Note)
			}
			if tt.disputed {
				return
			}
			if out.WinnerID != tt.wantWinner {
				t.Errorf("WinnerID = %s, want %s", out.WinnerID, tt.wantWinner)
			}
			if out.Note != tt.wantNote {
				t.Errorf("Note = %s, want %s", out.Note, tt.wantNote)
			}
			if out.MarginMS < 0 {
				t.Errorf("MarginMS = %d, margins are reported as magnitudes", out.MarginMS)
			}
		})
	}
}

func TestPinkSlipWrapsBaseDiscipline(t *testing.T) {
	h, err := ForPinkSlip("sprint")
	if err != nil {
		t.Fatal(err)
	}

	out := h.Decide(sprintRace(92_400, 93_150))
	if out.Disputed || out.WinnerID != "a" {
		t.Fatalf("Disputed = %v, WinnerID = %s", out.Disputed, out.WinnerID)
	}
	if out.Note != "pink slip: lowest total time" {
		t.Errorf("Note = %q, pink slip outcomes carry the prefix", out.Note)
	}

	// Disputa não ganha prefixo: não houve decisão de posse
	out = h.Decide(sprintRace(92_400, 92_400))
	if !out.Disputed {
		t.Fatal("dead heat must dispute")
	}
	if out.Note == "pink slip: dead heat" {
		t.Error("disputed outcomes must not carry the pink slip prefix")
	}

	if _, err := ForPinkSlip("drag"); err != ErrUnknownRaceType {
		t.Errorf("ForPinkSlip(drag) = %v, want %v", err, ErrUnknownRaceType)
	}
}
