package handlers

import "github.com/midnightgrind/race-wager-platform/pkg/contracts/events"

const (
	// GapOutMeters decide uma highway battle: o líder abriu de vez
	GapOutMeters = 300.0
	// OvertakeHoldMS é quanto o perseguidor precisa segurar a ponta após ultrapassar
	OvertakeHoldMS = 1_000
)

// Highway corre em trechos rolantes. O líder vence gapeando
// GapOutMeters; o perseguidor vence ultrapassando e segurando a ponta
// por OvertakeHoldMS; sem decisão, o último trecho vale pela linha de chegada
type Highway struct{}

func (Highway) Decide(race events.RaceFinished) Outcome {
	if len(race.Entrants) != 2 || len(race.Stages) == 0 {
		return disputed("highway battle needs two entrants and stages")
	}

	for _, stage := range race.Stages {
		if stage.LeaderID == "" {
			return disputed("rolling stage without a leader")
		}
		chaser := other(race.Entrants, stage.LeaderID)

		if stage.MaxLeadGapM >= GapOutMeters {
			return won(stage.LeaderID, chaser, absMS(stage.FinishGapMS), "gapped out")
		}
		if stage.FinishGapMS < 0 && stage.OvertakeHoldMS >= OvertakeHoldMS {
			return won(chaser, stage.LeaderID, absMS(stage.FinishGapMS), "overtake held")
		}
	}

	// Ninguém decidiu no rolamento: vale a linha de chegada do último trecho
	last := race.Stages[len(race.Stages)-1]
	chaser := other(race.Entrants, last.LeaderID)
	switch {
	case last.FinishGapMS > 0:
		return won(last.LeaderID, chaser, last.FinishGapMS, "first across the marker")
	case last.FinishGapMS < 0:
		return won(chaser, last.LeaderID, -last.FinishGapMS, "first across the marker")
	}
	return disputed("level at the marker")
}
