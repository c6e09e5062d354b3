package handlers

import "github.com/midnightgrind/race-wager-platform/pkg/contracts/events"

// Sprint é a disciplina mais simples: etapa única, menor tempo total vence.
// Empate exato de tempos vira disputa
type Sprint struct{}

func (Sprint) Decide(race events.RaceFinished) Outcome {
	if len(race.Entrants) != 2 || len(race.Stages) == 0 {
		return disputed("sprint needs two entrants and one stage")
	}

	stage := race.Stages[0]
	a, b := race.Entrants[0], race.Entrants[1]
	ta, okA := stage.TimesMS[a]
	tb, okB := stage.TimesMS[b]
	if !okA || !okB {
		return disputed("missing finish time")
	}

	switch {
	case ta < tb:
		return won(a, b, tb-ta, "lowest total time")
	case tb < ta:
		return won(b, a, ta-tb, "lowest total time")
	}
	return disputed("dead heat")
}
