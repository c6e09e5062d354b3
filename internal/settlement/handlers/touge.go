package handlers

import "github.com/midnightgrind/race-wager-platform/pkg/contracts/events"

// GapOutMS decide um heat de touge na hora: o perseguidor perdeu o contato
const GapOutMS = 5_000

// Touge corre em heats alternados de líder e perseguidor.
// O fluxo é AwaitingHeat1 → AwaitingHeat2 → {Decided, SuddenDeath}:
// gap-out em qualquer heat decide na hora; heats divididos vão
// para a morte súbita na terceira etapa
type Touge struct{}

type tougeState int

const (
	awaitingHeat1 tougeState = iota
	awaitingHeat2
	suddenDeath
	decided
)

func (Touge) Decide(race events.RaceFinished) Outcome {
	if len(race.Entrants) != 2 {
		return disputed("touge needs two entrants")
	}

	state := awaitingHeat1
	var heatWinners []string
	var out Outcome

	for _, stage := range race.Stages {
		switch state {
		case awaitingHeat1, awaitingHeat2:
			winner, gapOut, ok := heatResult(race, stage)
			if !ok {
				return disputed("unreadable heat result")
			}
			if gapOut {
				// Gap-out encerra a corrida independente do heat restante
				out = won(winner, other(race.Entrants, winner), stage.FinishGapMS, "gap-out")
				state = decided
				break
			}
			heatWinners = append(heatWinners, winner)
			if state == awaitingHeat1 {
				state = awaitingHeat2
				break
			}
			// Dois heats corridos: mesmo vencedor fecha, divisão vai à morte súbita
			if heatWinners[0] == heatWinners[1] {
				out = won(heatWinners[0], other(race.Entrants, heatWinners[0]), absMS(stage.FinishGapMS), "both heats")
				state = decided
			} else {
				state = suddenDeath
			}
		case suddenDeath:
			winner, _, ok := heatResult(race, stage)
			if !ok {
				return disputed("unreadable sudden death result")
			}
			out = won(winner, other(race.Entrants, winner), absMS(stage.FinishGapMS), "sudden death")
			state = decided
		case decided:
			// Etapas além da decisão são ignoradas
		}
	}

	if state != decided {
		return disputed("race ended before a deciding stage")
	}
	return out
}

// heatResult lê um heat: gap positivo mantém o líder na frente,
// negativo significa que o perseguidor ultrapassou e segurou
func heatResult(race events.RaceFinished, stage events.StageResult) (winner string, gapOut, ok bool) {
	if stage.LeaderID == "" {
		return "", false, false
	}
	chaser := other(race.Entrants, stage.LeaderID)
	if chaser == "" {
		return "", false, false
	}

	switch {
	case stage.FinishGapMS >= GapOutMS:
		return stage.LeaderID, true, true
	case stage.FinishGapMS > 0:
		return stage.LeaderID, false, true
	case stage.FinishGapMS < 0:
		return chaser, false, true
	}
	return "", false, false
}

func absMS(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
