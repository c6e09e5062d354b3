package handlers

import "github.com/midnightgrind/race-wager-platform/pkg/contracts/events"

// PinkSlip embrulha o handler da disciplina base. A decisão em si é a mesma;
// o que muda é a consequência, e quem executa a transferência de posse é o
// settlement worker quando vê um wager pink slip decidido
type PinkSlip struct {
	Base Handler
}

// ForPinkSlip monta o wrapper sobre a disciplina da corrida
func ForPinkSlip(raceType string) (PinkSlip, error) {
	base, err := ForRaceType(raceType)
	if err != nil {
		return PinkSlip{}, err
	}
	return PinkSlip{Base: base}, nil
}

func (p PinkSlip) Decide(race events.RaceFinished) Outcome {
	out := p.Base.Decide(race)
	if out.Decided && !out.Disputed {
		out.Note = "pink slip: " + out.Note
	}
	return out
}
