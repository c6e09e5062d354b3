package handlers

import (
	"errors"

	"github.com/midnightgrind/race-wager-platform/pkg/contracts/events"
)

var ErrUnknownRaceType = errors.New("no handler for race type")

// Outcome é a decisão de um handler sobre uma corrida encerrada.
// Disputed cobre empates e resultados que não fecham com as etapas
type Outcome struct {
	Decided  bool
	Disputed bool
	WinnerID string
	LoserID  string
	MarginMS int64
	Note     string
}

// Handler interpreta as etapas de uma disciplina e aponta o vencedor.
type Handler interface {
	Decide(race events.RaceFinished) Outcome
}

// ForRaceType devolve o handler da disciplina
func ForRaceType(raceType string) (Handler, error) {
	switch raceType {
	case "sprint":
		return Sprint{}, nil
	case "touge":
		return Touge{}, nil
	case "highway_battle":
		return Highway{}, nil
	}
	return nil, ErrUnknownRaceType
}

// Settle roda o handler e confere a decisão contra o vencedor reportado
// pelo simulador. Divergência vira disputa, nunca liquidação
func Settle(h Handler, race events.RaceFinished) Outcome {
	out := h.Decide(race)
	if !out.Decided || out.Disputed {
		return out
	}
	if race.ReportedWinner != "" && race.ReportedWinner != out.WinnerID {
		return Outcome{
			Decided:  true,
			Disputed: true,
			Note:     "handler decision differs from reported winner",
		}
	}
	return out
}

func disputed(note string) Outcome {
	return Outcome{Decided: true, Disputed: true, Note: note}
}

func won(winner, loser string, marginMS int64, note string) Outcome {
	return Outcome{Decided: true, WinnerID: winner, LoserID: loser, MarginMS: marginMS, Note: note}
}

// other devolve o adversário numa corrida de dois
func other(entrants []string, id string) string {
	for _, e := range entrants {
		if e != id {
			return e
		}
	}
	return ""
}
