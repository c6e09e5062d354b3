package sim

import (
	"time"

	"github.com/midnightgrind/race-wager-platform/pkg/contracts/events"
)

const ticksPerStage = 4

// telemetry converte as etapas em ticks de posição para o feed ao vivo.
// Os ticks interpolam o gap final da etapa; bom o bastante para espectador
func (e *Engine) telemetry(req RunRequest, stages []events.StageResult, now time.Time) []events.RaceTelemetry {
	var ticks []events.RaceTelemetry
	version := 1

	for _, stage := range stages {
		leader := stage.LeaderID
		if leader == "" {
			leader = fastest(req.Entrants, stage)
		}
		chaser := otherOf(req.Entrants, leader)

		for t := 1; t <= ticksPerStage; t++ {
			frac := float64(t) / ticksPerStage
			gapM := float64(stage.FinishGapMS) / 1000.0 * 27.0 * frac // ~27 m/s de diferença útil
			if gapM < 0 {
				gapM = -gapM
			}

			first, second := leader, chaser
			if stage.FinishGapMS < 0 && t == ticksPerStage {
				first, second = chaser, leader
			}

			ticks = append(ticks, events.RaceTelemetry{
				RaceID:   req.RaceID,
				TrackID:  req.TrackID,
				RaceType: req.RaceType,
				Stage:    stage.Stage,
				Standings: []events.Standing{
					{RacerID: first, Position: 1, GapM: 0, SpeedKMH: 140 + e.rng.Float64()*120, Lap: lapOf(req, frac)},
					{RacerID: second, Position: 2, GapM: gapM, SpeedKMH: 140 + e.rng.Float64()*120, Lap: lapOf(req, frac)},
				},
				UpdatedAt: now,
				Source:    Source,
				Version:   version,
			})
			version++
		}
	}
	return ticks
}

func lapOf(req RunRequest, frac float64) int {
	if req.Laps <= 1 {
		return 0
	}
	lap := int(frac*float64(req.Laps)) + 1
	if lap > req.Laps {
		lap = req.Laps
	}
	return lap
}

func fastest(entrants []string, s events.StageResult) string {
	best := entrants[0]
	for _, id := range entrants[1:] {
		if s.TimesMS[id] < s.TimesMS[best] {
			best = id
		}
	}
	return best
}
