package sim

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/midnightgrind/race-wager-platform/pkg/contracts/events"
)

// Source identifica o simulador nos eventos que ele gera
const Source = "race-simulator"

var ErrUnknownRace = errors.New("race not found")

// RunRequest agenda uma corrida apostada
type RunRequest struct {
	RaceID   string   `json:"raceId"`
	TrackID  string   `json:"trackId"`
	RaceType string   `json:"race_type"`
	Laps     int      `json:"laps"`
	Entrants []string `json:"entrants"`
	PinkSlip bool     `json:"pink_slip"`
}

// Catálogo de pistas para corridas ambiente
var trackCatalog = []string{
	"shutoko_c1_loop",
	"haruna_downhill",
	"industrial_docks_sprint",
	"wangan_expressway",
	"akagi_pass",
}

var npcRacers = []string{
	"npc_blackbird",
	"npc_devil_z",
	"npc_hachiroku",
	"npc_gtr_king",
	"npc_fd_ghost",
	"npc_evo_street",
}

// Engine gera corridas etapa a etapa e guarda os resultados para conferência.
type Engine struct {
	mu       sync.RWMutex
	rng      *rand.Rand
	finished map[string]events.RaceFinished
}

func NewEngine(seed int64) *Engine {
	return &Engine{
		rng:      rand.New(rand.NewSource(seed)),
		finished: make(map[string]events.RaceFinished),
	}
}

// Race disputa a corrida inteira de uma vez: devolve os ticks de telemetria
// na ordem de emissão e o resultado final já registrado para conferência
func (e *Engine) Race(req RunRequest, now time.Time) ([]events.RaceTelemetry, events.RaceFinished) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stages []events.StageResult
	switch req.RaceType {
	case "touge":
		stages = e.tougeStages(req.Entrants)
	case "highway_battle":
		stages = e.highwayStages(req.Entrants)
	default:
		stages = e.sprintStages(req.Entrants)
	}

	ticks := e.telemetry(req, stages, now)

	winner, margin := outcomeOf(req.Entrants, req.RaceType, stages)
	fin := events.RaceFinished{
		RaceID:         req.RaceID,
		TrackID:        req.TrackID,
		RaceType:       req.RaceType,
		Entrants:       req.Entrants,
		Stages:         stages,
		ReportedWinner: winner,
		MarginMS:       margin,
		Witnesses:      e.rng.Intn(40) + 2,
		FinishedAt:     now,
		Source:         Source,
	}
	e.finished[req.RaceID] = fin
	return ticks, fin
}

// AmbientRequest sorteia uma corrida de NPCs para manter o feed vivo
func (e *Engine) AmbientRequest(raceID string) RunRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.rng.Intn(len(npcRacers))
	b := e.rng.Intn(len(npcRacers) - 1)
	if b >= a {
		b++
	}
	types := []string{"sprint", "touge", "highway_battle"}
	return RunRequest{
		RaceID:   raceID,
		TrackID:  trackCatalog[e.rng.Intn(len(trackCatalog))],
		RaceType: types[e.rng.Intn(len(types))],
		Laps:     1,
		Entrants: []string{npcRacers[a], npcRacers[b]},
	}
}

// Verify confere um resultado contra o que o simulador registrou.
// O vencedor precisa bater; a margem tolera arredondamento de 1ms
func (e *Engine) Verify(raceID, winnerID string, marginMS int64) (events.RaceFinished, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	fin, ok := e.finished[raceID]
	if !ok {
		return events.RaceFinished{}, false, ErrUnknownRace
	}
	if fin.ReportedWinner == "" {
		return fin, winnerID == "", nil
	}
	diff := fin.MarginMS - marginMS
	if diff < 0 {
		diff = -diff
	}
	return fin, winnerID == fin.ReportedWinner && diff <= 1, nil
}

func (e *Engine) sprintStages(entrants []string) []events.StageResult {
	base := int64(170_000 + e.rng.Intn(40_000))
	margin := int64(e.rng.Intn(4_000) + 50)
	winner := e.rng.Intn(2)

	times := map[string]int64{}
	for i, id := range entrants {
		if i == winner {
			times[id] = base
		} else {
			times[id] = base + margin
		}
	}
	return []events.StageResult{{
		Stage:       1,
		Kind:        "sprint",
		TimesMS:     times,
		FinishGapMS: margin,
	}}
}

func (e *Engine) tougeStages(entrants []string) []events.StageResult {
	// Heat 1: desafiante lidera; heat 2 inverte. Gap-out raro encerra cedo
	heat1 := e.heat(1, "lead_heat", entrants[0], entrants)
	if heat1.FinishGapMS >= 5_000 {
		return []events.StageResult{heat1}
	}
	heat2 := e.heat(2, "chase_heat", entrants[1], entrants)
	if heat2.FinishGapMS >= 5_000 {
		return []events.StageResult{heat1, heat2}
	}

	w1 := heatWinner(entrants, heat1)
	w2 := heatWinner(entrants, heat2)
	if w1 == w2 {
		return []events.StageResult{heat1, heat2}
	}
	sd := e.heat(3, "sudden_death", entrants[e.rng.Intn(2)], entrants)
	return []events.StageResult{heat1, heat2, sd}
}

func (e *Engine) heat(stage int, kind, leader string, entrants []string) events.StageResult {
	base := int64(110_000 + e.rng.Intn(30_000))
	// Gap negativo = ultrapassagem do perseguidor; ~1 em 12 heats tem gap-out
	gap := int64(e.rng.Intn(7_000) - 2_500)
	if e.rng.Intn(12) == 0 {
		gap = int64(5_000 + e.rng.Intn(3_000))
	}
	if gap == 0 {
		gap = 120
	}

	times := map[string]int64{}
	for _, id := range entrants {
		if id == leader {
			times[id] = base
		} else {
			times[id] = base + gap
		}
	}
	return events.StageResult{
		Stage:       stage,
		Kind:        kind,
		LeaderID:    leader,
		TimesMS:     times,
		FinishGapMS: gap,
	}
}

func (e *Engine) highwayStages(entrants []string) []events.StageResult {
	leader := entrants[e.rng.Intn(2)]
	stages := make([]events.StageResult, 0, 3)
	for i := 1; i <= 3; i++ {
		gapM := e.rng.Float64() * 350
		gapMS := int64(e.rng.Intn(5_000) - 2_000)
		if gapMS == 0 {
			gapMS = 90
		}
		hold := int64(0)
		if gapMS < 0 {
			hold = int64(e.rng.Intn(2_500))
		}
		stage := events.StageResult{
			Stage:          i,
			Kind:           "rolling",
			LeaderID:       leader,
			FinishGapMS:    gapMS,
			MaxLeadGapM:    gapM,
			OvertakeHoldMS: hold,
		}
		stages = append(stages, stage)
		// Trecho decidido encerra a corrida
		if gapM >= 300 || (gapMS < 0 && hold >= 1_000) {
			return stages
		}
	}
	return stages
}

func heatWinner(entrants []string, s events.StageResult) string {
	if s.FinishGapMS > 0 {
		return s.LeaderID
	}
	for _, id := range entrants {
		if id != s.LeaderID {
			return id
		}
	}
	return s.LeaderID
}

// outcomeOf espelha a leitura que o settlement faz das etapas, para o
// vencedor reportado nunca divergir do que os handlers vão decidir
func outcomeOf(entrants []string, raceType string, stages []events.StageResult) (string, int64) {
	if len(entrants) != 2 || len(stages) == 0 {
		return "", 0
	}
	switch raceType {
	case "touge":
		last := stages[len(stages)-1]
		if last.FinishGapMS >= 5_000 {
			return last.LeaderID, last.FinishGapMS
		}
		if len(stages) == 2 {
			// Mesmo vencedor nos dois heats
			return heatWinner(entrants, last), abs(last.FinishGapMS)
		}
		return heatWinner(entrants, last), abs(last.FinishGapMS)
	case "highway_battle":
		last := stages[len(stages)-1]
		chaser := otherOf(entrants, last.LeaderID)
		if last.MaxLeadGapM >= 300 {
			return last.LeaderID, abs(last.FinishGapMS)
		}
		if last.FinishGapMS < 0 && last.OvertakeHoldMS >= 1_000 {
			return chaser, abs(last.FinishGapMS)
		}
		if last.FinishGapMS > 0 {
			return last.LeaderID, last.FinishGapMS
		}
		return chaser, abs(last.FinishGapMS)
	default:
		s := stages[0]
		a, b := entrants[0], entrants[1]
		if s.TimesMS[a] < s.TimesMS[b] {
			return a, s.TimesMS[b] - s.TimesMS[a]
		}
		return b, s.TimesMS[a] - s.TimesMS[b]
	}
}

func otherOf(entrants []string, id string) string {
	for _, e := range entrants {
		if e != id {
			return e
		}
	}
	return ""
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
