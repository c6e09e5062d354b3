package events

import "time"

// Resultado de uma etapa (heat, trecho rolante ou corrida única)
// Os handlers de cada disciplina interpretam os campos relevantes
type StageResult struct {
	Stage          int              `json:"stage"`
	Kind           string           `json:"kind"`             // "sprint" | "lead_heat" | "chase_heat" | "sudden_death" | "rolling"
	LeaderID       string           `json:"leader_id"`        // quem abriu a etapa na ponta (touge/highway)
	TimesMS        map[string]int64 `json:"times_ms"`         // tempo total por corredor, em ms
	FinishGapMS    int64            `json:"finish_gap_ms"`    // gap líder→perseguidor no fim da etapa (negativo = ultrapassado)
	MaxLeadGapM    float64          `json:"max_lead_gap_m"`   // maior vantagem do líder em metros (highway battle)
	OvertakeHoldMS int64            `json:"overtake_hold_ms"` // por quanto tempo o perseguidor segurou a ponta após ultrapassar
}

// Evento publicado no tópico "race_finished" quando o simulador encerra uma corrida
type RaceFinished struct {
	RaceID         string        `json:"race_id"`
	TrackID        string        `json:"track_id"`
	RaceType       string        `json:"race_type"`
	Entrants       []string      `json:"entrants"`
	Stages         []StageResult `json:"stages"`
	ReportedWinner string        `json:"reported_winner"` // vencedor segundo o simulador; conferido pelo handler
	MarginMS       int64         `json:"margin_ms"`
	Witnesses      int           `json:"witnesses"`
	FinishedAt     time.Time     `json:"finished_at"`
	Source         string        `json:"source"`
}
