package events

import "time"

// Posição de um corredor num instante da corrida
type Standing struct {
	RacerID  string  `json:"racer_id"`
	Position int     `json:"position"`
	GapM     float64 `json:"gap_m"`     // distância para o líder, em metros
	SpeedKMH float64 `json:"speed_kmh"` // velocidade instantânea
	Lap      int     `json:"lap"`       // volta atual (0 em disciplinas sem volta)
}

// Evento publicado no tópico "race_telemetry" a cada tick do simulador
type RaceTelemetry struct {
	RaceID    string     `json:"race_id"`
	TrackID   string     `json:"track_id"`
	RaceType  string     `json:"race_type"` // "sprint" | "touge" | "highway_battle" | "pink_slip"
	Stage     int        `json:"stage"`     // índice da etapa corrente (heat, trecho)
	Standings []Standing `json:"standings"`
	UpdatedAt time.Time  `json:"updated_at"`
	Source    string     `json:"source"`  // "race-simulator"
	Version   int        `json:"version"` // incrementado a cada tick
}
