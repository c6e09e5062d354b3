package dto

import "encoding/json"

// RaceSummary lista uma corrida em andamento ou recém-encerrada
type RaceSummary struct {
	RaceID    string `json:"raceId"`
	TrackID   string `json:"trackId"`
	RaceType  string `json:"race_type"`
	Stage     int    `json:"stage"`
	Version   int    `json:"version"`
	UpdatedAt string `json:"updatedAt"`
}

// RaceStandings é a classificação corrente de uma corrida.
// Standings fica em JSON cru: o shape é o mesmo da telemetria
type RaceStandings struct {
	RaceID    string          `json:"raceId"`
	TrackID   string          `json:"trackId"`
	RaceType  string          `json:"race_type"`
	Stage     int             `json:"stage"`
	Standings json.RawMessage `json:"standings"`
	Version   int             `json:"version"`
	UpdatedAt string          `json:"updatedAt"`
}

// WagerHistoryEntry resume um wager encerrado para o feed
type WagerHistoryEntry struct {
	WagerID    string `json:"wagerId"`
	State      string `json:"state"`
	ProposerID string `json:"proposerId"`
	TargetID   string `json:"targetId"`
	TrackID    string `json:"trackId"`
	RaceType   string `json:"race_type"`
	PinkSlip   bool   `json:"pink_slip"`
	UpdatedAt  string `json:"updatedAt"`
}

// PinkSlipEntry é um registro do mural de pink slips
type PinkSlipEntry struct {
	TransferID     string `json:"transferId"`
	WagerID        string `json:"wagerId"`
	RaceID         string `json:"raceId"`
	WinnerID       string `json:"winnerId"`
	LoserID        string `json:"loserId"`
	VehicleID      string `json:"vehicleId"`
	VehicleValueCR int64  `json:"vehicle_value_cr"`
	TrackID        string `json:"trackId"`
	MarginMS       int64  `json:"margin_ms"`
	Witnesses      int    `json:"witnesses"`
	CreatedAt      string `json:"createdAt"`
}
