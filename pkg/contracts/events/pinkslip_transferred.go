package events

import "time"

// Evento emitido quando a posse de um veículo troca de mãos numa corrida valendo o documento.
// Registro permanente: nunca é alterado depois de criado.
type PinkSlipTransferred struct {
	TransferID    string    `json:"transferId"`
	WagerID       string    `json:"wagerId"`
	RaceID        string    `json:"raceId"`
	WinnerID      string    `json:"winnerId"`
	LoserID       string    `json:"loserId"`
	VehicleID     string    `json:"vehicleId"`
	VehicleValue  int64     `json:"vehicleValue"`
	TrackID       string    `json:"trackId"`
	MarginMS      int64     `json:"marginMs"`
	Witnesses     int       `json:"witnesses"`
	TradeLockDays int       `json:"tradeLockDays"`
	Ts            time.Time `json:"ts"`
}
