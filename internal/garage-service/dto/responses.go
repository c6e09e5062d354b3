package dto

import "time"

type GarageResponse struct {
	PlayerID   string `json:"playerId"`
	DriverName string `json:"driverName"`
	RepTier    int    `json:"rep_tier"`
	XP         int64  `json:"xp"`
	WalletID   string `json:"walletId"`
	BalanceCR  int64  `json:"balance_cr"`
	Vehicles   int    `json:"vehicles"`
}

type ReservationResponse struct {
	ReservationID string `json:"reservation_id,omitempty"`
	Status        string `json:"status"`
}

type VehicleResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Make        string    `json:"make"`
	Model       string    `json:"model"`
	Year        int       `json:"year"`
	PI          int       `json:"pi"`
	Condition   float64   `json:"condition"`
	ValueCR     int64     `json:"value_cr"`
	AcquiredVia string    `json:"acquired_via"`
	Staked      bool      `json:"staked"`
	CreatedAt   time.Time `json:"created_at"`
}

type EligibilityDataResponse struct {
	VehicleID      string `json:"vehicleId"`
	VehiclePI      int    `json:"vehicle_pi"`
	VehicleValueCR int64  `json:"vehicle_value_cr"`
	Staked         bool   `json:"staked"`
	TradeLocked    bool   `json:"trade_locked"`
	OwnerID        string `json:"ownerId"`
	OwnerRepTier   int    `json:"owner_rep_tier"`
	OwnedVehicles  int    `json:"owned_vehicles"`
	CooldownActive bool   `json:"cooldown_active"`
}

type TransferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"` // TRANSFERRED
}

type MechanicJobResponse struct {
	ID         string    `json:"id"`
	VehicleID  string    `json:"vehicleId"`
	JobType    string    `json:"job_type"`
	CostCR     int64     `json:"cost_cr"`
	StartedAt  time.Time `json:"started_at"`
	FinishesAt time.Time `json:"finishes_at"`
	Status     string    `json:"status"`
}

type PinkSlipHistoryEntry struct {
	TransferID     string    `json:"transfer_id"`
	WagerID        string    `json:"wagerId"`
	RaceID         string    `json:"raceId"`
	WinnerID       string    `json:"winnerId"`
	LoserID        string    `json:"loserId"`
	VehicleID      string    `json:"vehicleId"`
	VehicleValueCR int64     `json:"vehicle_value_cr"`
	TrackID        string    `json:"trackId"`
	MarginMS       int64     `json:"margin_ms"`
	Witnesses      int       `json:"witnesses"`
	CreatedAt      time.Time `json:"created_at"`
}
