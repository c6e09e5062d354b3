package dto

type DepositRequest struct {
	PlayerID    string `json:"playerId"`
	AmountCR    int64  `json:"amount_cr"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional p/ idempotência simples
}

// Stake descreve o lado apostado: dinheiro, veículo, peça, cosmético ou XP
type Stake struct {
	Type       string `json:"type"` // "currency" | "vehicle" | "part" | "cosmetic" | "xp"
	CurrencyCR int64  `json:"currency_cr,omitempty"`
	ItemID     string `json:"item_id,omitempty"` // veículo ou item de inventário
	XPAmount   int64  `json:"xp_amount,omitempty"`
}

type ReserveStakeRequest struct {
	PlayerID    string `json:"playerId"`
	Stake       Stake  `json:"stake"`
	ExternalRef string `json:"external_ref"` // ex: wagerId
}

// SettleStakeRequest fecha uma reserva; BeneficiaryID presente = stake vai para o vencedor
type SettleStakeRequest struct {
	PlayerID      string `json:"playerId"`
	Stake         Stake  `json:"stake"`
	ExternalRef   string `json:"external_ref"`
	BeneficiaryID string `json:"beneficiary_id,omitempty"`
}

type AddVehicleRequest struct {
	OwnerID   string  `json:"ownerId"`
	Make      string  `json:"make"`
	Model     string  `json:"model"`
	Year      int     `json:"year"`
	PI        int     `json:"pi"`
	Condition float64 `json:"condition"`
	ValueCR   int64   `json:"value_cr"`
}

type TransferRequest struct {
	WagerID   string `json:"wagerId"`
	RaceID    string `json:"raceId"`
	WinnerID  string `json:"winnerId"`
	LoserID   string `json:"loserId"`
	VehicleID string `json:"vehicleId"`
	TrackID   string `json:"trackId"`
	MarginMS  int64  `json:"margin_ms"`
	Witnesses int    `json:"witnesses"`
}

type StartMechanicJobRequest struct {
	PlayerID  string `json:"playerId"`
	VehicleID string `json:"vehicleId"`
	JobType   string `json:"job_type"` // "repair" | "tune" | "rebuild"
}
