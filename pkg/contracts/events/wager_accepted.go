package events

// Aposta dentro de um wager (dinheiro, veículo, peça, cosmético ou XP)
type StakePayload struct {
	Type          string `json:"type"` // "currency" | "vehicle" | "part" | "cosmetic" | "xp"
	CurrencyCR    int64  `json:"currency_cr,omitempty"`
	ItemID        string `json:"item_id,omitempty"`
	DeclaredValue int64  `json:"declared_value"`
	ReservedRef   string `json:"reserved_ref"` // external_ref usado na reserva no garage-service
}

// Evento publicado quando um wager é aceito e a corrida é agendada
type WagerAccepted struct {
	WagerID       string       `json:"wager_id"`
	RaceID        string       `json:"race_id"`
	ProposerID    string       `json:"proposer_id"`
	TargetID      string       `json:"target_id"`
	ProposerStake StakePayload `json:"proposer_stake"`
	TargetStake   StakePayload `json:"target_stake"`
	TrackID       string       `json:"track_id"`
	RaceType      string       `json:"race_type"`
	Laps          int          `json:"laps"`
	PinkSlip      bool         `json:"pink_slip"`
	TsUnixMs      int64        `json:"ts_unix_ms"`
}
