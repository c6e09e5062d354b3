package dto

// VerifyRequest pede ao simulador a conferência de um resultado
type VerifyRequest struct {
	RaceID   string `json:"race_id"`
	WinnerID string `json:"winnerId"`
	MarginMS int64  `json:"margin_ms"`
}

// VerifyResponse é o veredito do simulador sobre a corrida
type VerifyResponse struct {
	RaceID    string `json:"race_id"`
	Status    string `json:"status"` // "confirmed" | "rejected"
	WinnerID  string `json:"winnerId"`
	Reason    string `json:"reason,omitempty"`
	Witnesses int    `json:"witnesses"`
}
