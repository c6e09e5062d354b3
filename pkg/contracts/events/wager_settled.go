package events

import "time"

// Evento emitido pelo race-settlement-worker após liquidar um wager.
type WagerSettled struct {
	WagerID    string    `json:"wagerId"`
	RaceID     string    `json:"raceId"`
	ProposerID string    `json:"proposerId"`
	TargetID   string    `json:"targetId"`
	WinnerID   string    `json:"winnerId,omitempty"`
	LoserID    string    `json:"loserId,omitempty"`
	Status     string    `json:"status"` // "COMPLETED" | "DISPUTED"
	Reason     string    `json:"reason,omitempty"`
	MarginMS   int64     `json:"marginMs"`
	ValueCR    int64     `json:"value_cr"` // valor efetivo do lado do proponente
	PinkSlip   bool      `json:"pink_slip"`
	Ts         time.Time `json:"ts"`
}
