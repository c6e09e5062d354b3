package dto

import (
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/engine"
	"github.com/midnightgrind/race-wager-platform/internal/wager-service/pinkslip"
)

type WagerResponse struct {
	Wager   *engine.Wager `json:"wager"`
	Message string        `json:"message,omitempty"`
}

type EligibilityResponse struct {
	Reason   string `json:"reason"` // "ELIGIBLE" ou o primeiro motivo de recusa
	Eligible bool   `json:"eligible"`
}

type ChallengeResponse struct {
	ChallengeID string                `json:"challengeId"`
	Status      string                `json:"status"`
	Display     *pinkslip.DisplayData `json:"display,omitempty"`
	WagerID     string                `json:"wagerId,omitempty"`
	RaceID      string                `json:"raceId,omitempty"`
}
