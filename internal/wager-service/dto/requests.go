package dto

import "github.com/midnightgrind/race-wager-platform/internal/wager-service/engine"

type ProposeWagerRequest struct {
	ProposerID    string            `json:"proposerId"`
	TargetID      string            `json:"targetId"`
	ProposerStake engine.Stake      `json:"proposer_stake"`
	TargetStake   engine.Stake      `json:"target_stake"`
	Conditions    engine.Conditions `json:"conditions"`
}

// ActionRequest cobre accept/decline/cancel; PlayerID é quem está agindo
type ActionRequest struct {
	PlayerID string `json:"playerId"`
}

type CreateChallengeRequest struct {
	ChallengerID        string `json:"challengerId"`
	ChallengerVehicleID string `json:"challengerVehicleId"`
	DefenderID          string `json:"defenderId"`
	DefenderVehicleID   string `json:"defenderVehicleId"`
	TrackID             string `json:"trackId"`
	RaceType            string `json:"race_type"` // disciplina base da corrida pink slip
}

type ConfirmChallengeRequest struct {
	PlayerID string `json:"playerId"`
	Accept   bool   `json:"accept"`
}
