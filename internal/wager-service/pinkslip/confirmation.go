package pinkslip

import (
	"errors"
	"time"
)

// RequiredConfirmations é o número fixo de passos de confirmação por jogador.
// Três "sim" conscientes antes de apostar o documento do carro.
const RequiredConfirmations = 3

var (
	ErrSessionClosed = errors.New("challenge is no longer open")
	ErrUnknownPlayer = errors.New("player is not part of this challenge")
	ErrAlreadyDone   = errors.New("player already confirmed all steps")
)

// Side é o estado de confirmação de um dos jogadores.
type Side struct {
	PlayerID  string `json:"playerId"`
	VehicleID string `json:"vehicleId"`
	VehiclePI int    `json:"vehicle_pi"`
	ValueCR   int64  `json:"value_cr"`
	Confirms  int    `json:"confirms"` // 0..RequiredConfirmations
}

// Session é um desafio de pink slip aguardando a tripla confirmação dos dois lados.
type Session struct {
	ChallengeID string    `json:"challengeId"`
	TrackID     string    `json:"trackId"`
	RaceType    string    `json:"race_type"`
	Challenger  Side      `json:"challenger"`
	Defender    Side      `json:"defender"`
	Status      string    `json:"status"` // "OPEN" | "READY" | "CANCELLED"
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayData é o quadro reexibido a cada passo, para o jogador saber
// exatamente o que está prestes a perder.
type DisplayData struct {
	ChallengeID    string `json:"challengeId"`
	Step           int    `json:"step"` // próximo passo a confirmar (1..3)
	TotalSteps     int    `json:"total_steps"`
	YourVehicleID  string `json:"your_vehicleId"`
	YourValueCR    int64  `json:"your_value_cr"`
	TheirPlayerID  string `json:"their_playerId"`
	TheirVehicleID string `json:"their_vehicleId"`
	TheirValueCR   int64  `json:"their_value_cr"`
	TrackID        string `json:"trackId"`
	RaceType       string `json:"race_type"`
	Warning        string `json:"warning"`
}

// NewSession abre um desafio com os dois lados zerados
func NewSession(challengeID, trackID, raceType string, challenger, defender Side, now time.Time) *Session {
	challenger.Confirms = 0
	defender.Confirms = 0
	return &Session{
		ChallengeID: challengeID,
		TrackID:     trackID,
		RaceType:    raceType,
		Challenger:  challenger,
		Defender:    defender,
		Status:      "OPEN",
		CreatedAt:   now,
	}
}

func (s *Session) side(playerID string) *Side {
	switch playerID {
	case s.Challenger.PlayerID:
		return &s.Challenger
	case s.Defender.PlayerID:
		return &s.Defender
	}
	return nil
}

// Display remonta o quadro do próximo passo para o jogador
func (s *Session) Display(playerID string) (DisplayData, error) {
	side := s.side(playerID)
	if side == nil {
		return DisplayData{}, ErrUnknownPlayer
	}
	other := &s.Defender
	if side == &s.Defender {
		other = &s.Challenger
	}
	step := side.Confirms + 1
	if step > RequiredConfirmations {
		step = RequiredConfirmations
	}
	return DisplayData{
		ChallengeID:    s.ChallengeID,
		Step:           step,
		TotalSteps:     RequiredConfirmations,
		YourVehicleID:  side.VehicleID,
		YourValueCR:    side.ValueCR,
		TheirPlayerID:  other.PlayerID,
		TheirVehicleID: other.VehicleID,
		TheirValueCR:   other.ValueCR,
		TrackID:        s.TrackID,
		RaceType:       s.RaceType,
		Warning:        "losing this race transfers ownership of your vehicle permanently",
	}, nil
}

// Submit registra a resposta de um passo. accept=false cancela o desafio
// e zera os contadores dos dois lados; accept=true avança um passo,
// nunca além de RequiredConfirmations
func (s *Session) Submit(playerID string, accept bool) error {
	if s.Status != "OPEN" {
		return ErrSessionClosed
	}
	side := s.side(playerID)
	if side == nil {
		return ErrUnknownPlayer
	}

	if !accept {
		s.Status = "CANCELLED"
		s.Challenger.Confirms = 0
		s.Defender.Confirms = 0
		return nil
	}

	if side.Confirms >= RequiredConfirmations {
		return ErrAlreadyDone
	}
	side.Confirms++

	if s.Challenger.Confirms == RequiredConfirmations && s.Defender.Confirms == RequiredConfirmations {
		s.Status = "READY"
	}
	return nil
}

// Ready indica que os dois lados completaram os três passos
func (s *Session) Ready() bool { return s.Status == "READY" }
