package engine

import (
	"errors"
	"time"
)

// Estados do ciclo de vida de um wager
type State string

const (
	StateProposed  State = "PROPOSED"
	StateAccepted  State = "ACCEPTED"
	StateActive    State = "ACTIVE"
	StateCompleted State = "COMPLETED"
	StateDeclined  State = "DECLINED"
	StateCancelled State = "CANCELLED"
	StateDisputed  State = "DISPUTED"
	StateExpired   State = "EXPIRED"
)

var (
	ErrInvalidTransition  = errors.New("invalid wager transition")
	ErrSelfWager          = errors.New("proposer and target are the same player")
	ErrStakeMismatch      = errors.New("stake values outside matching tolerance")
	ErrCurrencyOutOfRange = errors.New("currency stake outside allowed range")
	ErrBadStake           = errors.New("malformed stake")
	ErrNotPinkSlipStake   = errors.New("pink slip wagers need vehicle stakes on both sides")
)

// Participant é um dos dois lados de um wager, com sua aposta.
type Participant struct {
	PlayerID string `json:"playerId"`
	Stake    Stake  `json:"stake"`
}

// Conditions fixa os termos da corrida que decide o wager.
type Conditions struct {
	TrackID  string `json:"trackId"`
	RaceType string `json:"race_type"` // "sprint" | "touge" | "highway_battle"
	Laps     int    `json:"laps"`
	Rules    string `json:"rules,omitempty"`
}

// Wager é a aposta entre dois jogadores. Nunca é apagado em sessão;
// estados terminais apenas o tiram do caminho das corridas.
type Wager struct {
	ID         string      `json:"id"`
	State      State       `json:"state"`
	Proposer   Participant `json:"proposer"`
	Target     Participant `json:"target"`
	Conditions Conditions  `json:"conditions"`
	PinkSlip   bool        `json:"pink_slip"`
	RaceID     string      `json:"raceId,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

// NewProposal monta um wager em PROPOSED aplicando as guardas de criação:
// jogadores distintos, apostas bem formadas e pareadas dentro da tolerância,
// e pink slips sempre veículo contra veículo
func NewProposal(id string, proposer, target Participant, cond Conditions, pinkSlip bool, rules Rules, now time.Time, ttl time.Duration) (*Wager, error) {
	if proposer.PlayerID == "" || target.PlayerID == "" || proposer.PlayerID == target.PlayerID {
		return nil, ErrSelfWager
	}
	if err := rules.ValidateStake(proposer.Stake); err != nil {
		return nil, err
	}
	if err := rules.ValidateStake(target.Stake); err != nil {
		return nil, err
	}
	if pinkSlip && (proposer.Stake.Type != StakeVehicle || target.Stake.Type != StakeVehicle) {
		return nil, ErrNotPinkSlipStake
	}
	if !rules.StakesMatch(proposer.Stake, target.Stake) {
		return nil, ErrStakeMismatch
	}

	// A aposta do proponente trava já na proposta; a do alvo só no aceite
	proposer.Stake.Locked = true
	proposer.Stake.Accepted = true

	return &Wager{
		ID:         id,
		State:      StateProposed,
		Proposer:   proposer,
		Target:     target,
		Conditions: cond,
		PinkSlip:   pinkSlip,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

// transições permitidas; qualquer outra é ErrInvalidTransition
var transitions = map[State][]State{
	StateProposed: {StateAccepted, StateDeclined, StateCancelled, StateExpired},
	StateAccepted: {StateActive},
	StateActive:   {StateCompleted, StateDisputed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition aplica a mudança de estado com guarda e atualiza o relógio do wager
func (w *Wager) transition(to State, now time.Time) error {
	if !canTransition(w.State, to) {
		return ErrInvalidTransition
	}
	w.State = to
	w.UpdatedAt = now
	return nil
}

// Accept aceita a proposta e marca as duas apostas como travadas
func (w *Wager) Accept(now time.Time) error {
	if err := w.transition(StateAccepted, now); err != nil {
		return err
	}
	w.Proposer.Stake.Locked = true
	w.Proposer.Stake.Accepted = true
	w.Target.Stake.Locked = true
	w.Target.Stake.Accepted = true
	return nil
}

// Decline recusa a proposta; a aposta do proponente é liberada
func (w *Wager) Decline(now time.Time) error {
	if err := w.transition(StateDeclined, now); err != nil {
		return err
	}
	w.Proposer.Stake.Locked = false
	return nil
}

// Cancel retira a proposta antes do aceite
func (w *Wager) Cancel(now time.Time) error {
	if err := w.transition(StateCancelled, now); err != nil {
		return err
	}
	w.Proposer.Stake.Locked = false
	return nil
}

// Expire marca a proposta como vencida. A expiração é monotônica:
// uma vez expirado, o wager não volta
func (w *Wager) Expire(now time.Time) error {
	if err := w.transition(StateExpired, now); err != nil {
		return err
	}
	w.Proposer.Stake.Locked = false
	return nil
}

// Activate liga o wager à corrida que vai decidi-lo
func (w *Wager) Activate(raceID string, now time.Time) error {
	if err := w.transition(StateActive, now); err != nil {
		return err
	}
	w.RaceID = raceID
	return nil
}

// Complete fecha o wager depois da liquidação; as apostas deixam de estar travadas
func (w *Wager) Complete(now time.Time) error {
	if err := w.transition(StateCompleted, now); err != nil {
		return err
	}
	w.Proposer.Stake.Locked = false
	w.Target.Stake.Locked = false
	return nil
}

// Dispute marca resultado contestado. As apostas seguem travadas:
// não há caminho automático de resolução
func (w *Wager) Dispute(now time.Time) error {
	return w.transition(StateDisputed, now)
}

// Terminal informa se o wager chegou a um estado final
func (w *Wager) Terminal() bool {
	switch w.State {
	case StateCompleted, StateDeclined, StateCancelled, StateDisputed, StateExpired:
		return true
	}
	return false
}
