package repo

import "time"

// Wallet é a carteira de créditos (CR) persistida no Postgres.
type Wallet struct {
	ID       string
	PlayerID string
	Balance  int64 // saldo em créditos
	Version  int64
}

// Vehicle é um veículo na garagem de um jogador.
// StakeRef marca a reserva do veículo para um wager aberto (no máximo um por vez).
type Vehicle struct {
	ID          string
	OwnerID     string
	Make        string
	Model       string
	Year        int
	PI          int     // Performance Index
	Condition   float64 // 0.0 a 1.0
	ValueCR     int64
	AcquiredVia string // "purchase" | "pink_slip" | "reward"
	StakeRef    string // vazio quando o veículo não está apostado
	CreatedAt   time.Time
}

// Profile guarda identidade e reputação do jogador.
type Profile struct {
	PlayerID   string
	DriverName string
	RepTier    int   // 0..5
	XP         int64 // saldo de XP apostável
	CreatedAt  time.Time
}

// TradeLock impede a negociação de um veículo até ExpiresAt.
type TradeLock struct {
	ID        string
	VehicleID string
	PlayerID  string
	Reason    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsActive calcula se o lock ainda vale no instante informado.
func (t TradeLock) IsActive(now time.Time) bool { return now.Before(t.ExpiresAt) }

// Cooldown impede o jogador de repetir uma ação até ExpiresAt.
type Cooldown struct {
	ID        string
	PlayerID  string
	Kind      string // "pink_slip"
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (c Cooldown) IsActive(now time.Time) bool { return now.Before(c.ExpiresAt) }

// MechanicJob é um serviço de oficina com duração e efeito sobre o veículo.
type MechanicJob struct {
	ID             string
	VehicleID      string
	PlayerID       string
	JobType        string // "repair" | "tune" | "rebuild"
	CostCR         int64
	PIDelta        int
	ConditionDelta float64
	StartedAt      time.Time
	FinishesAt     time.Time
	Status         string // "IN_PROGRESS" | "DONE"
}

// PinkSlipTransfer é o registro permanente de uma troca de posse.
// Criado uma única vez por corrida; nunca alterado depois.
type PinkSlipTransfer struct {
	ID             string
	WagerID        string
	RaceID         string
	WinnerID       string
	LoserID        string
	VehicleID      string
	VehicleValueCR int64
	TrackID        string
	MarginMS       int64
	Witnesses      int
	CreatedAt      time.Time
}

// EligibilitySnapshot reúne o que o wager-service precisa para avaliar um pink slip.
type EligibilitySnapshot struct {
	VehicleID      string
	VehiclePI      int
	VehicleValueCR int64
	StakeRef       string
	TradeLocked    bool
	OwnerID        string
	OwnerRepTier   int
	OwnedVehicles  int
	CooldownActive bool
}
