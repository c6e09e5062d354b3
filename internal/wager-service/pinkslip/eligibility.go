package pinkslip

// Reason é o resultado da checagem de elegibilidade de um pink slip.
type Reason string

const (
	Eligible          Reason = "ELIGIBLE"
	ReasonOnlyVehicle Reason = "ONLY_VEHICLE"
	ReasonTradeLocked Reason = "TRADE_LOCKED"
	ReasonStaked      Reason = "ALREADY_STAKED"
	ReasonRepTooLow   Reason = "REP_TIER_TOO_LOW"
	ReasonCooldown    Reason = "COOLDOWN_ACTIVE"
	ReasonPIDelta     Reason = "PI_DELTA_TOO_HIGH"
)

const (
	// MinRepTier é o tier de REP mínimo para apostar o documento do carro
	MinRepTier = 3
	// MaxPIDelta limita a diferença de Performance Index entre os dois veículos
	MaxPIDelta = 50
)

// Snapshot é o retrato do lado de um jogador no momento da checagem,
// montado pelo garage-service.
type Snapshot struct {
	VehicleID      string
	VehiclePI      int
	VehicleValueCR int64
	Staked         bool
	TradeLocked    bool
	OwnerRepTier   int
	OwnedVehicles  int
	CooldownActive bool
}

// CheckVehicleEligibility roda as checagens em ordem de prioridade e devolve
// o primeiro motivo de recusa. A ordem é fixa: veículo único, trade lock,
// aposta em aberto, tier de REP, cooldown e por fim a diferença de PI
func CheckVehicleEligibility(own Snapshot, opponentPI int) Reason {
	if own.OwnedVehicles <= 1 {
		return ReasonOnlyVehicle
	}
	if own.TradeLocked {
		return ReasonTradeLocked
	}
	if own.Staked {
		return ReasonStaked
	}
	if own.OwnerRepTier < MinRepTier {
		return ReasonRepTooLow
	}
	if own.CooldownActive {
		return ReasonCooldown
	}
	delta := own.VehiclePI - opponentPI
	if delta < 0 {
		delta = -delta
	}
	if delta > MaxPIDelta {
		return ReasonPIDelta
	}
	return Eligible
}
