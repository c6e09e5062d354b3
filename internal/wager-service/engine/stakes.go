package engine

// Tipos de aposta aceitos num wager
type StakeType string

const (
	StakeCurrency StakeType = "currency"
	StakeVehicle  StakeType = "vehicle"
	StakePart     StakeType = "part"
	StakeCosmetic StakeType = "cosmetic"
	StakeXP       StakeType = "xp"
)

// Stake é o lado apostado de um participante.
// DeclaredValue é o valor de referência usado no pareamento das apostas.
type Stake struct {
	Type          StakeType `json:"type"`
	CurrencyCR    int64     `json:"currency_cr,omitempty"`
	ItemID        string    `json:"item_id,omitempty"`
	XPAmount      int64     `json:"xp_amount,omitempty"`
	DeclaredValue int64     `json:"declared_value"`
	Locked        bool      `json:"locked"`
	Accepted      bool      `json:"accepted"`
	ReservedRef   string    `json:"reserved_ref,omitempty"`
}

// Rules parametriza a validação de apostas.
type Rules struct {
	MinCurrencyCR int64
	MaxCurrencyCR int64
	TolerancePct  int64 // tolerância de pareamento, em % do maior valor
}

// DefaultRules reflete os limites padrão da plataforma.
func DefaultRules() Rules {
	return Rules{MinCurrencyCR: 500, MaxCurrencyCR: 250_000, TolerancePct: 20}
}

// ValidateStake confere a forma da aposta e, para dinheiro, os limites da casa
func (r Rules) ValidateStake(s Stake) error {
	switch s.Type {
	case StakeCurrency:
		if s.CurrencyCR < r.MinCurrencyCR || s.CurrencyCR > r.MaxCurrencyCR {
			return ErrCurrencyOutOfRange
		}
	case StakeVehicle, StakePart, StakeCosmetic:
		if s.ItemID == "" {
			return ErrBadStake
		}
	case StakeXP:
		if s.XPAmount <= 0 {
			return ErrBadStake
		}
	default:
		return ErrBadStake
	}
	if s.EffectiveValue() <= 0 {
		return ErrBadStake
	}
	return nil
}

// EffectiveValue é o valor usado no pareamento: dinheiro e XP valem o montante,
// itens valem o DeclaredValue
func (s Stake) EffectiveValue() int64 {
	switch s.Type {
	case StakeCurrency:
		return s.CurrencyCR
	case StakeXP:
		return s.XPAmount
	default:
		return s.DeclaredValue
	}
}

// StakesMatch verifica o pareamento das duas apostas dentro da tolerância.
// A diferença é medida contra o maior dos dois valores
func (r Rules) StakesMatch(a, b Stake) bool {
	va, vb := a.EffectiveValue(), b.EffectiveValue()
	if va <= 0 || vb <= 0 {
		return false
	}
	max := va
	if vb > max {
		max = vb
	}
	diff := va - vb
	if diff < 0 {
		diff = -diff
	}
	return diff*100 <= r.TolerancePct*max
}
