package pinkslip

import "testing"

func eligibleSnapshot() Snapshot {
	return Snapshot{
		VehicleID:      "v1",
		VehiclePI:      700,
		VehicleValueCR: 40_000,
		OwnerRepTier:   4,
		OwnedVehicles:  3,
	}
}

func TestCheckVehicleEligibility(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Snapshot)
		opponentPI int
		want       Reason
	}{
		{"fully eligible", func(s *Snapshot) {}, 700, Eligible},
		{"only vehicle", func(s *Snapshot) { s.OwnedVehicles = 1 }, 700, ReasonOnlyVehicle},
		{"trade locked", func(s *Snapshot) { s.TradeLocked = true }, 700, ReasonTradeLocked},
		{"already staked", func(s *Snapshot) { s.Staked = true }, 700, ReasonStaked},
		{"rep tier too low", func(s *Snapshot) { s.OwnerRepTier = 2 }, 700, ReasonRepTooLow},
		{"cooldown active", func(s *Snapshot) { s.CooldownActive = true }, 700, ReasonCooldown},
		{"pi delta too high", func(s *Snapshot) {}, 760, ReasonPIDelta},
		{"pi delta at limit", func(s *Snapshot) {}, 750, Eligible},
		{"pi delta below", func(s *Snapshot) {}, 650, Eligible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := eligibleSnapshot()
			tt.mutate(&snap)
			if got := CheckVehicleEligibility(snap, tt.opponentPI); got != tt.want {
				t.Errorf("CheckVehicleEligibility() = %s, want %s", got, tt.want)
			}
		})
	}
}

// A ordem dos motivos é fixa: quando várias checagens falham,
// responde sempre a de maior prioridade
func TestEligibilityPriorityOrder(t *testing.T) {
	snap := eligibleSnapshot()
	snap.OwnedVehicles = 1
	snap.TradeLocked = true
	snap.Staked = true
	snap.OwnerRepTier = 0
	snap.CooldownActive = true

	if got := CheckVehicleEligibility(snap, 0); got != ReasonOnlyVehicle {
		t.Fatalf("first failure = %s, want %s", got, ReasonOnlyVehicle)
	}

	snap.OwnedVehicles = 2
	if got := CheckVehicleEligibility(snap, 0); got != ReasonTradeLocked {
		t.Fatalf("second failure = %s, want %s", got, ReasonTradeLocked)
	}

	snap.TradeLocked = false
	if got := CheckVehicleEligibility(snap, 0); got != ReasonStaked {
		t.Fatalf("third failure = %s, want %s", got, ReasonStaked)
	}

	snap.Staked = false
	if got := CheckVehicleEligibility(snap, 0); got != ReasonRepTooLow {
		t.Fatalf("fourth failure = %s, want %s", got, ReasonRepTooLow)
	}

	snap.OwnerRepTier = MinRepTier
	if got := CheckVehicleEligibility(snap, 0); got != ReasonCooldown {
		t.Fatalf("fifth failure = %s, want %s", got, ReasonCooldown)
	}

	snap.CooldownActive = false
	if got := CheckVehicleEligibility(snap, 0); got != ReasonPIDelta {
		t.Fatalf("last failure = %s, want %s", got, ReasonPIDelta)
	}
}
