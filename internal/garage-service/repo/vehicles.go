package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// AddVehicle insere um veículo novo na garagem do jogador
func (p *Postgres) AddVehicle(ctx context.Context, v *Vehicle) (string, error) {
	id := uuid.NewString()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO vehicles (id, owner_id, make, model, year, pi, condition, value_cr, acquired_via)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		id, v.OwnerID, v.Make, v.Model, v.Year, v.PI, v.Condition, v.ValueCR, v.AcquiredVia,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListVehicles retorna a coleção do jogador
func (p *Postgres) ListVehicles(ctx context.Context, ownerID string) ([]Vehicle, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, owner_id, make, model, year, pi, condition, value_cr, acquired_via, COALESCE(stake_ref,''), created_at
		FROM vehicles WHERE owner_id=$1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Make, &v.Model, &v.Year, &v.PI, &v.Condition,
			&v.ValueCR, &v.AcquiredVia, &v.StakeRef, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVehicle busca um veículo pelo id
func (p *Postgres) GetVehicle(ctx context.Context, vehicleID string) (Vehicle, error) {
	var v Vehicle
	err := p.db.QueryRowContext(ctx, `
		SELECT id, owner_id, make, model, year, pi, condition, value_cr, acquired_via, COALESCE(stake_ref,''), created_at
		FROM vehicles WHERE id=$1`, vehicleID).
		Scan(&v.ID, &v.OwnerID, &v.Make, &v.Model, &v.Year, &v.PI, &v.Condition,
			&v.ValueCR, &v.AcquiredVia, &v.StakeRef, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	return v, err
}

// ReserveVehicle marca o veículo como apostado em um wager (stake_ref)
// Um veículo só pode estar reservado para uma ref por vez; repetir a mesma ref é idempotente
func (p *Postgres) ReserveVehicle(ctx context.Context, ownerID, vehicleID, externalRef string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var owner string
	var ref sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT owner_id, stake_ref FROM vehicles WHERE id=$1 FOR UPDATE`, vehicleID).Scan(&owner, &ref)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != ownerID {
		return ErrNotOwner
	}
	if ref.Valid && ref.String != "" {
		if ref.String == externalRef {
			return tx.Commit() // mesma reserva, nada a fazer
		}
		return ErrVehicleStaked
	}

	if _, err = tx.ExecContext(ctx, `UPDATE vehicles SET stake_ref=$1 WHERE id=$2`, externalRef, vehicleID); err != nil {
		return err
	}
	return tx.Commit()
}

// ReleaseVehicle remove a reserva de aposta do veículo (decline/cancel/expire)
// Idempotente: ref desconhecida não é erro
func (p *Postgres) ReleaseVehicle(ctx context.Context, vehicleID, externalRef string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE vehicles SET stake_ref=NULL WHERE id=$1 AND stake_ref=$2`, vehicleID, externalRef)
	return err
}

// EligibilityData monta o retrato usado na checagem de pink slip:
// veículo único, trade lock, tier de REP, cooldown e PI
func (p *Postgres) EligibilityData(ctx context.Context, playerID, vehicleID string) (EligibilitySnapshot, error) {
	var snap EligibilitySnapshot

	v, err := p.GetVehicle(ctx, vehicleID)
	if err != nil {
		return snap, err
	}
	prof, err := p.GetOrCreateProfile(ctx, playerID)
	if err != nil {
		return snap, err
	}

	snap.VehicleID = v.ID
	snap.VehiclePI = v.PI
	snap.VehicleValueCR = v.ValueCR
	snap.StakeRef = v.StakeRef
	snap.OwnerID = v.OwnerID
	snap.OwnerRepTier = prof.RepTier

	if err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vehicles WHERE owner_id=$1`, playerID).Scan(&snap.OwnedVehicles); err != nil {
		return snap, err
	}

	if err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM trade_locks WHERE vehicle_id=$1 AND expires_at > NOW())`,
		vehicleID).Scan(&snap.TradeLocked); err != nil {
		return snap, err
	}

	if err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM cooldowns WHERE player_id=$1 AND kind='pink_slip' AND expires_at > NOW())`,
		playerID).Scan(&snap.CooldownActive); err != nil {
		return snap, err
	}

	return snap, nil
}
