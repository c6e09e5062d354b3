package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// InventoryItem é uma peça ou cosmético avulso, apostável como um veículo
// (mesma semântica de stake_ref), mas sem trade lock ao trocar de dono.
type InventoryItem struct {
	ID        string
	OwnerID   string
	Kind      string // "part" | "cosmetic"
	Name      string
	ValueCR   int64
	StakeRef  string
	CreatedAt time.Time
}

// AddItem insere uma peça/cosmético no inventário do jogador
func (p *Postgres) AddItem(ctx context.Context, it *InventoryItem) (string, error) {
	id := uuid.NewString()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, owner_id, kind, name, value_cr)
		VALUES ($1,$2,$3,$4,$5)`,
		id, it.OwnerID, it.Kind, it.Name, it.ValueCR)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetItem busca um item pelo id
func (p *Postgres) GetItem(ctx context.Context, itemID string) (InventoryItem, error) {
	var it InventoryItem
	err := p.db.QueryRowContext(ctx, `
		SELECT id, owner_id, kind, name, value_cr, COALESCE(stake_ref,''), created_at
		FROM inventory_items WHERE id=$1`, itemID).
		Scan(&it.ID, &it.OwnerID, &it.Kind, &it.Name, &it.ValueCR, &it.StakeRef, &it.CreatedAt)
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	return it, err
}

// ReserveItem marca o item como apostado; mesma regra do veículo
func (p *Postgres) ReserveItem(ctx context.Context, ownerID, itemID, externalRef string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var owner string
	var ref sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT owner_id, stake_ref FROM inventory_items WHERE id=$1 FOR UPDATE`, itemID).Scan(&owner, &ref)
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
			return tx.Commit()
		}
		return ErrVehicleStaked
	}

	if _, err = tx.ExecContext(ctx, `UPDATE inventory_items SET stake_ref=$1 WHERE id=$2`, externalRef, itemID); err != nil {
		return err
	}
	return tx.Commit()
}

// ReleaseItem desfaz a reserva de aposta do item
func (p *Postgres) ReleaseItem(ctx context.Context, itemID, externalRef string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE inventory_items SET stake_ref=NULL WHERE id=$1 AND stake_ref=$2`, itemID, externalRef)
	return err
}

// TransferItem entrega a peça/cosmético apostado ao vencedor do wager
func (p *Postgres) TransferItem(ctx context.Context, itemID, externalRef, newOwnerID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE inventory_items SET owner_id=$1, stake_ref=NULL WHERE id=$2 AND stake_ref=$3`,
		newOwnerID, itemID, externalRef)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveXP bloqueia XP do perfil para um wager; espelha a reserva da carteira
func (p *Postgres) ReserveXP(ctx context.Context, playerID string, amount int64, externalRef string) (string, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var xp int64
	err = tx.QueryRowContext(ctx, `SELECT xp FROM profiles WHERE player_id=$1 FOR UPDATE`, playerID).Scan(&xp)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if xp < amount {
		return "", ErrInsufficientFunds
	}

	var exists string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM xp_reservations WHERE player_id=$1 AND external_ref=$2`, playerID, externalRef).Scan(&exists)
	if err == nil {
		return exists, nil
	} else if err != sql.ErrNoRows {
		return "", err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE profiles SET xp = xp - $1 WHERE player_id=$2`, amount, playerID); err != nil {
		return "", err
	}

	id := uuid.NewString()
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO xp_reservations (id, player_id, external_ref, amount, status)
		VALUES ($1,$2,$3,$4,'PENDING')`, id, playerID, externalRef, amount); err != nil {
		return "", err
	}
	return id, tx.Commit()
}

// SettleXP fecha uma reserva de XP: COMMITTED credita o vencedor, REFUNDED devolve ao dono
func (p *Postgres) SettleXP(ctx context.Context, playerID, externalRef, beneficiaryID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var resID, status string
	var amount int64
	err = tx.QueryRowContext(ctx, `
		SELECT id, amount, status FROM xp_reservations
		WHERE player_id=$1 AND external_ref=$2 FOR UPDATE`, playerID, externalRef).
		Scan(&resID, &amount, &status)
	if err != nil {
		return ErrNotFound
	}
	if status != "PENDING" {
		return nil
	}

	final := "REFUNDED"
	credit := playerID
	if beneficiaryID != "" && beneficiaryID != playerID {
		final = "COMMITTED"
		credit = beneficiaryID
	}

	if _, err = tx.ExecContext(ctx, `UPDATE profiles SET xp = xp + $1 WHERE player_id=$2`, amount, credit); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE xp_reservations SET status=$1 WHERE id=$2`, final, resID); err != nil {
		return err
	}
	return tx.Commit()
}
