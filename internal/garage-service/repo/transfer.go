package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	TradeLockDays   = 7
	CooldownHours   = 24
	tradeLockReason = "pink_slip_win"
	cooldownKind    = "pink_slip"
)

// TransferRequest descreve uma troca de posse decidida por uma corrida pink slip.
type TransferRequest struct {
	WagerID   string
	RaceID    string
	WinnerID  string
	LoserID   string
	VehicleID string
	TrackID   string
	MarginMS  int64
	Witnesses int
}

// ExecuteTransfer executa a sequência de troca de posse em uma única transação:
// registro permanente → veículo sai do perdedor → entra para o vencedor →
// trade lock de 7 dias na cópia do vencedor → cooldown de 24h no perdedor.
// Passado o INSERT do registro não existe caminho de reversão parcial;
// a unicidade por race_id garante no máximo uma transferência por corrida.
func (p *Postgres) ExecuteTransfer(ctx context.Context, req TransferRequest) (transferID string, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var owner string
	var valueCR int64
	err = tx.QueryRowContext(ctx,
		`SELECT owner_id, value_cr FROM vehicles WHERE id=$1 FOR UPDATE`, req.VehicleID).Scan(&owner, &valueCR)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if owner != req.LoserID {
		return "", ErrNotOwner
	}

	transferID = uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO pinkslip_transfers
		  (id, wager_id, race_id, winner_id, loser_id, vehicle_id, vehicle_value_cr, track_id, margin_ms, witnesses)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		transferID, req.WagerID, req.RaceID, req.WinnerID, req.LoserID, req.VehicleID,
		valueCR, req.TrackID, req.MarginMS, req.Witnesses)
	if err != nil {
		if pqe, ok := err.(*pq.Error); ok && pqe.Code == "23505" { // unique_violation em race_id
			return "", ErrAlreadyTransferred
		}
		return "", err
	}

	// Veículo muda de dono e perde a marcação de aposta
	if _, err = tx.ExecContext(ctx, `
		UPDATE vehicles SET owner_id=$1, stake_ref=NULL, acquired_via='pink_slip' WHERE id=$2`,
		req.WinnerID, req.VehicleID); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO trade_locks (id, vehicle_id, player_id, reason, expires_at)
		VALUES ($1,$2,$3,$4,$5)`,
		uuid.NewString(), req.VehicleID, req.WinnerID, tradeLockReason,
		now.Add(TradeLockDays*24*time.Hour)); err != nil {
		return "", err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO cooldowns (id, player_id, kind, expires_at)
		VALUES ($1,$2,$3,$4)`,
		uuid.NewString(), req.LoserID, cooldownKind,
		now.Add(CooldownHours*time.Hour)); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return transferID, nil
}

// ListTransfers devolve o histórico de pink slips do jogador, mais recente primeiro
func (p *Postgres) ListTransfers(ctx context.Context, playerID string, limit int) ([]PinkSlipTransfer, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, wager_id, race_id, winner_id, loser_id, vehicle_id, vehicle_value_cr, track_id, margin_ms, witnesses, created_at
		FROM pinkslip_transfers
		WHERE winner_id=$1 OR loser_id=$1
		ORDER BY created_at DESC
		LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PinkSlipTransfer
	for rows.Next() {
		var t PinkSlipTransfer
		if err := rows.Scan(&t.ID, &t.WagerID, &t.RaceID, &t.WinnerID, &t.LoserID, &t.VehicleID,
			&t.VehicleValueCR, &t.TrackID, &t.MarginMS, &t.Witnesses, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PurgeExpiredLocks remove locks e cooldowns vencidos.
// Chamado no boot do serviço; a checagem de vigência é sempre por expires_at,
// então a limpeza é só manutenção de tabela
func (p *Postgres) PurgeExpiredLocks(ctx context.Context) (int64, error) {
	var total int64
	res, err := p.db.ExecContext(ctx, `DELETE FROM trade_locks WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	total += n

	res, err = p.db.ExecContext(ctx, `DELETE FROM cooldowns WHERE expires_at <= NOW()`)
	if err != nil {
		return total, err
	}
	n, _ = res.RowsAffected()
	total += n
	return total, nil
}
