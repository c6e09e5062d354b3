package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Postgres implementa as operações de garagem e carteira em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNotFound           = errors.New("not found")
	ErrVehicleStaked      = errors.New("vehicle already staked")
	ErrNotOwner           = errors.New("vehicle not owned by player")
	ErrAlreadyTransferred = errors.New("vehicle already transferred for this race")
	ErrJobInProgress      = errors.New("vehicle already has a mechanic job in progress")
)

// GetOrCreateWallet retorna o walletId e saldo de um jogador, criando a carteira se não existir
// Usa transação para garantir atomicidade
func (p *Postgres) GetOrCreateWallet(ctx context.Context, playerID string) (walletID string, balance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	var id string
	var bal int64
	err = tx.QueryRowContext(ctx, `SELECT id, balance_cr FROM wallets WHERE player_id=$1`, playerID).Scan(&id, &bal)
	if err == sql.ErrNoRows {
		id = uuid.New().String()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallets(id, player_id, balance_cr, version) VALUES($1,$2,0,1)`,
			id, playerID); err != nil {
			return "", 0, err
		}
		bal = 0
	} else if err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, err
	}

	return id, bal, nil
}

// Deposit incrementa o saldo da carteira e registra a operação no ledger
// Garante lock pessimista na linha da carteira
func (p *Postgres) Deposit(ctx context.Context, playerID string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	var id string
	if err = tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE player_id=$1 FOR UPDATE`, playerID).Scan(&id); err != nil {
		return "", 0, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance_cr = balance_cr + $1, version = version + 1 WHERE id=$2`, amount, id); err != nil {
		return "", 0, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cr, description) VALUES($1,'CREDIT',$2,$3)`,
		id, amount, "deposit:"+externalRef); err != nil {
		return "", 0, err
	}

	if err = tx.QueryRowContext(ctx, `SELECT balance_cr FROM wallets WHERE id=$1`, id).Scan(&newBalance); err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return id, newBalance, nil
}

// ReserveCurrency cria uma reserva PENDING e debita o saldo (bloqueio da aposta)
// Garante idempotência por (wallet_id, external_ref): a mesma ref nunca bloqueia duas vezes,
// o que sustenta a regra de uma aposta ativa por stake
func (p *Postgres) ReserveCurrency(ctx context.Context, playerID string, amount int64, externalRef string) (reservationID string, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var walletID string
	if err = tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE player_id=$1 FOR UPDATE`, playerID).Scan(&walletID); err != nil {
		return "", err
	}

	var balance int64
	if err = tx.QueryRowContext(ctx, `SELECT balance_cr FROM wallets WHERE id=$1`, walletID).Scan(&balance); err != nil {
		return "", err
	}

	if balance < amount {
		return "", ErrInsufficientFunds
	}

	// Idempotência: verifica se já existe reserva para o mesmo external_ref
	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM wallet_reservations WHERE wallet_id=$1 AND external_ref=$2`, walletID, externalRef).Scan(&exists)

	if err == nil {
		return exists, nil // já existe
	} else if err != sql.ErrNoRows {
		return "", err
	}

	// Debita saldo (bloqueio)
	if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance_cr = balance_cr - $1, version = version + 1 WHERE id=$2`, amount, walletID); err != nil {
		return "", err
	}

	reservationID = uuid.New().String()
	if _, err = tx.ExecContext(ctx, `INSERT INTO wallet_reservations(id, wallet_id, external_ref, amount_cr, status) VALUES($1,$2,$3,$4,'PENDING')`,
		reservationID, walletID, externalRef, amount); err != nil {
		return "", err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cr, description)
		VALUES($1,'RESERVE',$2,$3)`,
		walletID, amount, "reserve:"+externalRef); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}

	return reservationID, nil
}

// CommitCurrency efetiva uma reserva, marcando como COMMITTED e registrando débito no ledger
// Idempotente: se já estiver committed, não faz nada
func (p *Postgres) CommitCurrency(ctx context.Context, playerID, externalRef string) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var walletID, resID string
	var status string
	var amount int64

	if err = tx.QueryRowContext(ctx, `
		SELECT wr.id, wr.wallet_id, wr.amount_cr, wr.status
		FROM wallet_reservations wr
		JOIN wallets w ON w.id = wr.wallet_id
		WHERE w.player_id=$1 AND wr.external_ref=$2
		FOR UPDATE`, playerID, externalRef).Scan(&resID, &walletID, &amount, &status); err != nil {
		return 0, ErrNotFound
	}

	if status != "PENDING" {
		return amount, nil
	} // idempotente

	if _, err = tx.ExecContext(ctx, `UPDATE wallet_reservations SET status='COMMITTED' WHERE id=$1`, resID); err != nil {
		return 0, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cr, description)
		VALUES($1,'DEBIT',$2,$3)`, walletID, amount, "commit:"+externalRef); err != nil {
		return 0, err
	}

	return amount, tx.Commit()
}

// RefundCurrency desfaz uma reserva PENDING, devolvendo saldo e registrando no ledger
// Idempotente: se já estiver REFUNDED, não faz nada
func (p *Postgres) RefundCurrency(ctx context.Context, playerID, externalRef string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var walletID, resID string
	var status string
	var amount int64

	if err = tx.QueryRowContext(ctx, `
		SELECT wr.id, wr.wallet_id, wr.amount_cr, wr.status
		FROM wallet_reservations wr
		JOIN wallets w ON w.id = wr.wallet_id
		WHERE w.player_id=$1 AND wr.external_ref=$2
		FOR UPDATE`, playerID, externalRef).Scan(&resID, &walletID, &amount, &status); err != nil {
		return ErrNotFound
	}

	if status != "PENDING" {
		return nil
	} // já tratado

	// Devolve saldo
	if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance_cr = balance_cr + $1, version = version + 1 WHERE id=$2`, amount, walletID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE wallet_reservations SET status='REFUNDED' WHERE id=$1`, resID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cr, description)
		VALUES($1,'REFUND',$2,$3)`, walletID, amount, "refund:"+externalRef); err != nil {
		return err
	}

	return tx.Commit()
}

// GetOrCreateProfile retorna o perfil do jogador, criando com REP 0 se não existir
func (p *Postgres) GetOrCreateProfile(ctx context.Context, playerID string) (Profile, error) {
	var prof Profile
	err := p.db.QueryRowContext(ctx,
		`SELECT player_id, driver_name, rep_tier, xp, created_at FROM profiles WHERE player_id=$1`, playerID).
		Scan(&prof.PlayerID, &prof.DriverName, &prof.RepTier, &prof.XP, &prof.CreatedAt)
	if err == sql.ErrNoRows {
		prof = Profile{PlayerID: playerID, DriverName: playerID, RepTier: 0}
		_, err = p.db.ExecContext(ctx,
			`INSERT INTO profiles(player_id, driver_name, rep_tier, xp) VALUES($1,$2,0,0) ON CONFLICT (player_id) DO NOTHING`,
			playerID, playerID)
		return prof, err
	}
	return prof, err
}
