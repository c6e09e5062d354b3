package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Catálogo de serviços de oficina: custo, duração e efeito
var jobCatalog = map[string]MechanicJob{
	"repair":  {JobType: "repair", CostCR: 800, PIDelta: 0, ConditionDelta: 0.25},
	"tune":    {JobType: "tune", CostCR: 2500, PIDelta: 15, ConditionDelta: -0.05},
	"rebuild": {JobType: "rebuild", CostCR: 12000, PIDelta: 40, ConditionDelta: 0.40},
}

var jobDurations = map[string]time.Duration{
	"repair":  30 * time.Minute,
	"tune":    2 * time.Hour,
	"rebuild": 12 * time.Hour,
}

// StartMechanicJob debita o custo da carteira e abre um serviço de oficina
// Um veículo só aceita um serviço em andamento por vez
func (p *Postgres) StartMechanicJob(ctx context.Context, playerID, vehicleID, jobType string) (MechanicJob, error) {
	spec, ok := jobCatalog[jobType]
	if !ok {
		return MechanicJob{}, ErrNotFound
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return MechanicJob{}, err
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT owner_id FROM vehicles WHERE id=$1 FOR UPDATE`, vehicleID).Scan(&owner)
	if err == sql.ErrNoRows {
		return MechanicJob{}, ErrNotFound
	}
	if err != nil {
		return MechanicJob{}, err
	}
	if owner != playerID {
		return MechanicJob{}, ErrNotOwner
	}

	var open bool
	if err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM mechanic_jobs WHERE vehicle_id=$1 AND status='IN_PROGRESS')`,
		vehicleID).Scan(&open); err != nil {
		return MechanicJob{}, err
	}
	if open {
		return MechanicJob{}, ErrJobInProgress
	}

	// Debita o custo direto da carteira, com lock pessimista
	var walletID string
	var balance int64
	if err = tx.QueryRowContext(ctx,
		`SELECT id, balance_cr FROM wallets WHERE player_id=$1 FOR UPDATE`, playerID).Scan(&walletID, &balance); err != nil {
		return MechanicJob{}, err
	}
	if balance < spec.CostCR {
		return MechanicJob{}, ErrInsufficientFunds
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cr = balance_cr - $1, version = version + 1 WHERE id=$2`, spec.CostCR, walletID); err != nil {
		return MechanicJob{}, err
	}

	now := time.Now().UTC()
	job := MechanicJob{
		ID:             uuid.NewString(),
		VehicleID:      vehicleID,
		PlayerID:       playerID,
		JobType:        jobType,
		CostCR:         spec.CostCR,
		PIDelta:        spec.PIDelta,
		ConditionDelta: spec.ConditionDelta,
		StartedAt:      now,
		FinishesAt:     now.Add(jobDurations[jobType]),
		Status:         "IN_PROGRESS",
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO mechanic_jobs (id, vehicle_id, player_id, job_type, cost_cr, pi_delta, condition_delta, started_at, finishes_at, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'IN_PROGRESS')`,
		job.ID, job.VehicleID, job.PlayerID, job.JobType, job.CostCR, job.PIDelta, job.ConditionDelta,
		job.StartedAt, job.FinishesAt); err != nil {
		return MechanicJob{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cr, description) VALUES($1,'DEBIT',$2,$3)`,
		walletID, spec.CostCR, "mechanic:"+jobType+":"+vehicleID); err != nil {
		return MechanicJob{}, err
	}

	if err = tx.Commit(); err != nil {
		return MechanicJob{}, err
	}
	return job, nil
}

// ListMechanicJobs retorna os serviços do jogador, fechando os vencidos antes de ler.
// A conclusão é preguiçosa: um serviço "termina" quando alguém olha para ele depois
// de finishes_at, e só então o efeito é aplicado ao veículo
func (p *Postgres) ListMechanicJobs(ctx context.Context, playerID string) ([]MechanicJob, error) {
	if err := p.settleDueJobs(ctx, playerID); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, vehicle_id, player_id, job_type, cost_cr, pi_delta, condition_delta, started_at, finishes_at, status
		FROM mechanic_jobs WHERE player_id=$1 ORDER BY started_at DESC`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MechanicJob
	for rows.Next() {
		var j MechanicJob
		if err := rows.Scan(&j.ID, &j.VehicleID, &j.PlayerID, &j.JobType, &j.CostCR, &j.PIDelta,
			&j.ConditionDelta, &j.StartedAt, &j.FinishesAt, &j.Status); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// settleDueJobs aplica o efeito dos serviços vencidos e marca como DONE
func (p *Postgres) settleDueJobs(ctx context.Context, playerID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, vehicle_id, pi_delta, condition_delta
		FROM mechanic_jobs
		WHERE player_id=$1 AND status='IN_PROGRESS' AND finishes_at <= NOW()
		FOR UPDATE`, playerID)
	if err != nil {
		return err
	}

	type due struct {
		id, vehicleID string
		piDelta       int
		condDelta     float64
	}
	var dues []due
	for rows.Next() {
		var d due
		if err := rows.Scan(&d.id, &d.vehicleID, &d.piDelta, &d.condDelta); err != nil {
			rows.Close()
			return err
		}
		dues = append(dues, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, d := range dues {
		if _, err = tx.ExecContext(ctx, `
			UPDATE vehicles
			SET pi = pi + $1,
			    condition = LEAST(1.0, GREATEST(0.0, condition + $2))
			WHERE id=$3`, d.piDelta, d.condDelta, d.vehicleID); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `UPDATE mechanic_jobs SET status='DONE' WHERE id=$1`, d.id); err != nil {
			return err
		}
	}

	return tx.Commit()
}
