package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/midnightgrind/race-wager-platform/internal/wager-service/engine"
)

var ErrNotFound = errors.New("wager not found")

// Postgres persiste wagers; o estado em memória do serviço é reconstruível daqui
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Create insere o wager recém-proposto
func (p *Postgres) Create(ctx context.Context, w *engine.Wager) error {
	ps, err := json.Marshal(w.Proposer.Stake)
	if err != nil {
		return err
	}
	ts, err := json.Marshal(w.Target.Stake)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO wagers
		  (id, state, proposer_id, target_id, proposer_stake, target_stake,
		   track_id, race_type, laps, rules, pink_slip, race_id, created_at, updated_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),$13,$14,$15)`,
		w.ID, w.State, w.Proposer.PlayerID, w.Target.PlayerID, ps, ts,
		w.Conditions.TrackID, w.Conditions.RaceType, w.Conditions.Laps, w.Conditions.Rules,
		w.PinkSlip, w.RaceID, w.CreatedAt, w.UpdatedAt, w.ExpiresAt)
	return err
}

// Save grava estado, corrida e apostas após uma transição
func (p *Postgres) Save(ctx context.Context, w *engine.Wager) error {
	ps, err := json.Marshal(w.Proposer.Stake)
	if err != nil {
		return err
	}
	ts, err := json.Marshal(w.Target.Stake)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE wagers
		SET state=$1, race_id=NULLIF($2,''), proposer_stake=$3, target_stake=$4, updated_at=$5
		WHERE id=$6`,
		w.State, w.RaceID, ps, ts, w.UpdatedAt, w.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get carrega um wager pelo id
func (p *Postgres) Get(ctx context.Context, id string) (*engine.Wager, error) {
	return p.scanOne(p.db.QueryRowContext(ctx, selectWager+` WHERE id=$1`, id))
}

// GetByRace carrega o wager ligado a uma corrida
func (p *Postgres) GetByRace(ctx context.Context, raceID string) (*engine.Wager, error) {
	return p.scanOne(p.db.QueryRowContext(ctx, selectWager+` WHERE race_id=$1`, raceID))
}

const selectWager = `
	SELECT id, state, proposer_id, target_id, proposer_stake, target_stake,
	       track_id, race_type, laps, rules, pink_slip, COALESCE(race_id,''),
	       created_at, updated_at, expires_at
	FROM wagers`

func (p *Postgres) scanOne(row *sql.Row) (*engine.Wager, error) {
	var w engine.Wager
	var ps, ts []byte
	err := row.Scan(&w.ID, &w.State, &w.Proposer.PlayerID, &w.Target.PlayerID, &ps, &ts,
		&w.Conditions.TrackID, &w.Conditions.RaceType, &w.Conditions.Laps, &w.Conditions.Rules,
		&w.PinkSlip, &w.RaceID, &w.CreatedAt, &w.UpdatedAt, &w.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ps, &w.Proposer.Stake); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ts, &w.Target.Stake); err != nil {
		return nil, err
	}
	return &w, nil
}

// ListStaleProposals retorna propostas vencidas, para o varredor de expiração
func (p *Postgres) ListStaleProposals(ctx context.Context, now time.Time, limit int) ([]*engine.Wager, error) {
	rows, err := p.db.QueryContext(ctx, selectWager+`
		WHERE state=$1 AND expires_at <= $2
		ORDER BY expires_at
		LIMIT $3`, engine.StateProposed, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*engine.Wager
	for rows.Next() {
		var w engine.Wager
		var ps, ts []byte
		if err := rows.Scan(&w.ID, &w.State, &w.Proposer.PlayerID, &w.Target.PlayerID, &ps, &ts,
			&w.Conditions.TrackID, &w.Conditions.RaceType, &w.Conditions.Laps, &w.Conditions.Rules,
			&w.PinkSlip, &w.RaceID, &w.CreatedAt, &w.UpdatedAt, &w.ExpiresAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(ps, &w.Proposer.Stake); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(ts, &w.Target.Stake); err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// InsertTransition registra a auditoria de mudança de estado
func (p *Postgres) InsertTransition(ctx context.Context, wagerID string, from, to engine.State, reason string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO wager_transitions (wager_id, old_state, new_state, reason, created_at)
		VALUES ($1,$2,$3,$4,NOW())`, wagerID, from, to, reason)
	return err
}
