package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/midnightgrind/race-wager-platform/pkg/contracts/events"
)

// PostgresRepo persiste classificação corrente e histórico de telemetria.
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// UpsertCurrent insere ou atualiza a classificação corrente de uma corrida.
// ON CONFLICT por race_id garante um registro por corrida
func (r *PostgresRepo) UpsertCurrent(ctx context.Context, e events.RaceTelemetry) error {
	standings, err := json.Marshal(e.Standings)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO race_standings
		  (race_id, track_id, race_type, stage, standings, version, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (race_id) DO UPDATE SET
		  track_id  = EXCLUDED.track_id,
		  race_type = EXCLUDED.race_type,
		  stage     = EXCLUDED.stage,
		  standings = EXCLUDED.standings,
		  version   = EXCLUDED.version,
		  updated_at= EXCLUDED.updated_at
		WHERE race_standings.version < EXCLUDED.version
	`
	_, err = r.DB.ExecContext(ctx, q,
		e.RaceID, e.TrackID, e.RaceType, e.Stage, standings, e.Version, e.UpdatedAt,
	)
	return err
}

// InsertHistory insere o tick no histórico de telemetria (telemetry_history)
func (r *PostgresRepo) InsertHistory(ctx context.Context, e events.RaceTelemetry) error {
	standings, err := json.Marshal(e.Standings)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO telemetry_history
		  (race_id, stage, standings, version, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5)
	`
	_, err = r.DB.ExecContext(ctx, q,
		e.RaceID, e.Stage, standings, e.Version, e.UpdatedAt,
	)
	return err
}
