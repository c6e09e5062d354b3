package repo

import (
	"context"
	"database/sql"

	"github.com/midnightgrind/race-wager-platform/internal/live-feed/dto"
)

// HistoryLimit é o teto de entradas dos históricos do feed
const HistoryLimit = 100

type ReadRepo struct {
	DB *sql.DB
}

// ListRaces devolve as corridas mais recentes do quadro de classificação
func (r *ReadRepo) ListRaces(ctx context.Context, limit int) ([]dto.RaceSummary, error) {
	limit = clamp(limit)
	const q = `
		SELECT race_id, track_id, race_type, stage, version, to_char(updated_at, 'YYYY-MM-DD"T"HH24:MI:SSZ')
		FROM race_standings
		ORDER BY updated_at DESC
		LIMIT $1;
	`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dto.RaceSummary
	for rows.Next() {
		var s dto.RaceSummary
		if err := rows.Scan(&s.RaceID, &s.TrackID, &s.RaceType, &s.Stage, &s.Version, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetStandings devolve a classificação corrente de uma corrida
func (r *ReadRepo) GetStandings(ctx context.Context, raceID string) (*dto.RaceStandings, error) {
	const q = `
		SELECT race_id, track_id, race_type, stage, standings, version, to_char(updated_at, 'YYYY-MM-DD"T"HH24:MI:SSZ')
		FROM race_standings
		WHERE race_id = $1;
	`
	var s dto.RaceStandings
	err := r.DB.QueryRowContext(ctx, q, raceID).
		Scan(&s.RaceID, &s.TrackID, &s.RaceType, &s.Stage, &s.Standings, &s.Version, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListRecentWagers devolve os wagers encerrados mais recentes, novo primeiro
func (r *ReadRepo) ListRecentWagers(ctx context.Context, limit int) ([]dto.WagerHistoryEntry, error) {
	limit = clamp(limit)
	const q = `
		SELECT id, state, proposer_id, target_id, track_id, race_type, pink_slip,
		       to_char(updated_at, 'YYYY-MM-DD"T"HH24:MI:SSZ')
		FROM wagers
		WHERE state IN ('COMPLETED','DECLINED','CANCELLED','DISPUTED','EXPIRED')
		ORDER BY updated_at DESC
		LIMIT $1;
	`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dto.WagerHistoryEntry
	for rows.Next() {
		var e dto.WagerHistoryEntry
		if err := rows.Scan(&e.WagerID, &e.State, &e.ProposerID, &e.TargetID, &e.TrackID, &e.RaceType, &e.PinkSlip, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListPinkSlips devolve o mural de transferências, mais recente primeiro
func (r *ReadRepo) ListPinkSlips(ctx context.Context, limit int) ([]dto.PinkSlipEntry, error) {
	limit = clamp(limit)
	const q = `
		SELECT id, wager_id, race_id, winner_id, loser_id, vehicle_id, vehicle_value_cr,
		       track_id, margin_ms, witnesses, to_char(created_at, 'YYYY-MM-DD"T"HH24:MI:SSZ')
		FROM pinkslip_transfers
		ORDER BY created_at DESC
		LIMIT $1;
	`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dto.PinkSlipEntry
	for rows.Next() {
		var e dto.PinkSlipEntry
		if err := rows.Scan(&e.TransferID, &e.WagerID, &e.RaceID, &e.WinnerID, &e.LoserID,
			&e.VehicleID, &e.VehicleValueCR, &e.TrackID, &e.MarginMS, &e.Witnesses, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func clamp(limit int) int {
	if limit <= 0 || limit > HistoryLimit {
		return HistoryLimit
	}
	return limit
}
