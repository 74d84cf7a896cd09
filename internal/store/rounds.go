package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/crew/internal/orchestrator"
)

// ErrRoundNotFound is returned by GetRound for an unknown id.
var ErrRoundNotFound = errors.New("round not found")

// SaveRound stores the report of a finished round.
func (s *Store) SaveRound(ctx context.Context, r *orchestrator.Report) error {
	if r.RoundID == "" {
		return fmt.Errorf("save round: report has no round id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO rounds (id, status, prompt, report, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			report = EXCLUDED.report,
			duration_ms = EXCLUDED.duration_ms`,
		r.RoundID, string(r.Status), r.Prompt, data, r.StartedAt, r.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("save round: %w", err)
	}
	return nil
}

// ListRounds returns the most recent reports, newest first.
func (s *Store) ListRounds(ctx context.Context, limit int) ([]*orchestrator.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx,
		`SELECT report FROM rounds ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var out []*orchestrator.Report
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		var r orchestrator.Report
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode round: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// GetRound loads one report by round id.
func (s *Store) GetRound(ctx context.Context, id string) (*orchestrator.Report, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT report FROM rounds WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get round: %w", err)
	}
	var r orchestrator.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode round: %w", err)
	}
	return &r, nil
}
