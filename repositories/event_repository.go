package repositories

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-matchroom/models"
)

type postgresEventRepository struct {
	exec SQLExecutor
}

func (r *postgresEventRepository) Append(ctx context.Context, e *models.MatchEvent) error {
	query := `
		INSERT INTO match_events (id, match_id, tournament_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	var payload interface{}
	if len(e.Payload) > 0 {
		payload = []byte(e.Payload)
	}
	_, err := r.exec.ExecContext(ctx, query, e.ID, e.MatchID, e.TournamentID, e.Type, payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append match event %s: %w", e.Type, err)
	}
	return nil
}

func (r *postgresEventRepository) ListByMatch(ctx context.Context, matchID int, limit int) ([]models.MatchEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, match_id, tournament_id, event_type, payload, created_at
		FROM match_events
		WHERE match_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.exec.QueryContext(ctx, query, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events of match %d: %w", matchID, err)
	}
	defer rows.Close()

	events := make([]models.MatchEvent, 0)
	for rows.Next() {
		var e models.MatchEvent
		var payload []byte
		if scanErr := rows.Scan(&e.ID, &e.MatchID, &e.TournamentID, &e.Type, &payload, &e.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match event row: %w", scanErr)
		}
		if len(payload) > 0 {
			e.Payload = payload
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match event rows iteration: %w", err)
	}
	return events, nil
}
