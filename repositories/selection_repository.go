package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-matchroom/models"
)

var ErrSelectionOrderConflict = errors.New("phase selection order conflict")

type postgresSelectionRepository struct {
	exec SQLExecutor
}

func (r *postgresSelectionRepository) Create(ctx context.Context, s *models.PhaseSelection) error {
	query := `
		INSERT INTO phase_selections
			(match_phase_id, participant_id, selection_type, selection_data, selection_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.exec.QueryRowContext(ctx, query,
		s.MatchPhaseID,
		s.ParticipantID,
		s.SelectionType,
		[]byte(s.SelectionData),
		s.SelectionOrder,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		// (match_phase_id, participant_id, selection_order) уникален:
		// это последняя линия защиты от гонки между подсчетом и вставкой.
		if code, _ := pqErrorCode(err); code == pqUniqueViolation {
			return ErrSelectionOrderConflict
		}
		return err
	}
	return nil
}

func (r *postgresSelectionRepository) CountByParticipant(ctx context.Context, phaseID, participantID int) (int, error) {
	var count int
	err := r.exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM phase_selections WHERE match_phase_id = $1 AND participant_id = $2`,
		phaseID, participantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count selections of participant %d in phase %d: %w", participantID, phaseID, err)
	}
	return count, nil
}

func (r *postgresSelectionRepository) CountByPhase(ctx context.Context, phaseID int) (int, error) {
	var count int
	err := r.exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM phase_selections WHERE match_phase_id = $1`, phaseID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count selections in phase %d: %w", phaseID, err)
	}
	return count, nil
}

func (r *postgresSelectionRepository) ListByPhase(ctx context.Context, phaseID int) ([]models.PhaseSelection, error) {
	query := `
		SELECT id, match_phase_id, participant_id, selection_type, selection_data, selection_order, created_at
		FROM phase_selections
		WHERE match_phase_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.exec.QueryContext(ctx, query, phaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query selections of phase %d: %w", phaseID, err)
	}
	defer rows.Close()

	selections := make([]models.PhaseSelection, 0)
	for rows.Next() {
		var s models.PhaseSelection
		var data []byte
		if scanErr := rows.Scan(
			&s.ID,
			&s.MatchPhaseID,
			&s.ParticipantID,
			&s.SelectionType,
			&data,
			&s.SelectionOrder,
			&s.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan selection row: %w", scanErr)
		}
		s.SelectionData = data
		selections = append(selections, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during selection rows iteration: %w", err)
	}
	return selections, nil
}
