package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-matchroom/models"
)

type postgresScoreRepository struct {
	exec SQLExecutor
}

const submissionColumns = `
	id, match_id, submitted_by, participant1_score, participant2_score, status,
	submission_type, game_number, game_scores, notes, created_at`

func (r *postgresScoreRepository) CreateSubmission(ctx context.Context, s *models.ScoreSubmission) error {
	query := `
		INSERT INTO score_submissions
			(match_id, submitted_by, participant1_score, participant2_score, status,
			 submission_type, game_number, game_scores, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	var gameScores interface{}
	if len(s.GameScores) > 0 {
		gameScores = []byte(s.GameScores)
	}
	return r.exec.QueryRowContext(ctx, query,
		s.MatchID,
		s.SubmittedBy,
		s.Participant1Score,
		s.Participant2Score,
		s.Status,
		s.SubmissionType,
		s.GameNumber,
		gameScores,
		s.Notes,
	).Scan(&s.ID, &s.CreatedAt)
}

func (r *postgresScoreRepository) GetSubmission(ctx context.Context, id int) (*models.ScoreSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM score_submissions WHERE id = $1`

	s, err := scanSubmission(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to scan score submission %d: %w", id, err)
	}
	return s, nil
}

func (r *postgresScoreRepository) UpdateSubmissionStatus(ctx context.Context, id int, status models.SubmissionStatus) error {
	result, err := r.exec.ExecContext(ctx, `UPDATE score_submissions SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status of score submission %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrSubmissionNotFound)
}

func (r *postgresScoreRepository) ListSubmissions(ctx context.Context, matchID int) ([]*models.ScoreSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM score_submissions WHERE match_id = $1 ORDER BY id ASC`

	rows, err := r.exec.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query score submissions of match %d: %w", matchID, err)
	}
	defer rows.Close()

	submissions := make([]*models.ScoreSubmission, 0)
	for rows.Next() {
		s, scanErr := scanSubmission(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan score submission row: %w", scanErr)
		}
		submissions = append(submissions, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during score submission rows iteration: %w", err)
	}
	return submissions, nil
}

func (r *postgresScoreRepository) CreateAction(ctx context.Context, a *models.ScoreVerificationAction) error {
	query := `
		INSERT INTO score_verification_actions (submission_id, participant_id, actor_user_id, action_type, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return r.exec.QueryRowContext(ctx, query,
		a.SubmissionID,
		a.ParticipantID,
		a.ActorUserID,
		a.ActionType,
		a.Notes,
	).Scan(&a.ID, &a.CreatedAt)
}

func (r *postgresScoreRepository) ListActions(ctx context.Context, submissionID int) ([]models.ScoreVerificationAction, error) {
	query := `
		SELECT id, submission_id, participant_id, actor_user_id, action_type, notes, created_at
		FROM score_verification_actions
		WHERE submission_id = $1
		ORDER BY id ASC`

	rows, err := r.exec.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query verification actions of submission %d: %w", submissionID, err)
	}
	defer rows.Close()

	actions := make([]models.ScoreVerificationAction, 0)
	for rows.Next() {
		var a models.ScoreVerificationAction
		if scanErr := rows.Scan(
			&a.ID,
			&a.SubmissionID,
			&a.ParticipantID,
			&a.ActorUserID,
			&a.ActionType,
			&a.Notes,
			&a.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan verification action row: %w", scanErr)
		}
		actions = append(actions, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during verification action rows iteration: %w", err)
	}
	return actions, nil
}

func scanSubmission(row rowScanner) (*models.ScoreSubmission, error) {
	var s models.ScoreSubmission
	var gameScores []byte
	err := row.Scan(
		&s.ID,
		&s.MatchID,
		&s.SubmittedBy,
		&s.Participant1Score,
		&s.Participant2Score,
		&s.Status,
		&s.SubmissionType,
		&s.GameNumber,
		&gameScores,
		&s.Notes,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(gameScores) > 0 {
		s.GameScores = gameScores
	}
	return &s, nil
}
