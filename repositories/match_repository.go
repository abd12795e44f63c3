package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-matchroom/models"
)

var (
	ErrMatchTournamentInvalid  = errors.New("match tournament conflict or invalid")
	ErrMatchParticipantInvalid = errors.New("match participant conflict or invalid")
)

type postgresMatchRepository struct {
	exec SQLExecutor
}

const matchColumns = `
	id, tournament_id, round, match_number, bracket_tag, participant1_id, participant2_id,
	winner_id, status, participant1_ready, participant2_ready, started_at, completed_at,
	current_score_submission_id, score_submission_status, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches
			(tournament_id, round, match_number, bracket_tag, participant1_id, participant2_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	if m.Status == "" {
		m.Status = models.MatchStatusPending
	}
	err := r.exec.QueryRowContext(ctx, query,
		m.TournamentID,
		m.Round,
		m.MatchNumber,
		m.BracketTag,
		m.Participant1ID,
		m.Participant2ID,
		m.Status,
	).Scan(&m.ID, &m.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m, err := scanMatch(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, m *models.Match) error {
	query := `
		UPDATE matches
		SET status = $1, participant1_ready = $2, participant2_ready = $3, started_at = $4,
		    completed_at = $5, winner_id = $6, current_score_submission_id = $7,
		    score_submission_status = $8
		WHERE id = $9`

	result, err := r.exec.ExecContext(ctx, query,
		m.Status,
		m.Participant1Ready,
		m.Participant2Ready,
		m.StartedAt,
		m.CompletedAt,
		m.WinnerID,
		m.CurrentScoreSubmissionID,
		string(m.ScoreSubmissionStatus),
		m.ID,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var m models.Match
	var scoreStatus string
	err := row.Scan(
		&m.ID,
		&m.TournamentID,
		&m.Round,
		&m.MatchNumber,
		&m.BracketTag,
		&m.Participant1ID,
		&m.Participant2ID,
		&m.WinnerID,
		&m.Status,
		&m.Participant1Ready,
		&m.Participant2Ready,
		&m.StartedAt,
		&m.CompletedAt,
		&m.CurrentScoreSubmissionID,
		&scoreStatus,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.ScoreSubmissionStatus = models.ScoreSubmissionStatus(scoreStatus)
	return &m, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	switch _, constraint := pqErrorCode(err); constraint {
	case "matches_tournament_id_fkey":
		return ErrMatchTournamentInvalid
	case "matches_participant1_id_fkey", "matches_participant2_id_fkey", "matches_winner_id_fkey":
		return ErrMatchParticipantInvalid
	}
	return err
}
