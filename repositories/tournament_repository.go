package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-matchroom/models"
)

type postgresTournamentRepository struct {
	exec SQLExecutor
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, creator_id, is_public)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return r.exec.QueryRowContext(ctx, query, t.Name, t.CreatorID, t.IsPublic).Scan(&t.ID, &t.CreatedAt)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT id, name, creator_id, is_public, created_at FROM tournaments WHERE id = $1`

	t := &models.Tournament{}
	err := r.exec.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.CreatorID, &t.IsPublic, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament by id %d: %w", id, err)
	}
	return t, nil
}

type postgresParticipantRepository struct {
	exec SQLExecutor
}

func (r *postgresParticipantRepository) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (tournament_id, user_id, display_name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.exec.QueryRowContext(ctx, query, p.TournamentID, p.UserID, p.DisplayName, p.Email).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
			return ErrTournamentNotFound
		}
		return err
	}
	return nil
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	query := `
		SELECT id, tournament_id, user_id, display_name, email, created_at
		FROM participants
		WHERE id = $1`

	p := &models.Participant{}
	err := r.exec.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.TournamentID,
		&p.UserID,
		&p.DisplayName,
		&p.Email,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to scan participant by id %d: %w", id, err)
	}
	return p, nil
}
