package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
)

var ErrPrivilegeParticipantInvalid = errors.New("privilege match or participant invalid")

type postgresPrivilegeRepository struct {
	exec SQLExecutor
}

const privilegeColumns = `
	id, match_id, participant_id, token, expires_at, is_active, last_used_at, last_email_sent_at, created_at`

func (r *postgresPrivilegeRepository) Create(ctx context.Context, p *models.ParticipantPrivilege) error {
	// ON CONFLICT вместо ошибки уникальности: ошибка прервала бы всю
	// транзакцию матча, а вызывающий код повторяет попытку с новым токеном.
	query := `
		INSERT INTO participant_privileges (match_id, participant_id, token, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT participant_privileges_token_key DO NOTHING
		RETURNING id, created_at`

	err := r.exec.QueryRowContext(ctx, query,
		p.MatchID,
		p.ParticipantID,
		p.Token,
		p.ExpiresAt,
		p.IsActive,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPrivilegeTokenConflict
		}
		if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
			return ErrPrivilegeParticipantInvalid
		}
		return err
	}
	return nil
}

func (r *postgresPrivilegeRepository) GetUsable(ctx context.Context, matchID int, token string, now time.Time) (*models.ParticipantPrivilege, error) {
	query := `SELECT ` + privilegeColumns + `
		FROM participant_privileges
		WHERE match_id = $1 AND token = $2 AND is_active AND expires_at > $3`

	return r.getOne(ctx, query, matchID, token, now)
}

func (r *postgresPrivilegeRepository) GetCurrent(ctx context.Context, matchID, participantID int, now time.Time) (*models.ParticipantPrivilege, error) {
	query := `SELECT ` + privilegeColumns + `
		FROM participant_privileges
		WHERE match_id = $1 AND participant_id = $2 AND is_active AND expires_at > $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	return r.getOne(ctx, query, matchID, participantID, now)
}

func (r *postgresPrivilegeRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.ParticipantPrivilege, error) {
	var p models.ParticipantPrivilege
	err := r.exec.QueryRowContext(ctx, query, args...).Scan(
		&p.ID,
		&p.MatchID,
		&p.ParticipantID,
		&p.Token,
		&p.ExpiresAt,
		&p.IsActive,
		&p.LastUsedAt,
		&p.LastEmailSentAt,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrivilegeNotFound
		}
		return nil, fmt.Errorf("failed to scan participant privilege: %w", err)
	}
	return &p, nil
}

func (r *postgresPrivilegeRepository) DeactivateByMatch(ctx context.Context, matchID int) (int64, error) {
	result, err := r.exec.ExecContext(ctx,
		`UPDATE participant_privileges SET is_active = FALSE WHERE match_id = $1 AND is_active`, matchID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate privileges of match %d: %w", matchID, err)
	}
	return result.RowsAffected()
}

func (r *postgresPrivilegeRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.exec.ExecContext(ctx,
		`UPDATE participant_privileges SET is_active = FALSE WHERE is_active AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired privileges: %w", err)
	}
	return result.RowsAffected()
}

func (r *postgresPrivilegeRepository) TouchLastUsed(ctx context.Context, id int, at time.Time) error {
	result, err := r.exec.ExecContext(ctx, `UPDATE participant_privileges SET last_used_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPrivilegeNotFound)
}

func (r *postgresPrivilegeRepository) MarkEmailSent(ctx context.Context, id int, at time.Time) error {
	result, err := r.exec.ExecContext(ctx, `UPDATE participant_privileges SET last_email_sent_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPrivilegeNotFound)
}
