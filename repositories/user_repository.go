package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-matchroom/models"
)

type postgresUserRepository struct {
	exec SQLExecutor
}

func (r *postgresUserRepository) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (email, display_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.exec.QueryRowContext(ctx, query, strings.ToLower(u.Email), u.DisplayName, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if code, constraint := pqErrorCode(err); code == pqUniqueViolation && constraint == "users_email_key" {
			return ErrUserEmailConflict
		}
		return err
	}
	return nil
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, display_name, password_hash, created_at FROM users WHERE email = $1`

	u := &models.User{}
	err := r.exec.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user by email: %w", err)
	}
	return u, nil
}
