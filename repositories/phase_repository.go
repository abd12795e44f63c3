package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
)

var ErrPhasePositionConflict = errors.New("phase position conflict")

type postgresPhaseRepository struct {
	exec SQLExecutor
	db   *sql.DB
}

const templateColumns = `
	id, tournament_id, name, phase_type, position, turn_based, max_selections,
	time_limit_seconds, is_enabled, is_optional, created_at`

const matchPhaseColumns = `
	id, match_id, template_id, name, phase_type, position, turn_based, max_selections,
	time_limit_seconds, is_enabled, is_optional, phase_status, current_turn_participant_id,
	time_remaining, turn_started_at, completed_at`

func (r *postgresPhaseRepository) CreateTemplate(ctx context.Context, t *models.TournamentPhase) error {
	// Позиция вычисляется в том же запросе: новый этап всегда становится последним.
	query := `
		INSERT INTO tournament_phases
			(tournament_id, name, phase_type, position, turn_based, max_selections,
			 time_limit_seconds, is_enabled, is_optional)
		VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM tournament_phases WHERE tournament_id = $1),
			$4, $5, $6, $7, $8)
		RETURNING id, position, created_at`

	err := r.exec.QueryRowContext(ctx, query,
		t.TournamentID,
		t.Name,
		t.PhaseType,
		t.TurnBased,
		t.MaxSelections,
		t.TimeLimitSeconds,
		t.IsEnabled,
		t.IsOptional,
	).Scan(&t.ID, &t.Position, &t.CreatedAt)
	if err != nil {
		switch code, _ := pqErrorCode(err); code {
		case pqUniqueViolation:
			return ErrPhasePositionConflict
		case pqForeignKeyViolation:
			return ErrTournamentNotFound
		}
		return err
	}
	return nil
}

func (r *postgresPhaseRepository) GetTemplate(ctx context.Context, id int) (*models.TournamentPhase, error) {
	query := `SELECT ` + templateColumns + ` FROM tournament_phases WHERE id = $1`

	t, err := scanTemplate(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to scan phase template %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresPhaseRepository) ListTemplates(ctx context.Context, tournamentID int) ([]*models.TournamentPhase, error) {
	query := `SELECT ` + templateColumns + ` FROM tournament_phases WHERE tournament_id = $1 ORDER BY position ASC`

	rows, err := r.exec.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phase templates for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	templates := make([]*models.TournamentPhase, 0)
	for rows.Next() {
		t, scanErr := scanTemplate(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan phase template row: %w", scanErr)
		}
		templates = append(templates, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during phase template rows iteration: %w", err)
	}
	return templates, nil
}

func (r *postgresPhaseRepository) DeleteTemplate(ctx context.Context, tournamentID, id int) (err error) {
	exec := r.exec
	if r.db != nil {
		tx, beginErr := r.db.BeginTx(ctx, nil)
		if beginErr != nil {
			return fmt.Errorf("DeleteTemplate failed to begin transaction: %w", beginErr)
		}
		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			} else if err != nil {
				tx.Rollback()
			} else {
				err = tx.Commit()
			}
		}()
		exec = tx
	}

	result, err := exec.ExecContext(ctx, `DELETE FROM tournament_phases WHERE id = $1 AND tournament_id = $2`, id, tournamentID)
	if err != nil {
		return fmt.Errorf("DeleteTemplate: failed to delete phase %d: %w", id, err)
	}
	if err = checkAffectedRows(result, ErrPhaseNotFound); err != nil {
		return err
	}

	// Перенумерация 1..n по текущему порядку. Ограничение уникальности
	// (tournament_id, position) отложенное, поэтому промежуточные дубли допустимы.
	_, err = exec.ExecContext(ctx, `
		UPDATE tournament_phases AS tp
		SET position = ordered.rn
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY position) AS rn
			FROM tournament_phases
			WHERE tournament_id = $1
		) AS ordered
		WHERE tp.id = ordered.id AND tp.position <> ordered.rn`, tournamentID)
	if err != nil {
		return fmt.Errorf("DeleteTemplate: failed to renumber phases of tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresPhaseRepository) CreateMatchPhase(ctx context.Context, p *models.MatchPhase) error {
	query := `
		INSERT INTO match_phases
			(match_id, template_id, name, phase_type, position, turn_based, max_selections,
			 time_limit_seconds, is_enabled, is_optional, phase_status, current_turn_participant_id,
			 time_remaining, turn_started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	return r.exec.QueryRowContext(ctx, query,
		p.MatchID,
		p.TemplateID,
		p.Name,
		p.PhaseType,
		p.Position,
		p.TurnBased,
		p.MaxSelections,
		p.TimeLimitSeconds,
		p.IsEnabled,
		p.IsOptional,
		p.Status,
		p.CurrentTurnParticipantID,
		p.TimeRemaining,
		p.TurnStartedAt,
		p.CompletedAt,
	).Scan(&p.ID)
}

func (r *postgresPhaseRepository) GetMatchPhase(ctx context.Context, id int) (*models.MatchPhase, error) {
	query := `SELECT ` + matchPhaseColumns + ` FROM match_phases WHERE id = $1`

	p, err := scanMatchPhase(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to scan match phase %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresPhaseRepository) ListMatchPhases(ctx context.Context, matchID int) ([]*models.MatchPhase, error) {
	query := `SELECT ` + matchPhaseColumns + ` FROM match_phases WHERE match_id = $1 ORDER BY position ASC, id ASC`
	return r.queryMatchPhases(ctx, query, matchID)
}

func (r *postgresPhaseRepository) ListExpiredTurns(ctx context.Context, now time.Time) ([]*models.MatchPhase, error) {
	query := `SELECT ` + matchPhaseColumns + `
		FROM match_phases
		WHERE phase_status = 'active'
		  AND turn_based
		  AND time_limit_seconds > 0
		  AND turn_started_at IS NOT NULL
		  AND turn_started_at + make_interval(secs => time_limit_seconds) <= $1
		ORDER BY id ASC`
	return r.queryMatchPhases(ctx, query, now)
}

func (r *postgresPhaseRepository) queryMatchPhases(ctx context.Context, query string, args ...interface{}) ([]*models.MatchPhase, error) {
	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query match phases: %w", err)
	}
	defer rows.Close()

	phases := make([]*models.MatchPhase, 0)
	for rows.Next() {
		p, scanErr := scanMatchPhase(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match phase row: %w", scanErr)
		}
		phases = append(phases, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match phase rows iteration: %w", err)
	}
	return phases, nil
}

func (r *postgresPhaseRepository) UpdateMatchPhase(ctx context.Context, p *models.MatchPhase) error {
	query := `
		UPDATE match_phases
		SET phase_status = $1, current_turn_participant_id = $2, time_remaining = $3,
		    turn_started_at = $4, completed_at = $5
		WHERE id = $6`

	result, err := r.exec.ExecContext(ctx, query,
		p.Status,
		p.CurrentTurnParticipantID,
		p.TimeRemaining,
		p.TurnStartedAt,
		p.CompletedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateMatchPhase: failed to execute query for phase %d: %w", p.ID, err)
	}
	return checkAffectedRows(result, ErrPhaseNotFound)
}

func scanTemplate(row rowScanner) (*models.TournamentPhase, error) {
	var t models.TournamentPhase
	err := row.Scan(
		&t.ID,
		&t.TournamentID,
		&t.Name,
		&t.PhaseType,
		&t.Position,
		&t.TurnBased,
		&t.MaxSelections,
		&t.TimeLimitSeconds,
		&t.IsEnabled,
		&t.IsOptional,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanMatchPhase(row rowScanner) (*models.MatchPhase, error) {
	var p models.MatchPhase
	err := row.Scan(
		&p.ID,
		&p.MatchID,
		&p.TemplateID,
		&p.Name,
		&p.PhaseType,
		&p.Position,
		&p.TurnBased,
		&p.MaxSelections,
		&p.TimeLimitSeconds,
		&p.IsEnabled,
		&p.IsOptional,
		&p.Status,
		&p.CurrentTurnParticipantID,
		&p.TimeRemaining,
		&p.TurnStartedAt,
		&p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
