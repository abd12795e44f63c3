package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrPhaseNotFound       = errors.New("phase not found")
	ErrPrivilegeNotFound   = errors.New("participant privilege not found")
	ErrSubmissionNotFound  = errors.New("score submission not found")
	ErrUserNotFound        = errors.New("user not found")

	ErrPrivilegeTokenConflict = errors.New("privilege token conflict")
	ErrUserEmailConflict      = errors.New("user email conflict")
)

type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
}

type ParticipantRepository interface {
	Create(ctx context.Context, p *models.Participant) error
	GetByID(ctx context.Context, id int) (*models.Participant, error)
}

type MatchRepository interface {
	Create(ctx context.Context, m *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// Update перезаписывает изменяемые поля матча (статус, готовность, счет, победитель).
	Update(ctx context.Context, m *models.Match) error
}

type PhaseRepository interface {
	CreateTemplate(ctx context.Context, t *models.TournamentPhase) error
	GetTemplate(ctx context.Context, id int) (*models.TournamentPhase, error)
	ListTemplates(ctx context.Context, tournamentID int) ([]*models.TournamentPhase, error)
	// DeleteTemplate удаляет шаблон и перенумеровывает оставшиеся 1..n.
	DeleteTemplate(ctx context.Context, tournamentID, id int) error

	CreateMatchPhase(ctx context.Context, p *models.MatchPhase) error
	GetMatchPhase(ctx context.Context, id int) (*models.MatchPhase, error)
	ListMatchPhases(ctx context.Context, matchID int) ([]*models.MatchPhase, error)
	UpdateMatchPhase(ctx context.Context, p *models.MatchPhase) error
	// ListExpiredTurns возвращает активные пошаговые этапы, чей таймер истек к моменту now.
	ListExpiredTurns(ctx context.Context, now time.Time) ([]*models.MatchPhase, error)
}

type SelectionRepository interface {
	Create(ctx context.Context, s *models.PhaseSelection) error
	CountByParticipant(ctx context.Context, phaseID, participantID int) (int, error)
	CountByPhase(ctx context.Context, phaseID int) (int, error)
	ListByPhase(ctx context.Context, phaseID int) ([]models.PhaseSelection, error)
}

type PrivilegeRepository interface {
	Create(ctx context.Context, p *models.ParticipantPrivilege) error
	// GetUsable ищет активный и не истекший токен матча.
	GetUsable(ctx context.Context, matchID int, token string, now time.Time) (*models.ParticipantPrivilege, error)
	GetCurrent(ctx context.Context, matchID, participantID int, now time.Time) (*models.ParticipantPrivilege, error)
	DeactivateByMatch(ctx context.Context, matchID int) (int64, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	TouchLastUsed(ctx context.Context, id int, at time.Time) error
	MarkEmailSent(ctx context.Context, id int, at time.Time) error
}

type ScoreRepository interface {
	CreateSubmission(ctx context.Context, s *models.ScoreSubmission) error
	GetSubmission(ctx context.Context, id int) (*models.ScoreSubmission, error)
	UpdateSubmissionStatus(ctx context.Context, id int, status models.SubmissionStatus) error
	ListSubmissions(ctx context.Context, matchID int) ([]*models.ScoreSubmission, error)
	CreateAction(ctx context.Context, a *models.ScoreVerificationAction) error
	ListActions(ctx context.Context, submissionID int) ([]models.ScoreVerificationAction, error)
}

type EventRepository interface {
	Append(ctx context.Context, e *models.MatchEvent) error
	ListByMatch(ctx context.Context, matchID int, limit int) ([]models.MatchEvent, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Tx - набор репозиториев, работающих в одной транзакции (или без нее).
type Tx interface {
	Tournaments() TournamentRepository
	Participants() ParticipantRepository
	Matches() MatchRepository
	Phases() PhaseRepository
	Selections() SelectionRepository
	Privileges() PrivilegeRepository
	Scores() ScoreRepository
	Events() EventRepository
	Users() UserRepository
}

// Store - точка входа в хранилище.
// InMatchTx выполняет fn атомарно, удерживая блокировку строки матча:
// все проверки предусловий внутри fn видят согласованный снимок,
// а любая ошибка откатывает все изменения.
type Store interface {
	Tx
	InMatchTx(ctx context.Context, matchID int, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
