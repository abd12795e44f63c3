package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

type postgresStore struct {
	db     *sql.DB
	logger *slog.Logger
	repos  postgresRepos
}

// postgresRepos связывает все репозитории с одним исполнителем (db или tx).
type postgresRepos struct {
	exec SQLExecutor
	// db заполнен только вне транзакции: репозитории, которым нужна
	// своя транзакция (перенумерация этапов), открывают ее сами.
	db *sql.DB
}

func NewPostgresStore(db *sql.DB, logger *slog.Logger) Store {
	return &postgresStore{
		db:     db,
		logger: logger,
		repos:  postgresRepos{exec: db, db: db},
	}
}

func (r postgresRepos) Tournaments() TournamentRepository {
	return &postgresTournamentRepository{exec: r.exec}
}

func (r postgresRepos) Participants() ParticipantRepository {
	return &postgresParticipantRepository{exec: r.exec}
}

func (r postgresRepos) Matches() MatchRepository {
	return &postgresMatchRepository{exec: r.exec}
}

func (r postgresRepos) Phases() PhaseRepository {
	return &postgresPhaseRepository{exec: r.exec, db: r.db}
}

func (r postgresRepos) Selections() SelectionRepository {
	return &postgresSelectionRepository{exec: r.exec}
}

func (r postgresRepos) Privileges() PrivilegeRepository {
	return &postgresPrivilegeRepository{exec: r.exec}
}

func (r postgresRepos) Scores() ScoreRepository {
	return &postgresScoreRepository{exec: r.exec}
}

func (r postgresRepos) Events() EventRepository {
	return &postgresEventRepository{exec: r.exec}
}

func (r postgresRepos) Users() UserRepository {
	return &postgresUserRepository{exec: r.exec}
}

func (s *postgresStore) Tournaments() TournamentRepository   { return s.repos.Tournaments() }
func (s *postgresStore) Participants() ParticipantRepository { return s.repos.Participants() }
func (s *postgresStore) Matches() MatchRepository           { return s.repos.Matches() }
func (s *postgresStore) Phases() PhaseRepository             { return s.repos.Phases() }
func (s *postgresStore) Selections() SelectionRepository     { return s.repos.Selections() }
func (s *postgresStore) Privileges() PrivilegeRepository     { return s.repos.Privileges() }
func (s *postgresStore) Scores() ScoreRepository             { return s.repos.Scores() }
func (s *postgresStore) Events() EventRepository             { return s.repos.Events() }
func (s *postgresStore) Users() UserRepository               { return s.repos.Users() }

func (s *postgresStore) InMatchTx(ctx context.Context, matchID int, fn func(tx Tx) error) (txErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.ErrorContext(ctx, "rollback failed", slog.Int("match_id", matchID), slog.Any("error", rbErr))
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction for match %d: %w", matchID, cErr)
		}
	}()

	// Строка матча блокируется до конца транзакции: конкурентные действия
	// над тем же матчем выполняются строго по очереди.
	var lockedID int
	err = tx.QueryRowContext(ctx, `SELECT id FROM matches WHERE id = $1 FOR UPDATE`, matchID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMatchNotFound
		}
		return fmt.Errorf("failed to lock match %d: %w", matchID, err)
	}

	return fn(postgresRepos{exec: tx})
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}
