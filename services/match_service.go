package services

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
)

const matchStateEventLimit = 50

// MatchState - снимок комнаты матча для клиента.
type MatchState struct {
	Match             *models.Match           `json:"match"`
	Phases            []*models.MatchPhase    `json:"phases"`
	ActivePhase       *models.MatchPhase      `json:"active_phase,omitempty"`
	TimeRemaining     int                     `json:"time_remaining"`
	CurrentSubmission *models.ScoreSubmission `json:"current_submission,omitempty"`
	Capabilities      []Capability            `json:"capabilities"`
	ParticipantID     *int                    `json:"participant_id,omitempty"`
	RecentEvents      []models.MatchEvent     `json:"recent_events"`
}

type ReadyResult struct {
	Match *models.Match `json:"match"`
	Ready bool          `json:"ready"`
}

type MatchService interface {
	SetReady(ctx context.Context, matchID int, principal Principal, ready bool) (*ReadyResult, error)
	GetMatchState(ctx context.Context, matchID int, principal Principal) (*MatchState, error)
}

type matchService struct {
	store  repositories.Store
	access AccessResolver
	events *eventEmitter
	opts   Options
	logger *slog.Logger
}

func NewMatchService(
	store repositories.Store,
	access AccessResolver,
	publisher EventPublisher,
	opts Options,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		store:  store,
		access: access,
		events: newEventEmitter(store, publisher, logger),
		opts:   opts,
		logger: logger,
	}
}

func (s *matchService) SetReady(ctx context.Context, matchID int, principal Principal, ready bool) (*ReadyResult, error) {
	var result *ReadyResult
	var event models.MatchEvent

	err := s.store.InMatchTx(ctx, matchID, func(tx repositories.Tx) error {
		match, err := tx.Matches().GetByID(ctx, matchID)
		if err != nil {
			return err
		}
		access, err := s.access.Resolve(ctx, tx, match, principal)
		if err != nil {
			return err
		}
		participantID, err := access.RequireParticipant()
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusPending {
			return ErrMatchAlreadyStarted
		}

		slot := match.SlotOf(participantID)
		switch slot {
		case models.Slot1:
			match.Participant1Ready = ready
		case models.Slot2:
			match.Participant2Ready = ready
		default:
			return ErrParticipantNotInMatch
		}
		if err = tx.Matches().Update(ctx, match); err != nil {
			return err
		}

		result = &ReadyResult{Match: match, Ready: ready}
		event = models.NewMatchEvent(match, models.EventReadyChanged, map[string]any{
			"participant_id": participantID,
			"slot":           slot,
			"ready":          ready,
		})
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}

	s.events.emit(ctx, event)
	return result, nil
}

func (s *matchService) GetMatchState(ctx context.Context, matchID int, principal Principal) (*MatchState, error) {
	match, err := s.store.Matches().GetByID(ctx, matchID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	access, err := s.access.Resolve(ctx, s.store, match, principal)
	if err != nil {
		return nil, translateStoreError(err)
	}

	state := &MatchState{
		Match:         match,
		Capabilities:  access.Capabilities(),
		ParticipantID: access.ParticipantID,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		phases, err := s.store.Phases().ListMatchPhases(gctx, match.ID)
		if err != nil {
			return err
		}
		for _, phase := range phases {
			if phase.Selections, err = s.store.Selections().ListByPhase(gctx, phase.ID); err != nil {
				return err
			}
		}
		state.Phases = phases
		return nil
	})
	g.Go(func() error {
		if match.CurrentScoreSubmissionID == nil {
			return nil
		}
		submission, err := s.store.Scores().GetSubmission(gctx, *match.CurrentScoreSubmissionID)
		if err != nil {
			if errors.Is(err, repositories.ErrSubmissionNotFound) {
				return nil
			}
			return err
		}
		if submission.Actions, err = s.store.Scores().ListActions(gctx, submission.ID); err != nil {
			return err
		}
		state.CurrentSubmission = submission
		return nil
	})
	g.Go(func() error {
		events, err := s.store.Events().ListByMatch(gctx, match.ID, matchStateEventLimit)
		if err != nil {
			// Журнал аудита вспомогательный: снимок отдается и без него.
			s.logger.WarnContext(gctx, "failed to load match events", slog.Int("match_id", match.ID), slog.Any("error", err))
			events = []models.MatchEvent{}
		}
		state.RecentEvents = events
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, translateStoreError(err)
	}

	now := s.opts.now()
	for _, phase := range state.Phases {
		if phase.Status == models.PhaseStatusActive {
			state.ActivePhase = phase
			state.TimeRemaining = remainingSeconds(phase, now)
			break
		}
	}
	return state, nil
}
