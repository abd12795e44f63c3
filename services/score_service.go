package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
)

type VerifyAction string

const (
	VerifyAccept          VerifyAction = "accept"
	VerifyDispute         VerifyAction = "dispute"
	VerifyCounterPropose  VerifyAction = "counter_propose"
	VerifyCreatorFinalize VerifyAction = "creator_finalize"
)

func (a VerifyAction) Valid() bool {
	switch a {
	case VerifyAccept, VerifyDispute, VerifyCounterPropose, VerifyCreatorFinalize:
		return true
	}
	return false
}

type SubmitScoreInput struct {
	Participant1Score int             `json:"participant1_score"`
	Participant2Score int             `json:"participant2_score"`
	Notes             *string         `json:"notes,omitempty"`
	GameNumber        *int            `json:"game_number,omitempty"`
	GameScores        json.RawMessage `json:"game_scores,omitempty"`
}

func (in SubmitScoreInput) hasGameMeta() bool {
	return in.GameNumber != nil || len(in.GameScores) > 0
}

type VerifyScoreInput struct {
	Action VerifyAction `json:"action"`
	// Встречный счет учитывается только для counter_propose и только если заданы обе стороны.
	CounterParticipant1Score *int    `json:"counter_participant1_score,omitempty"`
	CounterParticipant2Score *int    `json:"counter_participant2_score,omitempty"`
	Notes                    *string `json:"notes,omitempty"`
}

type VerifyScoreResult struct {
	Action            *models.ScoreVerificationAction `json:"action"`
	Match             *models.Match                   `json:"match"`
	CounterSubmission *models.ScoreSubmission         `json:"counter_submission,omitempty"`
	Finalized         bool                            `json:"finalized"`
}

type ScoreService interface {
	SubmitScore(ctx context.Context, matchID int, principal Principal, input SubmitScoreInput) (*models.ScoreSubmission, error)
	VerifyScore(ctx context.Context, matchID, submissionID int, principal Principal, input VerifyScoreInput) (*VerifyScoreResult, error)
}

type scoreService struct {
	store     repositories.Store
	access    AccessResolver
	finalizer MatchFinalizer
	events    *eventEmitter
	opts      Options
	logger    *slog.Logger
}

func NewScoreService(
	store repositories.Store,
	access AccessResolver,
	finalizer MatchFinalizer,
	publisher EventPublisher,
	opts Options,
	logger *slog.Logger,
) ScoreService {
	return &scoreService{
		store:     store,
		access:    access,
		finalizer: finalizer,
		events:    newEventEmitter(store, publisher, logger),
		opts:      opts,
		logger:    logger,
	}
}

func (s *scoreService) SubmitScore(ctx context.Context, matchID int, principal Principal, input SubmitScoreInput) (*models.ScoreSubmission, error) {
	if err := validateSubmitInput(input); err != nil {
		return nil, err
	}

	var submission *models.ScoreSubmission
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
		// Через ready_for_score проходит обычный жизненный цикл после этапов,
		// поэтому оба статуса считаются "матч идет".
		if match.Status != models.MatchStatusInProgress && match.Status != models.MatchStatusReadyForScore {
			return ErrMatchNotInProgress
		}

		submissionType := models.SubmissionTypeInitial
		if input.hasGameMeta() {
			submissionType = models.SubmissionTypeGameResult
		}
		submission = &models.ScoreSubmission{
			MatchID:           match.ID,
			SubmittedBy:       participantID,
			Participant1Score: input.Participant1Score,
			Participant2Score: input.Participant2Score,
			Status:            models.SubmissionStatusPending,
			SubmissionType:    submissionType,
			GameNumber:        input.GameNumber,
			GameScores:        input.GameScores,
			Notes:             input.Notes,
		}
		if err = s.replaceCurrent(ctx, tx, match, submission); err != nil {
			return err
		}
		match.ScoreSubmissionStatus = models.ScoreStatusPendingVerification
		if err = tx.Matches().Update(ctx, match); err != nil {
			return err
		}

		event = models.NewMatchEvent(match, models.EventScoreSubmitted, map[string]any{
			"submission": submission,
		})
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}

	s.events.emit(ctx, event)
	return submission, nil
}

func (s *scoreService) VerifyScore(ctx context.Context, matchID, submissionID int, principal Principal, input VerifyScoreInput) (*VerifyScoreResult, error) {
	if !input.Action.Valid() {
		return nil, ErrInvalidVerifyAction
	}
	counter := input.Action == VerifyCounterPropose &&
		input.CounterParticipant1Score != nil && input.CounterParticipant2Score != nil
	if counter && (*input.CounterParticipant1Score < 0 || *input.CounterParticipant2Score < 0) {
		return nil, ErrInvalidScore
	}

	var result *VerifyScoreResult
	var events []models.MatchEvent

	err := s.store.InMatchTx(ctx, matchID, func(tx repositories.Tx) error {
		match, err := tx.Matches().GetByID(ctx, matchID)
		if err != nil {
			return err
		}
		access, err := s.access.Resolve(ctx, tx, match, principal)
		if err != nil {
			return err
		}
		if !access.Owner && !access.IsParticipant() {
			return ErrAccessDenied
		}
		submission, err := tx.Scores().GetSubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		if submission.MatchID != match.ID {
			return ErrSubmissionNotFound
		}
		if match.Status == models.MatchStatusCompleted || match.ScoreSubmissionStatus == models.ScoreStatusFinalized {
			return ErrMatchAlreadyCompleted
		}
		isCurrent := match.CurrentScoreSubmissionID != nil && *match.CurrentScoreSubmissionID == submission.ID
		if s.opts.RejectStaleVerification && !isCurrent {
			return ErrStaleSubmission
		}

		action := &models.ScoreVerificationAction{
			SubmissionID: submission.ID,
			ActorUserID:  principal.UserID,
			Notes:        input.Notes,
		}
		result = &VerifyScoreResult{Action: action, Match: match}

		if input.Action == VerifyCreatorFinalize {
			if !access.Owner {
				return ErrOwnerRequired
			}
			action.ActionType = models.ActionCreatorFinalize
			if err = tx.Scores().CreateAction(ctx, action); err != nil {
				return err
			}
			finalized, err := s.finalizer.Finalize(ctx, tx, match, submission)
			if err != nil {
				return err
			}
			result.Finalized = true
			events = append(events, s.verifiedEvent(match, submission, action), finalized)
			return nil
		}

		participantID, err := access.RequireParticipant()
		if err != nil {
			return err
		}
		if submission.SubmittedBy == participantID {
			return ErrOwnSubmission
		}
		action.ParticipantID = &participantID

		switch input.Action {
		case VerifyAccept:
			action.ActionType = models.ActionAccept
			if err = tx.Scores().CreateAction(ctx, action); err != nil {
				return err
			}
			events = append(events, s.verifiedEvent(match, submission, action))
			if s.opts.AutoFinalizeOnAccept && isCurrent {
				finalized, err := s.finalizer.Finalize(ctx, tx, match, submission)
				if err != nil {
					return err
				}
				result.Finalized = true
				events = append(events, finalized)
			}
			return nil

		default: // dispute, counter_propose
			action.ActionType = models.ActionDispute
			if err = tx.Scores().CreateAction(ctx, action); err != nil {
				return err
			}
			if counter {
				counterSubmission := &models.ScoreSubmission{
					MatchID:           match.ID,
					SubmittedBy:       participantID,
					Participant1Score: *input.CounterParticipant1Score,
					Participant2Score: *input.CounterParticipant2Score,
					Status:            models.SubmissionStatusPending,
					SubmissionType:    models.SubmissionTypeCounter,
					Notes:             input.Notes,
				}
				if err = s.replaceCurrent(ctx, tx, match, counterSubmission); err != nil {
					return err
				}
				result.CounterSubmission = counterSubmission
			}
			match.ScoreSubmissionStatus = models.ScoreStatusDisputed
			if err = tx.Matches().Update(ctx, match); err != nil {
				return err
			}
			events = append(events, s.verifiedEvent(match, submission, action))
			if result.CounterSubmission != nil {
				events = append(events, models.NewMatchEvent(match, models.EventScoreSubmitted, map[string]any{
					"submission": result.CounterSubmission,
				}))
			}
			return nil
		}
	})
	if err != nil {
		return nil, translateStoreError(err)
	}

	s.events.emit(ctx, events...)
	if result.Finalized {
		s.finalizer.Archive(ctx, matchID)
		s.logger.InfoContext(ctx, "match finalized",
			slog.Int("match_id", matchID), slog.Int("submission_id", submissionID), slog.String("action", string(input.Action)))
	}
	return result, nil
}

// replaceCurrent создает отправку, заменяет ею текущую и переставляет указатель матча.
// Сохранение матча остается за вызывающим кодом.
func (s *scoreService) replaceCurrent(ctx context.Context, tx repositories.Tx, match *models.Match, submission *models.ScoreSubmission) error {
	if match.CurrentScoreSubmissionID != nil {
		if err := supersede(ctx, tx, *match.CurrentScoreSubmissionID); err != nil {
			return err
		}
	}
	if err := tx.Scores().CreateSubmission(ctx, submission); err != nil {
		return fmt.Errorf("failed to create score submission: %w", err)
	}
	id := submission.ID
	match.CurrentScoreSubmissionID = &id
	return nil
}

func (s *scoreService) verifiedEvent(match *models.Match, submission *models.ScoreSubmission, action *models.ScoreVerificationAction) models.MatchEvent {
	return models.NewMatchEvent(match, models.EventScoreVerified, map[string]any{
		"submission_id":           submission.ID,
		"action":                  action,
		"score_submission_status": match.ScoreSubmissionStatus,
	})
}

func validateSubmitInput(input SubmitScoreInput) error {
	if input.Participant1Score < 0 || input.Participant2Score < 0 {
		return ErrInvalidScore
	}
	if input.GameNumber != nil && *input.GameNumber < 1 {
		return ErrInvalidGameMeta
	}
	if len(input.GameScores) > 0 && !json.Valid(input.GameScores) {
		return ErrInvalidGameMeta
	}
	return nil
}
