package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
)

type SelectionInput struct {
	SelectionType string          `json:"selection_type"`
	SelectionData json.RawMessage `json:"selection_data"`
}

type StartMatchResult struct {
	Match        *models.Match `json:"match"`
	FirstPhaseID *int          `json:"first_phase_id"`
}

type SelectionResult struct {
	Selection     *models.PhaseSelection `json:"selection"`
	CurrentPhase  *models.MatchPhase     `json:"current_phase"`
	TimeRemaining int                    `json:"time_remaining"`
	PhaseComplete bool                   `json:"phase_complete"`
	MatchStatus   models.MatchStatus     `json:"match_status"`
}

type PhaseEngine interface {
	StartMatch(ctx context.Context, matchID int, principal Principal) (*StartMatchResult, error)
	MakeSelection(ctx context.Context, matchID, phaseID int, principal Principal, input SelectionInput) (*SelectionResult, error)
	SkipPhase(ctx context.Context, matchID, phaseID int, principal Principal) (*models.MatchPhase, error)
	// PassExpiredTurns передает ход в этапах с истекшим таймером (политика pass_turn).
	PassExpiredTurns(ctx context.Context) (int, error)
}

type phaseEngine struct {
	store  repositories.Store
	access AccessResolver
	tokens *tokenIssuer
	events *eventEmitter
	opts   Options
	logger *slog.Logger
}

func NewPhaseEngine(
	store repositories.Store,
	access AccessResolver,
	publisher EventPublisher,
	opts Options,
	logger *slog.Logger,
) PhaseEngine {
	return &phaseEngine{
		store:  store,
		access: access,
		tokens: newTokenIssuer(opts),
		events: newEventEmitter(store, publisher, logger),
		opts:   opts,
		logger: logger,
	}
}

func (s *phaseEngine) StartMatch(ctx context.Context, matchID int, principal Principal) (*StartMatchResult, error) {
	var result *StartMatchResult
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
			return ErrStartForbidden
		}
		if match.Status != models.MatchStatusPending {
			return ErrMatchAlreadyStarted
		}

		now := s.opts.now()
		match.Status = models.MatchStatusInProgress
		match.StartedAt = &now

		templates, err := tx.Phases().ListTemplates(ctx, match.TournamentID)
		if err != nil {
			return fmt.Errorf("failed to list phase templates: %w", err)
		}
		phases := make([]*models.MatchPhase, 0, len(templates))
		for _, t := range templates {
			mp := models.NewMatchPhase(match.ID, t)
			if err = tx.Phases().CreateMatchPhase(ctx, mp); err != nil {
				return fmt.Errorf("failed to instantiate phase %q: %w", t.Name, err)
			}
			phases = append(phases, mp)
		}

		active, skipped, err := s.activateNext(ctx, tx, match, phases, now)
		if err != nil {
			return err
		}
		if err = s.tokens.ensureCurrent(ctx, tx, match); err != nil {
			return err
		}
		if err = tx.Matches().Update(ctx, match); err != nil {
			return fmt.Errorf("failed to update match %d: %w", match.ID, err)
		}

		result = &StartMatchResult{Match: match}
		if active != nil {
			result.FirstPhaseID = &active.ID
		}
		events = append(events, models.NewMatchEvent(match, models.EventMatchStarted, map[string]any{
			"first_phase_id": result.FirstPhaseID,
			"phase_count":    len(phases),
			"status":         match.Status,
		}))
		events = append(events, skipped...)
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}

	s.events.emit(ctx, events...)
	s.logger.InfoContext(ctx, "match started", slog.Int("match_id", matchID), slog.String("status", string(result.Match.Status)))
	return result, nil
}

func (s *phaseEngine) MakeSelection(ctx context.Context, matchID, phaseID int, principal Principal, input SelectionInput) (*SelectionResult, error) {
	var result *SelectionResult
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
		participantID, err := access.RequireParticipant()
		if err != nil {
			return err
		}
		phase, err := s.matchPhase(ctx, tx, match.ID, phaseID)
		if err != nil {
			return err
		}

		// У завершенного матча этапов больше нет, даже если этап не успел закрыться.
		if phase.Status != models.PhaseStatusActive || match.Status == models.MatchStatusCompleted {
			return ErrPhaseNotActive
		}
		if phase.TurnBased && (phase.CurrentTurnParticipantID == nil || *phase.CurrentTurnParticipantID != participantID) {
			return ErrNotYourTurn
		}
		count, err := tx.Selections().CountByParticipant(ctx, phase.ID, participantID)
		if err != nil {
			return err
		}
		if count >= phase.MaxSelections {
			return ErrSelectionLimitReached
		}
		if !validSelection(input) {
			return ErrInvalidSelection
		}

		selection := &models.PhaseSelection{
			MatchPhaseID:   phase.ID,
			ParticipantID:  participantID,
			SelectionType:  strings.TrimSpace(input.SelectionType),
			SelectionData:  input.SelectionData,
			SelectionOrder: count + 1,
		}
		if err = tx.Selections().Create(ctx, selection); err != nil {
			return err
		}

		total, err := tx.Selections().CountByPhase(ctx, phase.ID)
		if err != nil {
			return err
		}

		now := s.opts.now()
		current := phase
		phaseComplete := total >= phase.MaxSelections*match.FilledSlots()
		switch {
		case phaseComplete:
			completePhase(phase, models.PhaseStatusCompleted, now)
			if err = tx.Phases().UpdateMatchPhase(ctx, phase); err != nil {
				return err
			}
			next, skipped, err := s.activateRemaining(ctx, tx, match, now)
			if err != nil {
				return err
			}
			if err = tx.Matches().Update(ctx, match); err != nil {
				return err
			}
			events = append(events, skipped...)
			current = next
		case phase.TurnBased:
			if opponent := match.Opponent(participantID); opponent != nil {
				next := *opponent
				phase.CurrentTurnParticipantID = &next
			}
			phase.TimeRemaining = phase.TimeLimitSeconds
			phase.TurnStartedAt = &now
			if err = tx.Phases().UpdateMatchPhase(ctx, phase); err != nil {
				return err
			}
		}

		result = &SelectionResult{
			Selection:     selection,
			CurrentPhase:  current,
			TimeRemaining: remainingSeconds(current, now),
			PhaseComplete: phaseComplete,
			MatchStatus:   match.Status,
		}
		events = append([]models.MatchEvent{models.NewMatchEvent(match, models.EventSelectionMade, map[string]any{
			"phase_id":       phase.ID,
			"participant_id": participantID,
			"selection":      selection,
			"phase_complete": phaseComplete,
		})}, events...)
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}

	s.events.emit(ctx, events...)
	return result, nil
}

func (s *phaseEngine) SkipPhase(ctx context.Context, matchID, phaseID int, principal Principal) (*models.MatchPhase, error) {
	var current *models.MatchPhase
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
			return ErrParticipantRequired
		}
		phase, err := s.matchPhase(ctx, tx, match.ID, phaseID)
		if err != nil {
			return err
		}
		if phase.Status != models.PhaseStatusActive || match.Status == models.MatchStatusCompleted {
			return ErrPhaseNotActive
		}
		if !phase.IsOptional {
			return ErrPhaseNotOptional
		}

		now := s.opts.now()
		completePhase(phase, models.PhaseStatusSkipped, now)
		if err = tx.Phases().UpdateMatchPhase(ctx, phase); err != nil {
			return err
		}
		events = append(events, models.NewMatchEvent(match, models.EventPhaseSkipped, map[string]any{
			"phase_id": phase.ID,
			"reason":   "explicit",
		}))

		next, skipped, err := s.activateRemaining(ctx, tx, match, now)
		if err != nil {
			return err
		}
		if err = tx.Matches().Update(ctx, match); err != nil {
			return err
		}
		events = append(events, skipped...)
		current = next
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}

	s.events.emit(ctx, events...)
	return current, nil
}

func (s *phaseEngine) PassExpiredTurns(ctx context.Context) (int, error) {
	if s.opts.TurnTimeout != TurnTimeoutPassTurn {
		return 0, nil
	}

	now := s.opts.now()
	expired, err := s.store.Phases().ListExpiredTurns(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired turns: %w", err)
	}

	passed := 0
	for _, candidate := range expired {
		var event *models.MatchEvent
		err := s.store.InMatchTx(ctx, candidate.MatchID, func(tx repositories.Tx) error {
			phase, err := tx.Phases().GetMatchPhase(ctx, candidate.ID)
			if err != nil {
				return err
			}
			// Состояние могло измениться между выборкой и блокировкой матча.
			deadline, ok := phase.TurnDeadline()
			if phase.Status != models.PhaseStatusActive || !ok || deadline.After(now) {
				return nil
			}
			match, err := tx.Matches().GetByID(ctx, phase.MatchID)
			if err != nil {
				return err
			}
			if match.Status == models.MatchStatusCompleted {
				return nil
			}

			from := phase.CurrentTurnParticipantID
			var to *int
			if from != nil {
				to = match.Opponent(*from)
			} else if ids := match.ParticipantIDs(); len(ids) > 0 {
				to = &ids[0]
			}
			if to != nil {
				next := *to
				phase.CurrentTurnParticipantID = &next
			}
			phase.TimeRemaining = phase.TimeLimitSeconds
			phase.TurnStartedAt = &now
			if err = tx.Phases().UpdateMatchPhase(ctx, phase); err != nil {
				return err
			}

			ev := models.NewMatchEvent(match, models.EventTurnPassed, map[string]any{
				"phase_id": phase.ID,
				"from":     from,
				"to":       phase.CurrentTurnParticipantID,
			})
			event = &ev
			return nil
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to pass expired turn",
				slog.Int("match_id", candidate.MatchID), slog.Int("phase_id", candidate.ID), slog.Any("error", err))
			continue
		}
		if event != nil {
			s.events.emit(ctx, *event)
			passed++
		}
	}
	return passed, nil
}

func (s *phaseEngine) matchPhase(ctx context.Context, tx repositories.Tx, matchID, phaseID int) (*models.MatchPhase, error) {
	phase, err := tx.Phases().GetMatchPhase(ctx, phaseID)
	if err != nil {
		return nil, err
	}
	if phase.MatchID != matchID {
		return nil, ErrPhaseNotFound
	}
	return phase, nil
}

// activateRemaining перечитывает этапы матча и активирует следующий ожидающий.
func (s *phaseEngine) activateRemaining(ctx context.Context, tx repositories.Tx, match *models.Match, now time.Time) (*models.MatchPhase, []models.MatchEvent, error) {
	phases, err := tx.Phases().ListMatchPhases(ctx, match.ID)
	if err != nil {
		return nil, nil, err
	}
	return s.activateNext(ctx, tx, match, phases, now)
}

// activateNext активирует первый подходящий pending-этап по позиции.
// Отключенные этапы пропускаются всегда, необязательные - только при SkipOptionalPhases.
// Этап без емкости (max_selections × занятые слоты = 0) завершается сразу.
// Если активировать нечего, матч переходит в ready_for_score.
// Изменение статуса матча сохраняет вызывающий код.
func (s *phaseEngine) activateNext(ctx context.Context, tx repositories.Tx, match *models.Match, phases []*models.MatchPhase, now time.Time) (*models.MatchPhase, []models.MatchEvent, error) {
	sort.SliceStable(phases, func(i, j int) bool { return phases[i].Position < phases[j].Position })

	var events []models.MatchEvent
	for _, phase := range phases {
		if phase.Status != models.PhaseStatusPending {
			continue
		}

		reason := ""
		switch {
		case !phase.IsEnabled:
			reason = "disabled"
		case phase.IsOptional && s.opts.SkipOptionalPhases:
			reason = "optional"
		case phase.MaxSelections*match.FilledSlots() <= 0:
			reason = "no_capacity"
		}
		if reason != "" {
			completePhase(phase, models.PhaseStatusSkipped, now)
			if err := tx.Phases().UpdateMatchPhase(ctx, phase); err != nil {
				return nil, nil, err
			}
			events = append(events, models.NewMatchEvent(match, models.EventPhaseSkipped, map[string]any{
				"phase_id": phase.ID,
				"reason":   reason,
			}))
			continue
		}

		phase.Status = models.PhaseStatusActive
		phase.TimeRemaining = phase.TimeLimitSeconds
		phase.TurnStartedAt = &now
		phase.CurrentTurnParticipantID = nil
		if phase.TurnBased {
			if ids := match.ParticipantIDs(); len(ids) > 0 {
				first := ids[0]
				phase.CurrentTurnParticipantID = &first
			}
		}
		if err := tx.Phases().UpdateMatchPhase(ctx, phase); err != nil {
			return nil, nil, err
		}
		return phase, events, nil
	}

	match.Status = models.MatchStatusReadyForScore
	return nil, events, nil
}

func completePhase(phase *models.MatchPhase, status models.PhaseStatus, now time.Time) {
	phase.Status = status
	phase.CompletedAt = &now
	phase.CurrentTurnParticipantID = nil
	phase.TurnStartedAt = nil
	phase.TimeRemaining = 0
}

func validSelection(input SelectionInput) bool {
	if strings.TrimSpace(input.SelectionType) == "" {
		return false
	}
	data := strings.TrimSpace(string(input.SelectionData))
	if data == "" || data == "null" {
		return false
	}
	return json.Valid(input.SelectionData)
}

// remainingSeconds - остаток времени хода; без таймера возвращает сохраненное значение.
func remainingSeconds(phase *models.MatchPhase, now time.Time) int {
	if phase == nil {
		return 0
	}
	deadline, ok := phase.TurnDeadline()
	if !ok {
		return phase.TimeRemaining
	}
	left := int(deadline.Sub(now).Round(time.Second) / time.Second)
	if left < 0 {
		return 0
	}
	return left
}
