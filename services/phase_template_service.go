package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
)

const maxPhaseNameLength = 100

type PhaseTemplateInput struct {
	Name             string `json:"name"`
	PhaseType        string `json:"phase_type"`
	TurnBased        bool   `json:"turn_based"`
	MaxSelections    int    `json:"max_selections"`
	TimeLimitSeconds int    `json:"time_limit_seconds"`
	IsEnabled        *bool  `json:"is_enabled,omitempty"`
	IsOptional       bool   `json:"is_optional"`
}

// PhaseTemplateService управляет шаблонами этапов турнира. Доступно только владельцу.
// Изменения шаблонов не затрагивают уже начатые матчи: правила копируются при старте.
type PhaseTemplateService interface {
	ListTemplates(ctx context.Context, tournamentID int, principal Principal) ([]*models.TournamentPhase, error)
	CreateTemplate(ctx context.Context, tournamentID int, principal Principal, input PhaseTemplateInput) (*models.TournamentPhase, error)
	DeleteTemplate(ctx context.Context, tournamentID, phaseID int, principal Principal) error
}

type phaseTemplateService struct {
	store repositories.Store
}

func NewPhaseTemplateService(store repositories.Store) PhaseTemplateService {
	return &phaseTemplateService{store: store}
}

func (s *phaseTemplateService) ListTemplates(ctx context.Context, tournamentID int, principal Principal) ([]*models.TournamentPhase, error) {
	if err := s.checkOwner(ctx, tournamentID, principal); err != nil {
		return nil, err
	}
	templates, err := s.store.Phases().ListTemplates(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phase templates for tournament %d: %w", tournamentID, err)
	}
	return templates, nil
}

func (s *phaseTemplateService) CreateTemplate(ctx context.Context, tournamentID int, principal Principal, input PhaseTemplateInput) (*models.TournamentPhase, error) {
	if err := s.checkOwner(ctx, tournamentID, principal); err != nil {
		return nil, err
	}
	if err := validatePhaseTemplate(input); err != nil {
		return nil, err
	}

	enabled := true
	if input.IsEnabled != nil {
		enabled = *input.IsEnabled
	}
	template := &models.TournamentPhase{
		TournamentID:     tournamentID,
		Name:             strings.TrimSpace(input.Name),
		PhaseType:        strings.TrimSpace(input.PhaseType),
		TurnBased:        input.TurnBased,
		MaxSelections:    input.MaxSelections,
		TimeLimitSeconds: input.TimeLimitSeconds,
		IsEnabled:        enabled,
		IsOptional:       input.IsOptional,
	}
	if err := s.store.Phases().CreateTemplate(ctx, template); err != nil {
		if errors.Is(err, repositories.ErrPhasePositionConflict) {
			return nil, fmt.Errorf("%w: concurrent phase creation, retry", ErrConflict)
		}
		return nil, translateStoreError(err)
	}
	return template, nil
}

func (s *phaseTemplateService) DeleteTemplate(ctx context.Context, tournamentID, phaseID int, principal Principal) error {
	if err := s.checkOwner(ctx, tournamentID, principal); err != nil {
		return err
	}
	return translateStoreError(s.store.Phases().DeleteTemplate(ctx, tournamentID, phaseID))
}

func (s *phaseTemplateService) checkOwner(ctx context.Context, tournamentID int, principal Principal) error {
	if principal.UserID == nil {
		return ErrAuthenticationRequired
	}
	tournament, err := s.store.Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return translateStoreError(err)
	}
	if tournament.CreatorID != *principal.UserID {
		return ErrOwnerRequired
	}
	return nil
}

func validatePhaseTemplate(input PhaseTemplateInput) error {
	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", ErrPhaseTemplateInvalid)
	case len(name) > maxPhaseNameLength:
		return fmt.Errorf("%w: name must be at most %d characters", ErrPhaseTemplateInvalid, maxPhaseNameLength)
	case strings.TrimSpace(input.PhaseType) == "":
		return fmt.Errorf("%w: phase_type is required", ErrPhaseTemplateInvalid)
	case input.MaxSelections < 1:
		return fmt.Errorf("%w: max_selections must be positive", ErrPhaseTemplateInvalid)
	case input.TimeLimitSeconds < 0:
		return fmt.Errorf("%w: time_limit_seconds must not be negative", ErrPhaseTemplateInvalid)
	}
	return nil
}
