package models

import (
	"encoding/json"
	"time"
)

type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusActive    PhaseStatus = "active"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusSkipped   PhaseStatus = "skipped"
)

// TournamentPhase - шаблон этапа (пик/бан карт, персонажей и т.п.).
type TournamentPhase struct {
	ID               int       `json:"id" db:"id"`
	TournamentID     int       `json:"tournament_id" db:"tournament_id"`
	Name             string    `json:"name" db:"name"`
	PhaseType        string    `json:"phase_type" db:"phase_type"`
	Position         int       `json:"position" db:"position"`
	TurnBased        bool      `json:"turn_based" db:"turn_based"`
	MaxSelections    int       `json:"max_selections" db:"max_selections"`
	TimeLimitSeconds int       `json:"time_limit_seconds" db:"time_limit_seconds"`
	IsEnabled        bool      `json:"is_enabled" db:"is_enabled"`
	IsOptional       bool      `json:"is_optional" db:"is_optional"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// MatchPhase - живой экземпляр шаблона для конкретного матча.
// Правила шаблона копируются при создании, чтобы правка шаблона
// не меняла уже идущие матчи.
type MatchPhase struct {
	ID                       int         `json:"id" db:"id"`
	MatchID                  int         `json:"match_id" db:"match_id"`
	TemplateID               int         `json:"template_id" db:"template_id"`
	Name                     string      `json:"name" db:"name"`
	PhaseType                string      `json:"phase_type" db:"phase_type"`
	Position                 int         `json:"position" db:"position"`
	TurnBased                bool        `json:"turn_based" db:"turn_based"`
	MaxSelections            int         `json:"max_selections" db:"max_selections"`
	TimeLimitSeconds         int         `json:"time_limit_seconds" db:"time_limit_seconds"`
	IsEnabled                bool        `json:"is_enabled" db:"is_enabled"`
	IsOptional               bool        `json:"is_optional" db:"is_optional"`
	Status                   PhaseStatus `json:"phase_status" db:"phase_status"`
	CurrentTurnParticipantID *int        `json:"current_turn_participant_id,omitempty" db:"current_turn_participant_id"`
	TimeRemaining            int         `json:"time_remaining" db:"time_remaining"`
	TurnStartedAt            *time.Time  `json:"turn_started_at,omitempty" db:"turn_started_at"`
	CompletedAt              *time.Time  `json:"completed_at,omitempty" db:"completed_at"`

	Selections []PhaseSelection `json:"selections,omitempty" db:"-"`
}

// NewMatchPhase создает pending-экземпляр этапа из шаблона.
func NewMatchPhase(matchID int, t *TournamentPhase) *MatchPhase {
	return &MatchPhase{
		MatchID:          matchID,
		TemplateID:       t.ID,
		Name:             t.Name,
		PhaseType:        t.PhaseType,
		Position:         t.Position,
		TurnBased:        t.TurnBased,
		MaxSelections:    t.MaxSelections,
		TimeLimitSeconds: t.TimeLimitSeconds,
		IsEnabled:        t.IsEnabled,
		IsOptional:       t.IsOptional,
		Status:           PhaseStatusPending,
		TimeRemaining:    t.TimeLimitSeconds,
	}
}

// TurnDeadline - момент истечения текущего хода; ok=false, если таймера нет.
func (p *MatchPhase) TurnDeadline() (deadline time.Time, ok bool) {
	if !p.TurnBased || p.TimeLimitSeconds <= 0 || p.TurnStartedAt == nil {
		return time.Time{}, false
	}
	return p.TurnStartedAt.Add(time.Duration(p.TimeLimitSeconds) * time.Second), true
}

type PhaseSelection struct {
	ID             int             `json:"id" db:"id"`
	MatchPhaseID   int             `json:"match_phase_id" db:"match_phase_id"`
	ParticipantID  int             `json:"participant_id" db:"participant_id"`
	SelectionType  string          `json:"selection_type" db:"selection_type"`
	SelectionData  json.RawMessage `json:"selection_data" db:"selection_data"`
	SelectionOrder int             `json:"selection_order" db:"selection_order"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
