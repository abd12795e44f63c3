package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type MatchEventType string

const (
	EventMatchStarted         MatchEventType = "match_started"
	EventReadyChanged         MatchEventType = "ready_changed"
	EventSelectionMade        MatchEventType = "selection_made"
	EventPhaseSkipped         MatchEventType = "phase_skipped"
	EventTurnPassed           MatchEventType = "turn_passed"
	EventScoreSubmitted       MatchEventType = "score_submitted"
	EventScoreVerified        MatchEventType = "score_verified"
	EventMatchFinalized       MatchEventType = "match_finalized"
	EventAccessLinksGenerated MatchEventType = "access_links_generated"
)

// MatchEvent - типизированное сообщение "матч обновлен".
// Одновременно рассылается наблюдателям и пишется в журнал аудита.
type MatchEvent struct {
	ID           string          `json:"id" db:"id"`
	MatchID      int             `json:"match_id" db:"match_id"`
	TournamentID int             `json:"tournament_id" db:"tournament_id"`
	Type         MatchEventType  `json:"type" db:"event_type"`
	Payload      json.RawMessage `json:"payload,omitempty" db:"payload"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// NewMatchEvent собирает событие; payload сериализуется в JSON.
// Ошибка сериализации не фатальна: событие уходит без payload.
func NewMatchEvent(match *Match, eventType MatchEventType, payload any) MatchEvent {
	ev := MatchEvent{
		ID:           uuid.NewString(),
		MatchID:      match.ID,
		TournamentID: match.TournamentID,
		Type:         eventType,
		CreatedAt:    time.Now().UTC(),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}

// Room - имя комнаты наблюдателей матча.
func (e MatchEvent) Room() string {
	return MatchRoom(e.MatchID)
}
