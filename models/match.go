package models

import (
	"strconv"
	"time"
)

type MatchStatus string

const (
	MatchStatusPending       MatchStatus = "pending"
	MatchStatusInProgress    MatchStatus = "in_progress"
	MatchStatusReadyForScore MatchStatus = "ready_for_score"
	MatchStatusCompleted     MatchStatus = "completed"
	MatchStatusDisputed      MatchStatus = "disputed"
	MatchStatusForfeit       MatchStatus = "forfeit"
)

// ScoreSubmissionStatus отражает состояние согласования счета матча.
// Пустое значение означает, что счет еще не отправлялся.
type ScoreSubmissionStatus string

const (
	ScoreStatusNone                ScoreSubmissionStatus = ""
	ScoreStatusPendingVerification ScoreSubmissionStatus = "pending_verification"
	ScoreStatusDisputed            ScoreSubmissionStatus = "disputed"
	ScoreStatusFinalized           ScoreSubmissionStatus = "finalized"
)

// Slot - сторона матча (1 или 2).
type Slot int

const (
	SlotNone Slot = 0
	Slot1    Slot = 1
	Slot2    Slot = 2
)

type Match struct {
	ID                       int                   `json:"id" db:"id"`
	TournamentID             int                   `json:"tournament_id" db:"tournament_id"`
	Round                    int                   `json:"round" db:"round"`
	MatchNumber              int                   `json:"match_number" db:"match_number"`
	BracketTag               *string               `json:"bracket_tag,omitempty" db:"bracket_tag"`
	Participant1ID           *int                  `json:"participant1_id,omitempty" db:"participant1_id"`
	Participant2ID           *int                  `json:"participant2_id,omitempty" db:"participant2_id"`
	WinnerID                 *int                  `json:"winner_id,omitempty" db:"winner_id"`
	Status                   MatchStatus           `json:"status" db:"status"`
	Participant1Ready        bool                  `json:"participant1_ready" db:"participant1_ready"`
	Participant2Ready        bool                  `json:"participant2_ready" db:"participant2_ready"`
	StartedAt                *time.Time            `json:"started_at,omitempty" db:"started_at"`
	CompletedAt              *time.Time            `json:"completed_at,omitempty" db:"completed_at"`
	CurrentScoreSubmissionID *int                  `json:"current_score_submission_id,omitempty" db:"current_score_submission_id"`
	ScoreSubmissionStatus    ScoreSubmissionStatus `json:"score_submission_status" db:"score_submission_status"`
	CreatedAt                time.Time             `json:"created_at" db:"created_at"`
}

// SlotOf возвращает сторону, которую занимает участник, или SlotNone.
func (m *Match) SlotOf(participantID int) Slot {
	switch {
	case m.Participant1ID != nil && *m.Participant1ID == participantID:
		return Slot1
	case m.Participant2ID != nil && *m.Participant2ID == participantID:
		return Slot2
	default:
		return SlotNone
	}
}

// Opponent возвращает участника противоположной стороны (nil, если слот пуст).
func (m *Match) Opponent(participantID int) *int {
	switch m.SlotOf(participantID) {
	case Slot1:
		return m.Participant2ID
	case Slot2:
		return m.Participant1ID
	default:
		return nil
	}
}

// ParticipantIDs возвращает занятые слоты в порядке 1, 2.
func (m *Match) ParticipantIDs() []int {
	ids := make([]int, 0, 2)
	if m.Participant1ID != nil {
		ids = append(ids, *m.Participant1ID)
	}
	if m.Participant2ID != nil {
		ids = append(ids, *m.Participant2ID)
	}
	return ids
}

// FilledSlots - количество занятых сторон (0..2).
func (m *Match) FilledSlots() int {
	return len(m.ParticipantIDs())
}

// MatchRoom - имя комнаты, в которую рассылаются события матча.
func MatchRoom(matchID int) string {
	return "match_" + strconv.Itoa(matchID)
}
