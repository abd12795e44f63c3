package models

import (
	"encoding/json"
	"time"
)

type SubmissionStatus string

const (
	SubmissionStatusPending    SubmissionStatus = "pending"
	SubmissionStatusAccepted   SubmissionStatus = "accepted"
	SubmissionStatusSuperseded SubmissionStatus = "superseded"
)

type SubmissionType string

const (
	SubmissionTypeInitial    SubmissionType = "initial"
	SubmissionTypeGameResult SubmissionType = "game_result"
	SubmissionTypeCounter    SubmissionType = "counter"
)

type ScoreSubmission struct {
	ID                int              `json:"id" db:"id"`
	MatchID           int              `json:"match_id" db:"match_id"`
	SubmittedBy       int              `json:"submitted_by" db:"submitted_by"`
	Participant1Score int              `json:"participant1_score" db:"participant1_score"`
	Participant2Score int              `json:"participant2_score" db:"participant2_score"`
	Status            SubmissionStatus `json:"status" db:"status"`
	SubmissionType    SubmissionType   `json:"submission_type" db:"submission_type"`
	GameNumber        *int             `json:"game_number,omitempty" db:"game_number"`
	GameScores        json.RawMessage  `json:"game_scores,omitempty" db:"game_scores"`
	Notes             *string          `json:"notes,omitempty" db:"notes"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`

	Actions []ScoreVerificationAction `json:"actions,omitempty" db:"-"`
}

type VerificationActionType string

const (
	ActionAccept          VerificationActionType = "accept"
	ActionDispute         VerificationActionType = "dispute"
	ActionCreatorFinalize VerificationActionType = "creator_finalize"
)

// ScoreVerificationAction - запись журнала проверки счета. Только добавление.
type ScoreVerificationAction struct {
	ID            int                    `json:"id" db:"id"`
	SubmissionID  int                    `json:"submission_id" db:"submission_id"`
	ParticipantID *int                   `json:"participant_id" db:"participant_id"`
	ActorUserID   *int                   `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActionType    VerificationActionType `json:"action_type" db:"action_type"`
	Notes         *string                `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
}
