package models

import "time"

// ParticipantPrivilege - токен доступа участника к матчу без входа на платформу.
type ParticipantPrivilege struct {
	ID              int        `json:"id" db:"id"`
	MatchID         int        `json:"match_id" db:"match_id"`
	ParticipantID   int        `json:"participant_id" db:"participant_id"`
	Token           string     `json:"-" db:"token"`
	ExpiresAt       time.Time  `json:"expires_at" db:"expires_at"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	LastEmailSentAt *time.Time `json:"last_email_sent_at,omitempty" db:"last_email_sent_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Usable сообщает, дает ли токен доступ в момент now.
func (p *ParticipantPrivilege) Usable(now time.Time) bool {
	return p != nil && p.IsActive && now.Before(p.ExpiresAt)
}
