package models

import "time"

// Tournament - минимальная модель турнира, нужная комнате матча.
type Tournament struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatorID int       `json:"creator_id" db:"creator_id"`
	IsPublic  bool      `json:"is_public" db:"is_public"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Participant struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	UserID       *int      `json:"user_id,omitempty" db:"user_id"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	Email        *string   `json:"-" db:"email"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// OwnedBy сообщает, привязан ли участник к пользователю платформы.
func (p *Participant) OwnedBy(userID int) bool {
	return p != nil && p.UserID != nil && *p.UserID == userID
}

type User struct {
	ID           int       `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
