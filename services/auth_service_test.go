package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
)

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := store.Users().Create(ctx, &models.User{Email: "Org@Example.com", DisplayName: "Org", PasswordHash: string(hash)}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc := NewAuthService(store.Users())

	tests := []struct {
		name    string
		input   LoginInput
		wantErr error
	}{
		{"valid credentials", LoginInput{Email: " org@example.com ", Password: "s3cret"}, nil},
		{"wrong password", LoginInput{Email: "org@example.com", Password: "nope"}, ErrInvalidCredentials},
		{"unknown email", LoginInput{Email: "ghost@example.com", Password: "s3cret"}, ErrInvalidCredentials},
		{"missing password", LoginInput{Email: "org@example.com"}, ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Login(ctx, tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login: %v", err)
			}
			if user.PasswordHash != "" {
				t.Error("password hash returned to caller")
			}
		})
	}
}

func TestEmailService_RendersAccessLink(t *testing.T) {
	svc, err := NewEmailService(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("NewEmailService: %v", err)
	}

	body, err := svc.GenerateEmailBody("access_link_email.html", AccessEmail{
		ParticipantName: "Alice",
		TournamentName:  "Spring Cup",
		Round:           2,
		MatchNumber:     5,
		Link:            "https://play.example.com/matches/7?token=abc",
	})
	if err != nil {
		t.Fatalf("GenerateEmailBody: %v", err)
	}
	for _, want := range []string{"Alice", "Spring Cup", "https://play.example.com/matches/7?token=abc"} {
		if !strings.Contains(body, want) {
			t.Errorf("body does not contain %q", want)
		}
	}
}

func TestSMTPConfig_Configured(t *testing.T) {
	if (SMTPConfig{Host: "smtp.example.com", Port: 587}).Configured() {
		t.Error("config without sender reported as configured")
	}
	if !(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "a@example.com"}).Configured() {
		t.Error("complete config reported as not configured")
	}
}
