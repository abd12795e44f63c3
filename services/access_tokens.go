package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
)

const (
	accessTokenLength      = 32 // байт, 43 символа в base64url
	accessTokenMaxAttempts = 3
)

func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// tokenIssuer выпускает токены доступа участников внутри транзакции матча.
type tokenIssuer struct {
	opts Options
	// generate подменяется в тестах, чтобы спровоцировать конфликт токенов.
	generate func(length int) (string, error)
}

func newTokenIssuer(opts Options) *tokenIssuer {
	return &tokenIssuer{opts: opts, generate: generateSecureToken}
}

func (t *tokenIssuer) issue(ctx context.Context, tx repositories.Tx, matchID, participantID int) (*models.ParticipantPrivilege, error) {
	var lastErr error
	for attempt := 0; attempt < accessTokenMaxAttempts; attempt++ {
		token, err := t.generate(accessTokenLength)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAccessTokenGeneration, err)
		}

		priv := &models.ParticipantPrivilege{
			MatchID:       matchID,
			ParticipantID: participantID,
			Token:         token,
			ExpiresAt:     t.opts.now().Add(t.opts.tokenTTL()),
			IsActive:      true,
		}
		err = tx.Privileges().Create(ctx, priv)
		if err == nil {
			return priv, nil
		}
		if !errors.Is(err, repositories.ErrPrivilegeTokenConflict) {
			if errors.Is(err, repositories.ErrPrivilegeParticipantInvalid) {
				return nil, ErrParticipantNotFound
			}
			return nil, fmt.Errorf("failed to create access token for participant %d: %w", participantID, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrAccessTokenGeneration, accessTokenMaxAttempts, lastErr)
}

// ensureCurrent выпускает токены для занятых слотов, у которых нет действующего.
func (t *tokenIssuer) ensureCurrent(ctx context.Context, tx repositories.Tx, match *models.Match) error {
	now := t.opts.now()
	for _, pid := range match.ParticipantIDs() {
		_, err := tx.Privileges().GetCurrent(ctx, match.ID, pid, now)
		if err == nil {
			continue
		}
		if !errors.Is(err, repositories.ErrPrivilegeNotFound) {
			return fmt.Errorf("failed to look up access token of participant %d: %w", pid, err)
		}
		if _, err = t.issue(ctx, tx, match.ID, pid); err != nil {
			return err
		}
	}
	return nil
}
