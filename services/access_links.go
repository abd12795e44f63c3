package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
)

type AccessLink struct {
	ParticipantID int       `json:"participant_id"`
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expires_at"`
	URL           string    `json:"url"`
}

type AccessEmailResult struct {
	ParticipantID int       `json:"participant_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	SentAt        time.Time `json:"sent_at"`
}

type AccessLinkService interface {
	// GenerateAccessLinks деактивирует все прежние токены матча и выпускает новые.
	GenerateAccessLinks(ctx context.Context, matchID int, principal Principal) ([]AccessLink, error)
	SendAccessEmail(ctx context.Context, matchID, participantID int, principal Principal) (*AccessEmailResult, error)
	// DeactivateExpired - фоновая очистка истекших токенов.
	DeactivateExpired(ctx context.Context) (int64, error)
}

type accessLinkService struct {
	store  repositories.Store
	access AccessResolver
	tokens *tokenIssuer
	mailer Mailer
	events *eventEmitter
	opts   Options
	logger *slog.Logger
}

func NewAccessLinkService(
	store repositories.Store,
	access AccessResolver,
	mailer Mailer,
	publisher EventPublisher,
	opts Options,
	logger *slog.Logger,
) AccessLinkService {
	return &accessLinkService{
		store:  store,
		access: access,
		tokens: newTokenIssuer(opts),
		mailer: mailer,
		events: newEventEmitter(store, publisher, logger),
		opts:   opts,
		logger: logger,
	}
}

func (s *accessLinkService) GenerateAccessLinks(ctx context.Context, matchID int, principal Principal) ([]AccessLink, error) {
	var links []AccessLink
	var event models.MatchEvent

	err := s.store.InMatchTx(ctx, matchID, func(tx repositories.Tx) error {
		match, err := s.ownedMatch(ctx, tx, matchID, principal)
		if err != nil {
			return err
		}

		deactivated, err := tx.Privileges().DeactivateByMatch(ctx, match.ID)
		if err != nil {
			return err
		}

		links = make([]AccessLink, 0, 2)
		expires := make(map[int]time.Time, 2)
		for _, pid := range match.ParticipantIDs() {
			priv, err := s.tokens.issue(ctx, tx, match.ID, pid)
			if err != nil {
				return err
			}
			links = append(links, AccessLink{
				ParticipantID: pid,
				Token:         priv.Token,
				ExpiresAt:     priv.ExpiresAt,
				URL:           s.accessURL(match.ID, priv.Token),
			})
			expires[pid] = priv.ExpiresAt
		}

		// Сами токены в событие не попадают: его видят наблюдатели.
		event = models.NewMatchEvent(match, models.EventAccessLinksGenerated, map[string]any{
			"participants": expires,
			"deactivated":  deactivated,
		})
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}

	s.events.emit(ctx, event)
	return links, nil
}

func (s *accessLinkService) SendAccessEmail(ctx context.Context, matchID, participantID int, principal Principal) (*AccessEmailResult, error) {
	var email AccessEmail
	var privilegeID int

	err := s.store.InMatchTx(ctx, matchID, func(tx repositories.Tx) error {
		match, err := s.ownedMatch(ctx, tx, matchID, principal)
		if err != nil {
			return err
		}
		if match.SlotOf(participantID) == models.SlotNone {
			return ErrParticipantNotInMatch
		}
		participant, err := tx.Participants().GetByID(ctx, participantID)
		if err != nil {
			return err
		}
		if participant.Email == nil || strings.TrimSpace(*participant.Email) == "" {
			return ErrParticipantNoEmail
		}
		tournament, err := tx.Tournaments().GetByID(ctx, match.TournamentID)
		if err != nil {
			return err
		}

		now := s.opts.now()
		priv, err := tx.Privileges().GetCurrent(ctx, match.ID, participantID, now)
		switch {
		case errors.Is(err, repositories.ErrPrivilegeNotFound):
			if priv, err = s.tokens.issue(ctx, tx, match.ID, participantID); err != nil {
				return err
			}
		case err != nil:
			return err
		}
		if priv.LastEmailSentAt != nil && s.opts.AccessEmailCooldown > 0 &&
			now.Sub(*priv.LastEmailSentAt) < s.opts.AccessEmailCooldown {
			return ErrAccessEmailCooldown
		}

		privilegeID = priv.ID
		email = AccessEmail{
			To:              strings.TrimSpace(*participant.Email),
			ParticipantName: participant.DisplayName,
			TournamentName:  tournament.Name,
			Round:           match.Round,
			MatchNumber:     match.MatchNumber,
			Link:            s.accessURL(match.ID, priv.Token),
			ExpiresAt:       priv.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}

	// Письмо отправляется вне транзакции, чтобы не держать блокировку матча.
	if s.mailer == nil {
		return nil, ErrMailerNotConfigured
	}
	if err = s.mailer.SendAccessLinkEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to send access email for match %d: %w", matchID, err)
	}

	sentAt := s.opts.now()
	if err = s.store.Privileges().MarkEmailSent(context.WithoutCancel(ctx), privilegeID, sentAt); err != nil {
		s.logger.WarnContext(ctx, "failed to stamp access email time",
			slog.Int("match_id", matchID), slog.Int("privilege_id", privilegeID), slog.Any("error", err))
	}

	return &AccessEmailResult{ParticipantID: participantID, ExpiresAt: email.ExpiresAt, SentAt: sentAt}, nil
}

func (s *accessLinkService) DeactivateExpired(ctx context.Context) (int64, error) {
	n, err := s.store.Privileges().DeactivateExpired(ctx, s.opts.now())
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired access tokens: %w", err)
	}
	return n, nil
}

func (s *accessLinkService) ownedMatch(ctx context.Context, tx repositories.Tx, matchID int, principal Principal) (*models.Match, error) {
	match, err := tx.Matches().GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	access, err := s.access.Resolve(ctx, tx, match, principal)
	if err != nil {
		return nil, err
	}
	if !access.Owner {
		return nil, ErrOwnerRequired
	}
	return match, nil
}

func (s *accessLinkService) accessURL(matchID int, token string) string {
	base := strings.TrimRight(s.opts.PublicURL, "/")
	return fmt.Sprintf("%s/matches/%d?token=%s", base, matchID, url.QueryEscape(token))
}
