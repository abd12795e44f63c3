package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
)

const touchTimeout = 5 * time.Second

// Principal - то, что запрос предъявил о себе: сессия платформы и/или токен доступа.
type Principal struct {
	UserID      *int
	AccessToken string
}

type Capability string

const (
	CapabilityParticipant Capability = "participant"
	CapabilityOwner       Capability = "tournament_owner"
	CapabilitySpectator   Capability = "spectator"
)

// Access - результат разрешения доступа к матчу.
type Access struct {
	// ParticipantID заполнен, если действующее лицо привязано к слоту матча.
	ParticipantID *int
	Owner         bool
	Spectator     bool
	// ViaToken - доступ получен по токену участника, а не по сессии.
	ViaToken bool
	UserID   *int
}

func (a *Access) IsParticipant() bool {
	return a != nil && a.ParticipantID != nil
}

// RequireParticipant возвращает привязанного участника или ErrParticipantRequired.
func (a *Access) RequireParticipant() (int, error) {
	if !a.IsParticipant() {
		return 0, ErrParticipantRequired
	}
	return *a.ParticipantID, nil
}

func (a *Access) Capabilities() []Capability {
	caps := make([]Capability, 0, 3)
	if a.IsParticipant() {
		caps = append(caps, CapabilityParticipant)
	}
	if a.Owner {
		caps = append(caps, CapabilityOwner)
	}
	if a.Spectator || len(caps) > 0 {
		caps = append(caps, CapabilitySpectator)
	}
	return caps
}

type AccessResolver interface {
	// Resolve определяет права principal на матч. Репозитории берутся из tx,
	// чтобы проверка шла в той же транзакции, что и действие.
	Resolve(ctx context.Context, tx repositories.Tx, match *models.Match, principal Principal) (*Access, error)
	// Wait дожидается фоновых обновлений last_used_at.
	Wait()
}

type accessResolver struct {
	store  repositories.Store
	opts   Options
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewAccessResolver(store repositories.Store, opts Options, logger *slog.Logger) AccessResolver {
	return &accessResolver{
		store:  store,
		opts:   opts,
		logger: logger,
	}
}

func (r *accessResolver) Resolve(ctx context.Context, tx repositories.Tx, match *models.Match, principal Principal) (*Access, error) {
	now := r.opts.now()

	// 1. Токен доступа участника. Недействительный токен не ошибка:
	// разрешение продолжается по сессии.
	if principal.AccessToken != "" {
		priv, err := tx.Privileges().GetUsable(ctx, match.ID, principal.AccessToken, now)
		switch {
		case err == nil && match.SlotOf(priv.ParticipantID) != models.SlotNone:
			r.touch(ctx, priv.ID, now)
			pid := priv.ParticipantID
			return &Access{ParticipantID: &pid, ViaToken: true, UserID: principal.UserID}, nil
		case err != nil && !errors.Is(err, repositories.ErrPrivilegeNotFound):
			return nil, err
		}
	}

	tournament, err := tx.Tournaments().GetByID(ctx, match.TournamentID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	// 2. Сессия платформы: владелец турнира и/или владелец слота.
	if principal.UserID != nil {
		userID := *principal.UserID
		access := &Access{UserID: principal.UserID, Owner: tournament.CreatorID == userID}

		for _, pid := range match.ParticipantIDs() {
			participant, err := tx.Participants().GetByID(ctx, pid)
			if err != nil {
				if errors.Is(err, repositories.ErrParticipantNotFound) {
					continue
				}
				return nil, err
			}
			if participant.OwnedBy(userID) {
				boundID := participant.ID
				access.ParticipantID = &boundID
				break
			}
		}
		if access.Owner || access.IsParticipant() {
			return access, nil
		}
	}

	// 3. Публичный турнир - только чтение.
	if tournament.IsPublic {
		return &Access{Spectator: true, UserID: principal.UserID}, nil
	}

	// 4. Доступа нет. 401 только если не предъявлено ничего:
	// негодный или просроченный токен - это отказ, а не отсутствие учетных данных.
	if principal.UserID == nil && principal.AccessToken == "" {
		return nil, ErrAuthenticationRequired
	}
	return nil, ErrAccessDenied
}

// touch обновляет last_used_at в фоне: ошибка только логируется.
func (r *accessResolver) touch(ctx context.Context, privilegeID int, at time.Time) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
		defer cancel()
		if err := r.store.Privileges().TouchLastUsed(touchCtx, privilegeID, at); err != nil {
			r.logger.WarnContext(touchCtx, "failed to touch access token last_used_at",
				slog.Int("privilege_id", privilegeID), slog.Any("error", err))
		}
	}()
}

func (r *accessResolver) Wait() {
	r.wg.Wait()
}
