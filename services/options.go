package services

import (
	"fmt"
	"time"
)

type TurnTimeoutPolicy string

const (
	// TurnTimeoutNone - таймеры только информационные.
	TurnTimeoutNone TurnTimeoutPolicy = "none"
	// TurnTimeoutPassTurn - по истечении таймера ход переходит сопернику.
	TurnTimeoutPassTurn TurnTimeoutPolicy = "pass_turn"
)

func ParseTurnTimeoutPolicy(s string) (TurnTimeoutPolicy, error) {
	switch p := TurnTimeoutPolicy(s); p {
	case "", TurnTimeoutNone:
		return TurnTimeoutNone, nil
	case TurnTimeoutPassTurn:
		return p, nil
	default:
		return "", fmt.Errorf("unknown turn timeout policy %q", s)
	}
}

const (
	defaultAccessTokenTTL      = 7 * 24 * time.Hour
	defaultAccessEmailCooldown = 5 * time.Minute
)

// Options - правила комнаты матча, настраиваемые через конфигурацию.
type Options struct {
	// SkipOptionalPhases пропускает необязательные этапы при активации.
	// По умолчанию они активируются и завершаются явным SkipPhase.
	SkipOptionalPhases bool
	// AutoFinalizeOnAccept завершает матч, когда соперник принимает текущий счет.
	AutoFinalizeOnAccept bool
	// RejectStaleVerification отклоняет действия над неактуальными отправками счета.
	RejectStaleVerification bool
	TurnTimeout             TurnTimeoutPolicy

	AccessTokenTTL      time.Duration
	AccessEmailCooldown time.Duration
	// PublicURL - базовый адрес фронтенда для ссылок доступа.
	PublicURL string

	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		TurnTimeout:         TurnTimeoutNone,
		AccessTokenTTL:      defaultAccessTokenTTL,
		AccessEmailCooldown: defaultAccessEmailCooldown,
	}
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o Options) tokenTTL() time.Duration {
	if o.AccessTokenTTL <= 0 {
		return defaultAccessTokenTTL
	}
	return o.AccessTokenTTL
}
