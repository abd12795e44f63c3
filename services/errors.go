package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-matchroom/repositories"
)

// Виды ошибок. Конкретные ошибки оборачивают один из них,
// а HTTP-слой сопоставляет статус по виду через errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("requested resource not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

var (
	// Не найдено
	ErrMatchNotFound       = fmt.Errorf("%w: match not found", ErrNotFound)
	ErrTournamentNotFound  = fmt.Errorf("%w: tournament not found", ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("%w: participant not found", ErrNotFound)
	ErrPhaseNotFound       = fmt.Errorf("%w: phase not found", ErrNotFound)
	ErrSubmissionNotFound  = fmt.Errorf("%w: score submission not found", ErrNotFound)

	// Доступ
	ErrAuthenticationRequired = fmt.Errorf("%w: authentication required", ErrUnauthorized)
	ErrInvalidCredentials     = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrAccessDenied           = fmt.Errorf("%w: no access to this match", ErrForbidden)
	ErrParticipantRequired    = fmt.Errorf("%w: action requires a bound match participant", ErrForbidden)
	ErrOwnerRequired          = fmt.Errorf("%w: action requires the tournament owner", ErrForbidden)
	ErrStartForbidden         = fmt.Errorf("%w: only a match participant or the tournament owner can start the match", ErrForbidden)
	ErrOwnSubmission          = fmt.Errorf("%w: participants cannot verify their own score submission", ErrForbidden)

	// Состояние
	ErrMatchAlreadyStarted   = fmt.Errorf("%w: match already started", ErrInvalidState)
	ErrMatchNotInProgress    = fmt.Errorf("%w: match is not in progress", ErrInvalidState)
	ErrMatchAlreadyCompleted = fmt.Errorf("%w: match is already completed", ErrInvalidState)
	ErrPhaseNotActive        = fmt.Errorf("%w: phase is not active", ErrInvalidState)
	ErrPhaseNotOptional      = fmt.Errorf("%w: only optional phases can be skipped", ErrInvalidState)

	// Ввод
	ErrInvalidSelection      = fmt.Errorf("%w: selection type and data are required", ErrInvalidInput)
	ErrInvalidScore          = fmt.Errorf("%w: scores must be non-negative", ErrInvalidInput)
	ErrInvalidGameMeta       = fmt.Errorf("%w: invalid per-game score data", ErrInvalidInput)
	ErrInvalidVerifyAction   = fmt.Errorf("%w: unknown verification action", ErrInvalidInput)
	ErrParticipantNotInMatch = fmt.Errorf("%w: participant does not occupy a slot in this match", ErrInvalidInput)
	ErrParticipantNoEmail    = fmt.Errorf("%w: participant has no email address", ErrInvalidInput)
	ErrPhaseTemplateInvalid  = fmt.Errorf("%w: invalid phase template", ErrInvalidInput)
	ErrValidationFailed      = fmt.Errorf("%w: validation failed", ErrInvalidInput)

	// Конфликты
	ErrNotYourTurn           = fmt.Errorf("%w: not your turn", ErrConflict)
	ErrSelectionLimitReached = fmt.Errorf("%w: selection limit reached", ErrConflict)
	ErrStaleSubmission       = fmt.Errorf("%w: submission is no longer the current one", ErrConflict)
	ErrAccessEmailCooldown   = fmt.Errorf("%w: access email was sent recently", ErrConflict)

	ErrAccessTokenGeneration = errors.New("failed to generate unique access token")
)

// translateStoreError переводит ошибки хранилища "не найдено" в ошибки сервиса.
// Остальные ошибки хранилища возвращаются как есть и считаются внутренними.
func translateStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return ErrParticipantNotFound
	case errors.Is(err, repositories.ErrPhaseNotFound):
		return ErrPhaseNotFound
	case errors.Is(err, repositories.ErrSubmissionNotFound):
		return ErrSubmissionNotFound
	case errors.Is(err, repositories.ErrSelectionOrderConflict):
		return ErrSelectionLimitReached
	}
	return err
}
