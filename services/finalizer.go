package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
	"github.com/Dosada05/tournament-matchroom/storage"
)

// MatchFinalizer завершает матч по принятой отправке счета.
type MatchFinalizer interface {
	// Finalize выполняется внутри транзакции матча.
	Finalize(ctx context.Context, tx repositories.Tx, match *models.Match, submission *models.ScoreSubmission) (models.MatchEvent, error)
	// Archive сохраняет историю счета в объектное хранилище. Вызывается после коммита.
	Archive(ctx context.Context, matchID int)
}

type finalizer struct {
	store    repositories.Store
	uploader storage.FileUploader
	opts     Options
	logger   *slog.Logger
}

// NewMatchFinalizer: uploader может быть nil, тогда архив не пишется.
func NewMatchFinalizer(store repositories.Store, uploader storage.FileUploader, opts Options, logger *slog.Logger) MatchFinalizer {
	return &finalizer{store: store, uploader: uploader, opts: opts, logger: logger}
}

func (f *finalizer) Finalize(ctx context.Context, tx repositories.Tx, match *models.Match, submission *models.ScoreSubmission) (models.MatchEvent, error) {
	now := f.opts.now()

	if match.CurrentScoreSubmissionID != nil && *match.CurrentScoreSubmissionID != submission.ID {
		if err := supersede(ctx, tx, *match.CurrentScoreSubmissionID); err != nil {
			return models.MatchEvent{}, err
		}
	}
	if err := tx.Scores().UpdateSubmissionStatus(ctx, submission.ID, models.SubmissionStatusAccepted); err != nil {
		return models.MatchEvent{}, fmt.Errorf("failed to accept submission %d: %w", submission.ID, err)
	}
	submission.Status = models.SubmissionStatusAccepted

	switch {
	case submission.Participant1Score > submission.Participant2Score:
		match.WinnerID = match.Participant1ID
	case submission.Participant2Score > submission.Participant1Score:
		match.WinnerID = match.Participant2ID
	default:
		match.WinnerID = nil
	}
	submissionID := submission.ID
	match.CurrentScoreSubmissionID = &submissionID
	match.ScoreSubmissionStatus = models.ScoreStatusFinalized
	match.Status = models.MatchStatusCompleted
	match.CompletedAt = &now

	if err := tx.Matches().Update(ctx, match); err != nil {
		return models.MatchEvent{}, fmt.Errorf("failed to complete match %d: %w", match.ID, err)
	}

	return models.NewMatchEvent(match, models.EventMatchFinalized, map[string]any{
		"submission_id":      submission.ID,
		"winner_id":          match.WinnerID,
		"participant1_score": submission.Participant1Score,
		"participant2_score": submission.Participant2Score,
	}), nil
}

type scoreHistory struct {
	Match       *models.Match             `json:"match"`
	Submissions []*models.ScoreSubmission `json:"submissions"`
	ArchivedAt  time.Time                 `json:"archived_at"`
}

func (f *finalizer) Archive(ctx context.Context, matchID int) {
	if f.uploader == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	logger := f.logger.With(slog.Int("match_id", matchID))

	match, err := f.store.Matches().GetByID(ctx, matchID)
	if err != nil {
		logger.WarnContext(ctx, "score archive: failed to load match", slog.Any("error", err))
		return
	}
	submissions, err := f.store.Scores().ListSubmissions(ctx, matchID)
	if err != nil {
		logger.WarnContext(ctx, "score archive: failed to load submissions", slog.Any("error", err))
		return
	}
	for _, s := range submissions {
		if s.Actions, err = f.store.Scores().ListActions(ctx, s.ID); err != nil {
			logger.WarnContext(ctx, "score archive: failed to load actions", slog.Int("submission_id", s.ID), slog.Any("error", err))
			return
		}
	}

	body, err := json.Marshal(scoreHistory{Match: match, Submissions: submissions, ArchivedAt: f.opts.now()})
	if err != nil {
		logger.ErrorContext(ctx, "score archive: failed to marshal history", slog.Any("error", err))
		return
	}

	key := storage.ScoreHistoryKey(matchID)
	result, err := f.uploader.Upload(ctx, key, storage.ContentTypeJSON, bytes.NewReader(body))
	if err != nil {
		logger.WarnContext(ctx, "score archive: upload failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	logger.InfoContext(ctx, "score history archived", slog.String("key", result.Key), slog.String("location", result.Location))
}

// supersede помечает ожидающую отправку как замененную.
func supersede(ctx context.Context, tx repositories.Tx, submissionID int) error {
	prev, err := tx.Scores().GetSubmission(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("failed to load previous submission %d: %w", submissionID, err)
	}
	if prev.Status != models.SubmissionStatusPending {
		return nil
	}
	if err = tx.Scores().UpdateSubmissionStatus(ctx, submissionID, models.SubmissionStatusSuperseded); err != nil {
		return fmt.Errorf("failed to supersede submission %d: %w", submissionID, err)
	}
	return nil
}
