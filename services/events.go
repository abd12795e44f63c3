package services

import (
	"context"
	"log/slog"

	"github.com/Dosada05/tournament-matchroom/models"
	"github.com/Dosada05/tournament-matchroom/repositories"
)

// EventPublisher доставляет события матча наблюдателям (websocket-хаб, redis).
type EventPublisher interface {
	Publish(ctx context.Context, event models.MatchEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.MatchEvent) error { return nil }

// eventEmitter пишет события в журнал аудита и публикует их.
// Вызывается после коммита: сбой не отменяет уже выполненное действие.
type eventEmitter struct {
	store     repositories.Store
	publisher EventPublisher
	logger    *slog.Logger
}

func newEventEmitter(store repositories.Store, publisher EventPublisher, logger *slog.Logger) *eventEmitter {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &eventEmitter{store: store, publisher: publisher, logger: logger}
}

func (e *eventEmitter) emit(ctx context.Context, events ...models.MatchEvent) {
	ctx = context.WithoutCancel(ctx)
	for i := range events {
		ev := events[i]
		if err := e.store.Events().Append(ctx, &ev); err != nil {
			e.logger.WarnContext(ctx, "failed to append match event to audit log",
				slog.Int("match_id", ev.MatchID), slog.String("type", string(ev.Type)), slog.Any("error", err))
		}
		if err := e.publisher.Publish(ctx, ev); err != nil {
			e.logger.WarnContext(ctx, "failed to publish match event",
				slog.Int("match_id", ev.MatchID), slog.String("type", string(ev.Type)), slog.Any("error", err))
		}
	}
}
