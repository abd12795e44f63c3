package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Dosada05/tournament-matchroom/models"
)

const DefaultEventsChannel = "matchroom:events"

// OpenRedis разбирает URL, создает клиента и проверяет соединение.
func OpenRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// RedisBus раздает события матчей между экземплярами сервиса.
// Publish пишет в канал redis, Run пересылает полученные события в локальный хаб.
type RedisBus struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
}

func NewRedisBus(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultEventsChannel
	}
	return &RedisBus{client: client, channel: channel, hub: hub, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, event models.MatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal match event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish match event %s to redis: %w", event.ID, err)
	}
	return nil
}

// Run подписывается на канал и блокируется до отмены ctx.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("redis event relay started", slog.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event models.MatchEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("dropping malformed match event from redis", slog.Any("error", err))
				continue
			}
			_ = b.hub.Publish(ctx, event)
		}
	}
}

// Check реализует проверку здоровья.
func (b *RedisBus) Check(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
