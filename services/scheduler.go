package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const defaultSweepInterval = time.Minute

// Scheduler выполняет периодические задачи комнаты матчей:
// деактивацию истекших токенов и передачу хода по таймеру.
type Scheduler struct {
	sched    gocron.Scheduler
	links    AccessLinkService
	engine   PhaseEngine
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(links AccessLinkService, engine PhaseEngine, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Scheduler{
		sched:    sched,
		links:    links,
		engine:   engine,
		interval: interval,
		logger:   logger,
	}, nil
}

// Start регистрирует задачи и запускает планировщик. ctx ограничивает время жизни задач.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.SweepExpiredTokens(ctx) }),
		gocron.WithName("access-token-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register token sweep job: %w", err)
	}

	_, err = s.sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.PassExpiredTurns(ctx) }),
		gocron.WithName("turn-timeout"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register turn timeout job: %w", err)
	}

	s.sched.Start()
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) SweepExpiredTokens(ctx context.Context) {
	n, err := s.links.DeactivateExpired(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "access token sweep failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired access tokens deactivated", slog.Int64("count", n))
	}
}

func (s *Scheduler) PassExpiredTurns(ctx context.Context) {
	n, err := s.engine.PassExpiredTurns(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "turn timeout sweep failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired turns passed", slog.Int("count", n))
	}
}
