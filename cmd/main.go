package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/tournament-matchroom/config"
	"github.com/Dosada05/tournament-matchroom/db"
	"github.com/Dosada05/tournament-matchroom/handlers"
	"github.com/Dosada05/tournament-matchroom/realtime"
	"github.com/Dosada05/tournament-matchroom/repositories"
	"github.com/Dosada05/tournament-matchroom/routes"
	"github.com/Dosada05/tournament-matchroom/services"
	"github.com/Dosada05/tournament-matchroom/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("store", cfg.StoreDriver))

	// Хранилище
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}()

	// Объектное хранилище для архива истории счета
	var uploader storage.FileUploader
	switch {
	case cfg.R2Configured():
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("initializing Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	case cfg.StoreDriver == config.StoreDriverMemory:
		uploader = storage.NewMemoryUploader(cfg.PublicURL + "/archive")
	default:
		logger.Warn("R2 is not configured, score history archive disabled")
	}

	// Доставка событий
	hub := realtime.NewHub(logger)
	var publisher services.EventPublisher = hub
	var bus *realtime.RedisBus
	if cfg.RedisURL != "" {
		var rdb *redis.Client
		rdb, err = realtime.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		// С redis события приходят в хаб через подписку, в том числе от других экземпляров.
		bus = realtime.NewRedisBus(rdb, cfg.RedisChannel, hub, logger)
		publisher = bus
		logger.Info("connected to redis", slog.String("channel", cfg.RedisChannel))
	}

	var mailer services.Mailer
	smtpCfg := services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
	if smtpCfg.Configured() {
		emailService, err := services.NewEmailService(smtpCfg)
		if err != nil {
			return fmt.Errorf("initializing email service: %w", err)
		}
		mailer = emailService
	} else {
		logger.Warn("SMTP is not configured, access emails disabled")
	}

	turnPolicy, err := services.ParseTurnTimeoutPolicy(cfg.TurnTimeoutPolicy)
	if err != nil {
		return err
	}
	opts := services.DefaultOptions()
	opts.SkipOptionalPhases = cfg.PhaseSkipOptional
	opts.AutoFinalizeOnAccept = cfg.AutoFinalizeOnAccept
	opts.RejectStaleVerification = cfg.RejectStaleVerification
	opts.TurnTimeout = turnPolicy
	opts.AccessTokenTTL = cfg.AccessTokenTTL
	opts.AccessEmailCooldown = cfg.AccessEmailCooldown
	opts.PublicURL = cfg.PublicURL

	// Сервисы
	access := services.NewAccessResolver(store, opts, logger)
	defer access.Wait()
	finalizer := services.NewMatchFinalizer(store, uploader, opts, logger)
	matchService := services.NewMatchService(store, access, publisher, opts, logger)
	phaseEngine := services.NewPhaseEngine(store, access, publisher, opts, logger)
	scoreService := services.NewScoreService(store, access, finalizer, publisher, opts, logger)
	accessLinks := services.NewAccessLinkService(store, access, mailer, publisher, opts, logger)
	phaseTemplates := services.NewPhaseTemplateService(store)
	authService := services.NewAuthService(store.Users())

	scheduler, err := services.NewScheduler(accessLinks, phaseEngine, cfg.SweepInterval, logger)
	if err != nil {
		return err
	}

	if cfg.StoreDriver == config.StoreDriverMemory {
		if err := seedDemo(ctx, store, logger); err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
	}

	// HTTP
	checkers := map[string]handlers.Checker{"store": handlers.CheckerFunc(store.Ping)}
	if bus != nil {
		checkers["redis"] = bus
	}
	router := routes.SetupRoutes(routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService, cfg.JWTSecretKey, logger),
		Match:     handlers.NewMatchHandler(matchService, phaseEngine, scoreService, accessLinks, logger),
		Phase:     handlers.NewPhaseTemplateHandler(phaseTemplates, logger),
		WebSocket: handlers.NewWebSocketHandler(hub, matchService, cfg.CORSAllowedOrigins, logger),
		Health:    handlers.NewHealthHandler(checkers, logger),
	}, routes.Options{
		JWTSecret:      cfg.JWTSecretKey,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(gctx) })
	if bus != nil {
		g.Go(func() error { return bus.Run(gctx) })
	}

	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return scheduler.Shutdown()
	})

	g.Go(func() error {
		ln, err := net.Listen("tcp", server.Addr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", server.Addr, err)
		}
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("application exited")
	return err
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return repositories.NewMemoryStore(), nil
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.Migrate(dbConn); err != nil {
		dbConn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.InfoContext(ctx, "database connection established")
	return repositories.NewPostgresStore(dbConn, logger), nil
}
