package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/Riki-22/axia-tss-sub000/internal/blob/s3"
	"github.com/Riki-22/axia-tss-sub000/internal/cache/redis"
	"github.com/Riki-22/axia-tss-sub000/internal/config"
	"github.com/Riki-22/axia-tss-sub000/internal/domain"
	"github.com/Riki-22/axia-tss-sub000/internal/executor"
	"github.com/Riki-22/axia-tss-sub000/internal/notify"
	"github.com/Riki-22/axia-tss-sub000/internal/platform/mt5"
	"github.com/Riki-22/axia-tss-sub000/internal/platform/paper"
	"github.com/Riki-22/axia-tss-sub000/internal/queue/redisq"
	"github.com/Riki-22/axia-tss-sub000/internal/store/postgres"
)

// Dependencies bundles everything the modes need. Wire builds it; the
// returned cleanup function tears it down.
type Dependencies struct {
	Orders    domain.OrderStore
	Positions domain.PositionStore
	Audit     domain.AuditStore

	// Gate serves cached reads for polling; GateStore is the strongly
	// consistent store the processor and the halt/resume modes use.
	Gate      domain.GateStore
	GateStore domain.GateStore

	Queue *redisq.Queue

	Venue       domain.Venue
	QuoteStream *mt5.QuoteStream // nil unless the mt5 venue is configured

	Archiver *s3blob.Archiver // nil unless s3 is enabled

	Alerter executor.Alerter
}

func needsPostgres(mode string) bool {
	return mode != "enqueue"
}

func needsRedis(mode string) bool {
	switch mode {
	case "run", "enqueue", "status", "halt", "resume":
		return true
	default:
		return false
	}
}

// Wire constructs the concrete implementations for the given mode.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger, mode string) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Alerter: notify.Noop{}}

	var pgClient *postgres.Client
	if needsPostgres(mode) {
		var err error
		pgClient, err = postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Orders = postgres.NewOrderStore(pool)
		deps.Positions = postgres.NewPositionStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.GateStore = postgres.NewGateStore(pool)
		deps.Gate = deps.GateStore
	}

	if needsRedis(mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Queue, err = redisq.New(ctx, redisClient.Underlying(), redisq.Config{
			Stream:     cfg.Queue.Stream,
			Group:      cfg.Queue.Group,
			Visibility: cfg.Queue.Visibility.Duration,
			MaxLen:     cfg.Queue.MaxLen,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: queue: %w", err)
		}

		// The cached gate read backs the metrics gauge poller; the processor
		// keeps using the store directly.
		if deps.GateStore != nil {
			deps.Gate = redis.NewGateCache(deps.GateStore, redisClient, cfg.Executor.GateCacheTTL.Duration)
		}
	}

	if mode == "run" {
		switch cfg.Venue.Kind {
		case "mt5":
			deps.Venue = mt5.NewClient(cfg.Venue.MT5.BaseURL, cfg.Venue.MT5.APIToken, cfg.Venue.MT5.Timeout.Duration)
			deps.QuoteStream = mt5.NewQuoteStream(cfg.Venue.MT5.WsURL, cfg.Venue.MT5.APIToken, cfg.Venue.MT5.Symbols, logger)
		default:
			deps.Venue = paper.NewVenue()
		}
	}

	if mode == "archive" {
		if !cfg.S3.Enabled {
			cleanup()
			return nil, nil, fmt.Errorf("wire: archive mode requires s3.enabled")
		}
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(
			s3Client, deps.Orders, deps.Positions, deps.Audit,
			cfg.Archive.BatchLimit, logger,
		)
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscord(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Alerter = notify.New(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}
