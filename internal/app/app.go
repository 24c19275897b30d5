// Package app assembles the engine from configuration for the binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/common/database"
	"github.com/zukhriddin2012/c-space-niya-sub004/common/mqtt"
	rediscommon "github.com/zukhriddin2012/c-space-niya-sub004/common/redis"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/config"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/metrics"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/notify"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/service"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/store"
)

// Runtime the engine plus the connections it owns.
type Runtime struct {
	Engine  *service.Engine
	Metrics *metrics.Metrics
	DB      *sql.DB       // nil in memory mode
	Redis   *redis.Client // nil when Redis is unreachable and not required

	mqtt   *mqtt.Client
	logger *zap.Logger
}

// Build connects storage and the configured notification channel.
// With DB_ENABLED=false the engine runs on in-memory repositories.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	civil, err := clock.NewCivil(cfg.Presence.Timezone)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Metrics: metrics.New(), logger: logger}

	var (
		workers   repository.WorkersRepository
		branches  repository.BranchesRepository
		shifts    repository.ShiftsRepository
		sessions  repository.SessionsRepository
		reminders repository.RemindersRepository
	)
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		rt.DB = db
		dir := repository.NewPostgresDirectoryRepository(db)
		workers, branches = dir, dir
		shifts = repository.NewPostgresShiftsRepository(db)
		sessions = repository.NewPostgresSessionsRepository(db)
		reminders = repository.NewPostgresRemindersRepository(db)
		logger.Info("DB enabled for presence engine", zap.String("database", cfg.Database.Database))
	} else {
		dir := repository.NewMemoryDirectory()
		workers, branches, shifts = dir, dir, dir
		sessions = repository.NewMemorySessionsRepo()
		reminders = repository.NewMemoryRemindersRepo()
		logger.Warn("DB disabled, using in-memory repositories")
	}

	client := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, client); err != nil {
		_ = client.Close()
		if cfg.Notify.Channel == config.ChannelStream {
			rt.Close()
			return nil, fmt.Errorf("redis required for NOTIFY_CHANNEL=stream: %w", err)
		}
		logger.Warn("Redis unavailable, shift definitions uncached", zap.Error(err))
	} else {
		rt.Redis = client
		shifts = store.NewCachedShifts(shifts, store.NewRedisKV(client), cfg.ShiftCacheTTL, logger)
	}

	dispatcher, err := rt.dispatcher(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	logger.Info("Notification channel selected", zap.String("channel", dispatcher.Channel()))

	rt.Engine = service.NewEngine(service.EngineDeps{
		Workers:         workers,
		Branches:        branches,
		Shifts:          shifts,
		Sessions:        sessions,
		Reminders:       reminders,
		Dispatcher:      dispatcher,
		Templates:       cfg.Notify.Templates,
		NightKeywords:   cfg.Presence.NightKeywords,
		FallbackCutoffs: cfg.Presence.FallbackCutoffs,
		Civil:           civil,
		Clock:           clock.Real(),
		Logger:          logger,
		Metrics:         rt.Metrics,
	})
	return rt, nil
}

func (rt *Runtime) dispatcher(cfg *config.Config) (notify.Dispatcher, error) {
	switch cfg.Notify.Channel {
	case config.ChannelBot:
		return notify.NewBotDispatcher(cfg.Notify.BotAPIURL, cfg.Notify.BotToken, rt.logger), nil
	case config.ChannelStream:
		return notify.NewStreamDispatcher(rt.Redis, cfg.Notify.Stream, rt.logger), nil
	case config.ChannelMQTT:
		c, err := mqtt.NewClient(&cfg.MQTT.MQTTConfig)
		if err != nil {
			return nil, err
		}
		rt.mqtt = c
		return notify.NewMQTTDispatcher(c, cfg.MQTT.Topic, rt.logger), nil
	default:
		return notify.NewLogDispatcher(rt.logger), nil
	}
}

// Ping checks the storage the engine cannot run without.
func (rt *Runtime) Ping(ctx context.Context) error {
	if rt.DB != nil {
		if err := rt.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}

// Close releases every connection; safe on a partially built Runtime.
func (rt *Runtime) Close() {
	if rt.mqtt != nil {
		rt.mqtt.Disconnect()
	}
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if rt.DB != nil {
		_ = database.Close(rt.DB)
	}
}

// ShutdownTimeout bounds graceful shutdown of every binary.
const ShutdownTimeout = 5 * time.Second
