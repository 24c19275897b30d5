package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/common/logger"
	rediscommon "github.com/zukhriddin2012/c-space-niya-sub004/common/redis"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/config"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/notify"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/service"
)

func main() {
	configFile := pflag.String("config", "", "YAML overlay file (overrides PRESENCE_CONFIG_FILE)")
	batch := pflag.Int64("batch", 10, "messages read per batch")
	pflag.Parse()

	if *configFile != "" {
		_ = os.Setenv("PRESENCE_CONFIG_FILE", *configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Notify.BotToken == "" {
		fmt.Fprintln(os.Stderr, "BOT_TOKEN is required for the notify relay")
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "notify-relay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := rediscommon.NewRedisClient(&cfg.Redis)
	defer rediscommon.Close(client)
	if err := rediscommon.Ping(ctx, client); err != nil {
		log.Fatal("Redis unavailable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	relay := service.NewStreamRelay(client, notify.NewBotDispatcher(cfg.Notify.BotAPIURL, cfg.Notify.BotToken, log), service.RelayOptions{
		Stream:        cfg.Notify.Stream,
		ConsumerGroup: cfg.Notify.ConsumerGroup,
		ConsumerName:  cfg.Notify.ConsumerName,
		BatchSize:     *batch,
	}, log, nil)

	if err := relay.Start(ctx); err != nil {
		log.Error("Notify relay stopped", zap.Error(err))
	}
}
