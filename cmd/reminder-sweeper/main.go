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
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/app"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/config"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/service"
)

func main() {
	configFile := pflag.String("config", "", "YAML overlay file (overrides PRESENCE_CONFIG_FILE)")
	interval := pflag.Duration("interval", 0, "sweep interval (overrides SWEEP_INTERVAL)")
	once := pflag.Bool("once", false, "run a single sweep and exit")
	pflag.Parse()

	if *configFile != "" {
		_ = os.Setenv("PRESENCE_CONFIG_FILE", *configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *interval > 0 {
		cfg.Sweeper.Interval = *interval
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "reminder-sweeper")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to build presence engine", zap.Error(err))
	}
	defer rt.Close()

	sweeper := service.NewSweeper(rt.Engine.Reminders, rt.Engine.Machine, rt.Engine.Clock, service.SweeperOptions{
		BatchSize:  cfg.Sweeper.BatchSize,
		StaleAfter: cfg.Sweeper.StaleAfter,
	}, log, rt.Metrics)

	if *once {
		report, err := sweeper.SweepOnce(ctx)
		if err != nil {
			log.Error("Reminder sweep failed", zap.Error(err))
			rt.Close()
			os.Exit(1)
		}
		log.Info("Single sweep done",
			zap.Int("delivered", report.Delivered),
			zap.Int("failed", report.Failed),
		)
		return
	}

	if err := sweeper.Run(ctx, cfg.Sweeper.Interval); err != nil {
		log.Error("Reminder sweeper stopped", zap.Error(err))
	}
}
