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
	httpapi "github.com/zukhriddin2012/c-space-niya-sub004/internal/http"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/service"
)

func main() {
	configFile := pflag.String("config", "", "YAML overlay file (overrides PRESENCE_CONFIG_FILE)")
	addr := pflag.String("addr", "", "listen address (overrides HTTP_ADDR)")
	pflag.Parse()

	if *configFile != "" {
		_ = os.Setenv("PRESENCE_CONFIG_FILE", *configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "presence-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to build presence engine", zap.Error(err))
	}
	defer rt.Close()

	router := httpapi.NewRouter(log)
	router.RegisterPresenceRoutes(httpapi.NewPresenceHandler(rt.Engine, log))
	router.RegisterReminderRoutes(httpapi.NewReminderHandler(rt.Engine.Machine, log))
	router.RegisterBotRoutes(httpapi.NewBotWebhookHandler(rt.Engine.Machine, cfg.Notify.WebhookSecret, log))
	router.RegisterOpsRoutes(rt.Metrics.Handler(), rt.Ping)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}
