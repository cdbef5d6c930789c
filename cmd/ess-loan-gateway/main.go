package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ess-loan-gateway/internal/app/runtime"
	config "ess-loan-gateway/internal/pkg/config"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
)

func main() {
	cfg, err := config.LoadFromConfig()
	if err != nil {
		log.Fatalf(log_messages.FailedLoadingConfiguration, err)
	}

	logger.Init(cfg.Logging.LogLevel)
	logger.SetServiceName(cfg.Otel.ServiceName)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := runtime.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to start ess-loan-gateway", err)
		os.Exit(1)
	}

	runErr := app.Run(ctx)
	app.Shutdown(context.WithoutCancel(ctx))
	if runErr != nil {
		os.Exit(1)
	}
}
