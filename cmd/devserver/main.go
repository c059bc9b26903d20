package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lavacar-app/lavacar/internal/config"
	"github.com/lavacar-app/lavacar/internal/devserver"
	"github.com/lavacar-app/lavacar/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The backend logs every request, so default to info
	level := cfg.Logging.Level
	if os.Getenv("LOG_LEVEL") == "" {
		level = "info"
	}
	logger.Init(level, cfg.Logging.Format)
	log := logger.GetLogger()

	seed, err := devserver.DefaultSeed()
	if cfg.DevServer.SeedFile != "" {
		seed, err = devserver.LoadSeed(cfg.DevServer.SeedFile)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load seed")
	}

	srv, err := devserver.New(cfg.DevServer, seed, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
