package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mitchelldurbincs/rastersight/internal/common"
	"github.com/mitchelldurbincs/rastersight/internal/config"
	"github.com/mitchelldurbincs/rastersight/internal/game"
	"github.com/mitchelldurbincs/rastersight/internal/term"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	seed := flag.Int64("seed", 0, "Map seed (0 to use config default)")
	logFile := flag.String("log-file", "", "Write logs to this file (logs are discarded otherwise)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	cfg := config.Get()

	// The terminal belongs to the view, so logs go to a file or nowhere
	logger := zerolog.Nop()
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open log file")
		}
		defer f.Close()
		config.SetupLogging(cfg.Logging.Level, "json", f)
		logger = log.Logger
	}

	mapCfg, err := cfg.Map.GeneratorConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid map config")
	}
	if *seed == 0 {
		*seed = cfg.Map.Seed
	}

	world, err := game.NewWorld(context.Background(), game.WorldConfig{
		Width:      mapCfg.Width,
		Height:     mapCfg.Height,
		Edge:       mapCfg.Edge,
		Seed:       *seed,
		MapConfig:  &mapCfg,
		ViewRadius: cfg.FOV.ViewRadius,
		Logger:     &logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create world")
	}
	defer world.Close("terminal closed")

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create screen")
	}
	if err := screen.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize screen")
	}
	defer screen.Fini()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	view := term.NewView(screen, world, common.NewPalette(cfg.Colors), logger)
	if err := view.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("Terminal view stopped")
	}
}
