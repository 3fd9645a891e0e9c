package main

import (
	"context"
	"flag"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog/log"

	"github.com/mitchelldurbincs/rastersight/internal/config"
	"github.com/mitchelldurbincs/rastersight/internal/game"
	"github.com/mitchelldurbincs/rastersight/internal/ui"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	seed := flag.Int64("seed", 0, "Map seed (0 to use config default)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	cfg := config.Get()
	config.SetupLogging(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

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
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create world")
	}

	explorer := ui.NewExplorer(world, ui.ConfigFromSettings(cfg, log.Logger))

	ebiten.SetWindowSize(cfg.UI.Window.Width, cfg.UI.Window.Height)
	ebiten.SetWindowTitle(cfg.UI.Window.Title)

	if err := ebiten.RunGame(explorer); err != nil {
		log.Fatal().Err(err).Msg("UI exited with error")
	}
	world.Close("window closed")
}
