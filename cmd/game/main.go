package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mitchelldurbincs/rastersight/internal/config"
	"github.com/mitchelldurbincs/rastersight/internal/game"
	"github.com/mitchelldurbincs/rastersight/internal/game/core"
	"github.com/mitchelldurbincs/rastersight/internal/game/events"
	"github.com/mitchelldurbincs/rastersight/internal/game/events/subscribers"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	steps := flag.Int("steps", -1, "Number of random steps (-1 to use config default)")
	seed := flag.Int64("seed", 0, "Map seed (0 to use config default)")
	showMap := flag.Bool("map", false, "Print the whole explored map at the end")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	cfg := config.Get()
	config.SetupLogging(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	if *steps == -1 {
		*steps = cfg.Demo.Steps
	}
	if *seed == 0 {
		*seed = cfg.Map.Seed
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	mapCfg, err := cfg.Map.GeneratorConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid map config")
	}

	bus := events.NewEventBus()
	bus.Subscribe(subscribers.NewLoggerSubscriber("demo_events", log.Logger, zerolog.DebugLevel))

	world, err := game.NewWorld(context.Background(), game.WorldConfig{
		Width:      mapCfg.Width,
		Height:     mapCfg.Height,
		Edge:       mapCfg.Edge,
		Seed:       *seed,
		MapConfig:  &mapCfg,
		ViewRadius: cfg.FOV.ViewRadius,
		EventBus:   bus,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create world")
	}
	defer world.Close("demo finished")

	// Random walk, reusing the map seed so a run can be replayed
	rng := rand.New(rand.NewSource(*seed))
	fmt.Printf("Seed %d, start %s\n%s\n", *seed, world.Viewer(), world.Render(true))
	for step := 1; step <= *steps; step++ {
		dir := core.Direction(rng.Intn(len(core.DirectionVectors)))
		if _, err := world.Move(dir); err != nil {
			log.Debug().Err(err).Int("step", step).Msg("Step blocked")
			if world.Exited() {
				fmt.Printf("Step %d: left the map heading %s\n", step, dir)
				break
			}
			continue
		}
		fmt.Printf("Step %d: %s %s, explored %d\n%s\n", step, dir, world.Viewer(), world.ExploredCount(), world.Render(true))
		time.Sleep(cfg.Demo.StepDelay)
	}

	if *showMap {
		fmt.Print(world.RenderMap(true))
	}
}
