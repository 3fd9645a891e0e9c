package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/mitchelldurbincs/rastersight/internal/config"
	"github.com/mitchelldurbincs/rastersight/internal/game/events"
	"github.com/mitchelldurbincs/rastersight/internal/game/events/subscribers"
	"github.com/mitchelldurbincs/rastersight/internal/grpc/fovserver"
	"github.com/mitchelldurbincs/rastersight/internal/monitoring"
	"github.com/mitchelldurbincs/rastersight/internal/ws"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Path to config file")
	env := flag.String("env", "", "Environment overlay, loads config.<env>.yaml")
	port := flag.Int("port", -1, "The server port (-1 to use config default)")
	host := flag.String("host", "", "The server host (empty to use config default)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error) (empty to use config default)")
	maxSessions := flag.Int("max-sessions", -1, "Maximum concurrent sessions (-1 to use config default)")
	enableWS := flag.Bool("ws", false, "Enable the websocket visibility feed")
	enableReflection := flag.Bool("enable-reflection", false, "Enable gRPC reflection for debugging")
	flag.Parse()

	// Initialize configuration
	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	if err := config.LoadEnvironmentConfig(*env); err != nil {
		log.Fatal().Err(err).Str("env", *env).Msg("Failed to load environment config")
	}

	cfg := config.Get()

	// Use config defaults if not overridden by flags
	if *port == -1 {
		*port = cfg.Server.GRPC.Port
	}
	if *host == "" {
		*host = cfg.Server.GRPC.Host
	}
	if *logLevel == "" {
		*logLevel = cfg.Logging.Level
	}
	if *maxSessions == -1 {
		*maxSessions = cfg.Server.GRPC.MaxSessions
	}
	if !*enableWS {
		*enableWS = cfg.Server.Websocket.Enabled
	}

	config.SetupLogging(*logLevel, cfg.Logging.Format, os.Stdout)

	mapCfg, err := cfg.Map.GeneratorConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid map config")
	}

	log.Info().
		Int("port", *port).
		Str("host", *host).
		Int("max_sessions", *maxSessions).
		Int("map_width", mapCfg.Width).
		Int("map_height", mapCfg.Height).
		Str("edge", mapCfg.Edge.String()).
		Msg("Starting visibility server")

	// Domain events go through one bus shared by every session
	bus := events.NewEventBus()
	eventLogger := subscribers.NewLoggerSubscriber("event_logger", log.Logger, zerolog.DebugLevel)
	eventLogger.SetDevMode(os.Getenv("APP_ENV") != "production")
	bus.Subscribe(eventLogger)

	sessions := fovserver.NewSessionManager(fovserver.ManagerConfig{
		MaxSessions:     *maxSessions,
		IdleTimeout:     cfg.Server.GRPC.SessionIdleTimeout,
		CleanupInterval: cfg.Server.GRPC.CleanupInterval,
		Map:             mapCfg,
		Seed:            cfg.Map.Seed,
		EventBus:        bus,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions.Start(ctx)

	// Create listener
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", *host, *port))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			fovserver.LoggingInterceptor,
			fovserver.RecoveryInterceptor,
		),
	)
	fovserver.RegisterVisibilityServiceServer(grpcServer, fovserver.NewServer(sessions))

	// Register health service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(fovserver.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if *enableReflection {
		reflection.Register(grpcServer)
		log.Info().Msg("gRPC reflection enabled")
	}

	monitor := monitoring.NewGoroutineMonitor(monitoring.MonitorConfig{})
	monitor.RegisterGauge("sessions", sessions.Count)

	// Optional websocket feed
	var httpServer *http.Server
	var feed *ws.Feed
	if *enableWS {
		feed = ws.NewFeed(ws.NewHub(log.Logger), sessions.Get, log.Logger)
		feed.Attach(bus)
		go feed.Run(ctx)
		monitor.RegisterGauge("feed_clients", feed.Hub().Count)

		mux := http.NewServeMux()
		mux.Handle(cfg.Server.Websocket.Path, feed)
		httpServer = &http.Server{
			Addr:              cfg.Server.Websocket.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().
				Str("address", httpServer.Addr).
				Str("path", cfg.Server.Websocket.Path).
				Msg("Websocket feed listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Websocket feed stopped")
			}
		}()
	}

	monitor.Start()
	defer monitor.Stop()

	// Hot reload of the log level
	if config.ConfigFilePath() != "" {
		config.WatchConfig(func() {
			level := config.Get().Logging.Level
			zerolog.SetGlobalLevel(config.ParseLevel(level))
			log.Info().Str("level", level).Msg("Config reloaded")
		})
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(fovserver.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		// Give ongoing requests time to complete
		time.Sleep(time.Duration(cfg.Server.GRPC.GracefulShutdownDelay) * time.Second)

		log.Info().Msg("Gracefully stopping gRPC server")
		grpcServer.GracefulStop()

		if httpServer != nil {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			_ = httpServer.Shutdown(shutdownCtx)
			stop()
		}
		sessions.Close()
		if feed != nil {
			feed.Detach()
			feed.Hub().CloseAll("server shutdown")
		}
		cancel()
	}()

	log.Info().Str("address", lis.Addr().String()).Msg("gRPC server listening")

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to serve")
		}
	}()

	// Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("Server shutdown complete")
}
