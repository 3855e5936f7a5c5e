package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/agentboard/internal/config"
	"github.com/gosuda/agentboard/internal/server"
	"github.com/gosuda/agentboard/internal/store/postgres"
	redisstore "github.com/gosuda/agentboard/internal/store/redis"
	"github.com/gosuda/agentboard/internal/store/sqlite"
	"github.com/gosuda/agentboard/internal/stream"
)

type eventStore interface {
	server.Store
	Close() error
}

// newServeCmd creates the "agentboard serve" subcommand.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion API and event stream server",
		Long:  "Runs the HTTP server. Configuration is read from AGENTBOARD_* environment variables.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(os.Stdout)
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	broker, closeBroker, err := openBroker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBroker()

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sweeper := stream.NewSweeper(cfg.Retention.MaxAge, cfg.Retention.Interval, store.HookEvents(), store.Activity())
	go sweeper.Run(ctx)

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, store, broker)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("driver", cfg.Database.Driver).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (eventStore, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
			return nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}
		store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// openBroker connects to Redis when configured so board events reach
// dashboards on every instance; otherwise events stay in process.
func openBroker(ctx context.Context, cfg *config.Config) (stream.Broker, func(), error) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("redis not configured, using in-process broker")
		return stream.NewLocalBroker(), func() {}, nil
	}

	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return pubsub, func() { _ = pubsub.Close() }, nil
}
