package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newRootCmd creates the root agentboard command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agentboard",
		Short:         "Real-time event sync for the agent kanban dashboard",
		Long:          "agentboard ingests agent hook events and streams them, with board changes,\nto connected dashboards.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newServeCmd(),
		newWatchCmd(),
	)

	return cmd
}

// setupLogging initializes the global logger from AGENTBOARD_LOG_LEVEL and
// AGENTBOARD_LOG_FORMAT.
func setupLogging(out io.Writer) {
	level, err := zerolog.ParseLevel(os.Getenv("AGENTBOARD_LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("AGENTBOARD_LOG_FORMAT") == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	}
}
