// Package main is the entry point for the agentboard CLI.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("agentboard")
		os.Exit(1)
	}
}
