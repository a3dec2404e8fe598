// Package cli implements clowdyctl, an operator/debug CLI for a
// locally-running control plane. It is not the CRUD admin surface for
// function/project/route definitions (out of scope); it only invokes,
// inspects, and rebuilds images for what the store already has.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	jsonLog    bool
	serverAddr string
)

// RootCmd is the base clowdyctl command.
var RootCmd = &cobra.Command{
	Use:   "clowdyctl",
	Short: "Operator CLI for a running clowdy control plane",
	Long: `clowdyctl talks to a locally-running clowdy-server over its HTTP
surface to invoke functions and inspect the warm pool, and rebuilds
project images by talking to the local Docker engine directly. It does
not create or edit function/project/route definitions.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		if !jsonLog {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		}
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

// Execute runs the CLI, exiting the process with status 1 on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	RootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "output logs in JSON format")
	RootCmd.PersistentFlags().StringVar(&serverAddr, "server", envOr("CLOWDY_SERVER_ADDR", "http://localhost:8080"), "control plane address")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
