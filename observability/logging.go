// Package observability wires structured logging and distributed
// tracing the way the control plane's entry points configure them:
// zerolog for logs, OpenTelemetry for traces, both optional-by-default
// and switched on by environment.
package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigureLogging sets the global zerolog logger: pretty console
// output in development, JSON in production.
func ConfigureLogging(production bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if !production {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}
}
