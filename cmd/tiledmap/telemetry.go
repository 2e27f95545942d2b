package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-tiledmap/observability"
)

const telemetryFlushTimeout = 5 * time.Second

// startTelemetry installs the OpenTelemetry providers for the long-running
// commands. The returned function flushes and stops them. Stdout exporters
// write to stderr so command output stays clean.
func startTelemetry(cmd *cobra.Command) (func(), error) {
	p, err := observability.NewProvider(cmd.Context(), cfg.Observability, log,
		observability.WithOutput(cmd.ErrOrStderr()))
	if err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), telemetryFlushTimeout)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}, nil
}
