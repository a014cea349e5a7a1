package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/foundrybuild/pipeline/internal/infrastructure/config"
	"github.com/foundrybuild/pipeline/internal/ports"
)

// AppContext bundles the long-lived services constructed at startup that
// every subcommand needs: the manifest-backed BuildManager, the logger,
// and the event publisher audit/log sinks are attached to.
type AppContext struct {
	Logger  ports.Logger
	Events  ports.EventPublisher
	Manager func(manifestPath string) (config.BuildManager, error)
}

// CommandContext returns the command's context (falling back to
// Background) together with a component-scoped logger.
func (a *AppContext) CommandContext(cmd *cobra.Command, component string) (context.Context, ports.Logger) {
	ctx := context.Background()
	if cmd != nil && cmd.Context() != nil {
		ctx = cmd.Context()
	}
	return ctx, a.LoggerFor(component)
}

// LoggerFor derives a child logger scoped to component.
func (a *AppContext) LoggerFor(component string) ports.Logger {
	if a == nil || a.Logger == nil {
		return nil
	}
	return a.Logger.With("component", component)
}

// EventPublisher returns the configured event publisher (nil during
// tests that construct a bare AppContext).
func (a *AppContext) EventPublisher() ports.EventPublisher {
	if a == nil {
		return nil
	}
	return a.Events
}
