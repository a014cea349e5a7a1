package main

import (
	"context"
	"fmt"
	"os"

	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
	"github.com/foundrybuild/pipeline/internal/infrastructure/audit"
	"github.com/foundrybuild/pipeline/internal/infrastructure/config"
	"github.com/foundrybuild/pipeline/internal/infrastructure/events"
	"github.com/foundrybuild/pipeline/internal/infrastructure/fsops"
	"github.com/foundrybuild/pipeline/internal/infrastructure/logging"
	"github.com/foundrybuild/pipeline/internal/infrastructure/reaper"
	"github.com/foundrybuild/pipeline/internal/ports"
)

func main() {
	// Bootstrap logging needs somewhere to go before the real logger's
	// level is known (it depends on flags we haven't parsed yet), so
	// early decisions are buffered and replayed once appLogger exists.
	bootBuffer := logging.NewEventBuffer(32)
	bootLogger := logging.NewBufferedLogger(bootBuffer)

	level := "info"
	for _, arg := range os.Args[1:] {
		if arg == "-v" || arg == "--verbose" {
			level = "debug"
			bootLogger.Debug(context.Background(), "verbose flag detected, raising log level", "level", level)
		}
	}

	appLogger, err := logging.New(logging.Options{
		Level:     level,
		Component: logging.ComponentCLI,
		Layer:     "infrastructure",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create application logger: %v\n", err)
		os.Exit(1)
	}
	bootBuffer.Flush(appLogger)

	correlationID := ports.GenerateCorrelationID()
	ctx := ports.WithCorrelationID(context.Background(), correlationID)

	eventPublisher := events.NewLoggingPublisher(appLogger.With("component", logging.ComponentEventPublisher))
	if _, err := audit.Attach(eventPublisher, audit.New(os.Stderr)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to attach audit sink: %v\n", err)
		os.Exit(1)
	}

	fs := fsops.New(4)
	buildReaper := reaper.New(4)

	app := &AppContext{
		Logger: appLogger,
		Events: eventPublisher,
		Manager: func(manifestPath string) (config.BuildManager, error) {
			return config.NewManager(
				manifestPath,
				appLogger.With("component", logging.ComponentBuildManager),
				eventPublisher,
				pipelinepkg.WithFileSystem(fs),
				pipelinepkg.WithDirectoryReaper(buildReaper),
				pipelinepkg.WithEventPublisher(eventPublisher),
			)
		},
	}

	rootCmd := newRootCmd(app)
	appLogger.Info(ctx, "starting foundrybuild", "pid", os.Getpid())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
