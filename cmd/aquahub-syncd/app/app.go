package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/aquahub-io/aquahub/cmd/aquahub-syncd/app/options"
	"github.com/aquahub-io/aquahub/pkg/app"
)

const (
	commandName = "aquahub-syncd"
	commandDesc = `The AquaHub sync daemon keeps water-tank telemetry fresh: it polls the
vendor IoT cloud for every linked device, normalizes the reported datapoints,
derives status categories and alerts, and serves the result over HTTP with a
freshness-aware cache backed by a persistent Redis fallback store.`
)

func NewApp() *app.App {
	opts := options.NewSyncdOptions()
	application := app.NewApp(
		commandName,
		"Launch the AquaHub device-state sync daemon",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
		app.WithSubcommands(newDevicesCommand()),
	)
	return application
}

func run(opts *options.SyncdOptions) app.RunFunc {
	return func() error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewSyncHubServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create sync hub server: %w", err)
		}

		return server.Run(ctx)
	}
}
