package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/dronerelay/cmd/dronerelay/app/options"
	"github.com/autopeer-io/dronerelay/pkg/app"
)

const (
	commandName = "dronerelay"
	commandDesc = `The drone relay owns the UDP link to a Tello-class drone and exposes it
over a local HTTP API. Commands are serialized one at a time, and the decoded
video stream is fanned out to any number of browser viewers.

gRPC health checks, the MQTT bridge, the command journal and S3 photo storage
are off by default and enabled with their own flags.`
)

func NewApp() *app.App {
	opts := options.NewRelayOptions()
	application := app.NewApp(
		commandName,
		"Launch the drone command and video relay",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.RelayOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewRelay(ctx)
		if err != nil {
			return fmt.Errorf("failed to create relay: %w", err)
		}

		return server.Run(ctx)
	}
}
