package relay

import (
	"context"
	"fmt"

	"github.com/autopeer-io/dronerelay/internal/relay/capture"
	"github.com/autopeer-io/dronerelay/internal/relay/command"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/internal/relay/hal"
	"github.com/autopeer-io/dronerelay/internal/relay/journal"
	"github.com/autopeer-io/dronerelay/internal/relay/server"
	"github.com/autopeer-io/dronerelay/internal/relay/session"
	"github.com/autopeer-io/dronerelay/internal/relay/storage"
	"github.com/autopeer-io/dronerelay/internal/relay/telemetry"
	"github.com/autopeer-io/dronerelay/internal/relay/video"
	"github.com/autopeer-io/dronerelay/pkg/options"
)

type Config struct {
	DroneOptions   *options.DroneOptions
	VideoOptions   *options.VideoOptions
	StorageOptions *options.StorageOptions
	JournalOptions *options.JournalOptions
	HttpOptions    *options.HttpOptions
	GrpcOptions    *options.GrpcOptions
	MqttOptions    *options.MqttOptions
	S3Options      *options.S3Options
}

// NewRelay assembles the drone link, the session and its servers.
func (cfg *Config) NewRelay(ctx context.Context) (*Relay, error) {
	// 1. Infrastructure: drone link and local camera
	dialer, camera := cfg.newDialer()

	// 2. Infrastructure: command journal (optional)
	var jrnl *journal.Journal
	if cfg.JournalOptions.Path != "" {
		j, err := journal.Open(ctx, cfg.JournalOptions.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		jrnl = j
	}

	// 3. Infrastructure: photo store
	photos, err := cfg.newPhotoProvider()
	if err != nil {
		closeJournal(jrnl)
		return nil, fmt.Errorf("failed to init photo storage: %w", err)
	}

	// 4. Core: the session manager
	sess := session.New(dialer, cfg.sessionOptions(camera, jrnl)...)

	// 5. Ingress servers
	source, _ := core.ParseSource(cfg.DroneOptions.Source)
	svc := server.Services{
		Session:       sess,
		Photos:        photos,
		Encoder:       video.JPEGEncoder{Quality: cfg.VideoOptions.PhotoQuality},
		DefaultSource: source,
	}
	if jrnl != nil {
		svc.Journal = jrnl
	}
	serverConfig := &server.Config{
		HttpOptions: cfg.HttpOptions,
		GrpcOptions: cfg.GrpcOptions,
		MqttOptions: cfg.MqttOptions,
	}
	srvManager, err := server.NewManager(serverConfig, svc)
	if err != nil {
		closeJournal(jrnl)
		return nil, fmt.Errorf("failed to init server manager: %w", err)
	}

	return &Relay{
		serverManager: srvManager,
		photos:        photos,
		journal:       jrnl,
	}, nil
}

func (cfg *Config) newDialer() (core.Dialer, func() core.VideoSource) {
	if cfg.DroneOptions.Simulate {
		sim := hal.NewSim(hal.WithFrameSize(cfg.VideoOptions.Width, cfg.VideoOptions.Height))
		return sim, sim.CameraSource
	}
	return hal.NewUDPDialer(cfg.DroneOptions, cfg.VideoOptions), func() core.VideoSource {
		return video.NewCameraSource(cfg.VideoOptions)
	}
}

func (cfg *Config) newPhotoProvider() (storage.Provider, error) {
	if cfg.S3Options.Enabled {
		return storage.NewMinIOProvider(cfg.S3Options)
	}
	return storage.NewLocalProvider(cfg.StorageOptions.PhotoDir), nil
}

func (cfg *Config) sessionOptions(camera func() core.VideoSource, jrnl *journal.Journal) []session.Option {
	drone, vid := cfg.DroneOptions, cfg.VideoOptions

	opts := []session.Option{
		session.WithCameraSource(camera),
		session.WithCommandOptions(
			command.WithTimeout(drone.CommandTimeout),
			command.WithPollInterval(drone.PollInterval),
		),
		session.WithTelemetryOptions(
			telemetry.WithPollInterval(drone.PollInterval),
			telemetry.WithStaleAfter(drone.StaleAfter),
		),
		session.WithCaptureOptions(
			capture.WithSamples(vid.CaptureSamples),
			capture.WithInterval(vid.CaptureInterval),
		),
		session.WithIngestPollInterval(vid.IngestPollInterval),
		session.WithFanout(video.JPEGEncoder{Quality: vid.StreamQuality, MaxWidth: vid.PreviewMaxWidth}, vid.FanoutInterval),
		session.WithFirstFrameWait(vid.FirstFrameWait),
	}
	if jrnl != nil {
		opts = append(opts, session.WithRecorder(jrnl))
	}
	return opts
}
