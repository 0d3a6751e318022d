package server

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/internal/relay/server/grpc"
	"github.com/autopeer-io/dronerelay/internal/relay/server/http"
	"github.com/autopeer-io/dronerelay/internal/relay/server/mqtt"
	"github.com/autopeer-io/dronerelay/internal/relay/session"
	"github.com/autopeer-io/dronerelay/internal/relay/storage"
	"github.com/autopeer-io/dronerelay/pkg/log"
	pkgmqtt "github.com/autopeer-io/dronerelay/pkg/mqtt"
	"github.com/autopeer-io/dronerelay/pkg/options"
)

// Server defines the common interface for all sub-servers (http, grpc, mqtt).
type Server interface {
	Start(ctx context.Context) error
}

// Config selects which servers run and how.
type Config struct {
	HttpOptions *options.HttpOptions
	GrpcOptions *options.GrpcOptions
	MqttOptions *options.MqttOptions
}

// Services are the relay components the servers expose.
type Services struct {
	Session       *session.Manager
	Photos        storage.Provider
	Encoder       http.FrameEncoder
	Journal       http.Journal
	DefaultSource core.Source
}

// Manager manages the lifecycle of the session and all protocol servers.
type Manager struct {
	servers []Server
}

// NewManager creates a new server manager and initializes all sub-servers.
func NewManager(cfg *Config, svc Services) (*Manager, error) {
	servers := []Server{runner(svc.Session.Run)}

	var broker pkgmqtt.Client
	if cfg.MqttOptions != nil && cfg.MqttOptions.Enabled {
		client, err := newMQTTClient(cfg.MqttOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
		broker = client

		mqttSrv := mqtt.NewServer(client, cfg.MqttOptions, svc.Session)
		svc.Session.OnTransition(mqttSrv.ObserveTransition)
		servers = append(servers, mqttSrv)
	}

	if cfg.GrpcOptions != nil && cfg.GrpcOptions.Enabled {
		grpcSrv := grpc.NewServer(cfg.GrpcOptions)
		svc.Session.OnTransition(grpcSrv.ObserveTransition)
		servers = append(servers, grpcSrv)
	}

	httpSrv := http.NewServer(cfg.HttpOptions, http.Deps{
		Session:       svc.Session,
		Photos:        svc.Photos,
		Encoder:       svc.Encoder,
		Journal:       svc.Journal,
		DefaultSource: svc.DefaultSource,
		Ready:         readiness(broker),
	})
	servers = append(servers, httpSrv)

	return &Manager{
		servers: servers,
	}, nil
}

// Start launches all servers in parallel and waits for termination.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}

type runner func(ctx context.Context) error

func (r runner) Start(ctx context.Context) error { return r(ctx) }

func newMQTTClient(opts *options.MqttOptions) (pkgmqtt.Client, error) {
	cfg := opts.ToClientConfig()
	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("dronerelay-%s", hostname)
	}
	mqtt.ConfigureWill(cfg, opts)

	client, err := pkgmqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}
	return client, nil
}

func readiness(broker pkgmqtt.Client) func() error {
	if broker == nil {
		return nil
	}
	return func() error {
		if !broker.IsConnected() {
			return errors.New("mqtt broker not connected")
		}
		return nil
	}
}
