package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/autopeer-io/dronerelay/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/log"
	pkgmqtt "github.com/autopeer-io/dronerelay/pkg/mqtt"
	"github.com/autopeer-io/dronerelay/pkg/mqtt/topic"
	"github.com/autopeer-io/dronerelay/pkg/options"
)

const qos = 1

// kindRateLimited marks acks for commands refused by the bridge's own rate
// limit, before they reach the drone.
const kindRateLimited = "RateLimited"

// Session is the part of the session manager the bridge drives.
type Session interface {
	SendRaw(ctx context.Context, command string) (string, error)
	Status() core.Status
}

// Server bridges the session to an MQTT broker: it publishes telemetry and
// state and executes remote commands.
type Server struct {
	client   pkgmqtt.Client
	topics   *topic.Builder
	droneID  string
	session  Session
	interval time.Duration
	limiter  *rate.Limiter
	logger   log.Logger

	states chan stateMessage
}

// NewServer creates the bridge. The client should carry the will built by
// ConfigureWill.
func NewServer(client pkgmqtt.Client, opts *options.MqttOptions, session Session) *Server {
	return &Server{
		client:   client,
		topics:   topic.NewBuilder(opts.TopicRoot),
		droneID:  opts.DroneID,
		session:  session,
		interval: opts.TelemetryInterval,
		limiter:  rate.NewLimiter(rate.Limit(opts.CommandRate), opts.CommandBurst),
		logger:   log.WithName("mqtt-bridge"),
		states:   make(chan stateMessage, 16),
	}
}

// ConfigureWill makes the broker mark the relay offline if it vanishes.
func ConfigureWill(cfg *pkgmqtt.ClientConfig, opts *options.MqttOptions) {
	cfg.WillTopic = topic.NewBuilder(opts.TopicRoot).Build(paths.Online, opts.DroneID)
	cfg.WillPayload = []byte(payloadOffline)
	cfg.WillQoS = qos
	cfg.WillRetain = true
}

// ObserveTransition queues a retained state publication. It never blocks;
// transitions are dropped while the queue is full.
func (s *Server) ObserveTransition(from, to core.State) {
	msg := stateMessage{DroneID: s.droneID, From: from, State: to, Timestamp: time.Now()}
	select {
	case s.states <- msg:
	default:
		s.logger.Warn("State publication queue full, dropping transition", "to", to)
	}
}

// Start connects to the broker and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	// 1. Start the connection manager (Non-blocking)
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publish(shutdownCtx, paths.Online, true, []byte(payloadOffline)); err != nil {
			s.logger.Warn("Failed to publish offline status", "error", err)
		}
		log.Info("Disconnecting MQTT client...")
		s.client.Disconnect(shutdownCtx)
		log.Info("MQTT client disconnected")
	}()

	// 2. Wait for the initial connection to be established
	log.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		return err
	}
	log.Info("MQTT Connected")

	if err := s.publish(ctx, paths.Online, true, []byte(payloadOnline)); err != nil {
		s.logger.Warn("Failed to publish online status", "error", err)
	}

	commandTopic := s.topics.Build(paths.Command, s.droneID)
	if err := s.client.Subscribe(ctx, commandTopic, qos, s.handleCommand); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %s, err: %w", commandTopic, err)
	}

	s.publishState(ctx, stateMessage{DroneID: s.droneID, State: s.session.Status().State, Timestamp: time.Now()})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.states:
			s.publishState(ctx, msg)
		case <-ticker.C:
			s.publishTelemetry(ctx)
		}
	}
}

func (s *Server) handleCommand(ctx context.Context, _ string, payload []byte) {
	var req commandRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Warn("Dropping malformed command message", "error", err)
		return
	}

	if !s.limiter.Allow() {
		s.ack(ctx, commandAck{ID: req.ID, Command: req.Command, Error: "rate limit exceeded", Kind: kindRateLimited})
		return
	}

	// Replies can take seconds; keep the router free for other messages.
	go func() {
		reply, err := s.session.SendRaw(context.WithoutCancel(ctx), req.Command)
		ack := commandAck{ID: req.ID, Command: req.Command, Reply: reply}
		if err != nil {
			ack.Error, ack.Kind = err.Error(), string(core.KindOf(err))
		}
		s.ack(context.WithoutCancel(ctx), ack)
	}()
}

func (s *Server) ack(ctx context.Context, ack commandAck) {
	data, _ := json.Marshal(ack)
	if err := s.publish(ctx, paths.CommandAck, false, data); err != nil {
		s.logger.Error(err, "Failed to publish command ack", "id", ack.ID)
	}
}

func (s *Server) publishState(ctx context.Context, msg stateMessage) {
	data, _ := json.Marshal(msg)
	if err := s.publish(ctx, paths.State, true, data); err != nil {
		s.logger.Warn("Failed to publish session state", "state", msg.State, "error", err)
	}
}

func (s *Server) publishTelemetry(ctx context.Context) {
	st := s.session.Status()
	if !st.State.Connected() || st.Telemetry.IsZero() {
		return
	}
	data, err := json.Marshal(newTelemetryMessage(s.droneID, st))
	if err != nil {
		s.logger.Error(err, "Failed to encode telemetry")
		return
	}
	if err := s.publish(ctx, paths.Telemetry, false, data); err != nil {
		s.logger.Warn("Failed to publish telemetry", "error", err)
	}
}

func (s *Server) publish(ctx context.Context, segment string, retain bool, payload []byte) error {
	if !s.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	return s.client.Publish(ctx, s.topics.Build(segment, s.droneID), qos, retain, payload)
}
