package session

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autopeer-io/dronerelay/internal/relay/command"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/internal/relay/telemetry"
)

// UnknownBattery is reported when the battery level could not be read.
const UnknownBattery = -1

// streamSettings are requested before streamon. The drone may reject any
// of them without affecting the stream.
var streamSettings = []string{"setresolution high", "setbitrate 5", "setfps high"}

// Connect opens a session on source and returns the battery percentage.
// Connecting while already connected is a no-op that reports the current
// battery level.
func (m *Manager) Connect(ctx context.Context, source core.Source) (int, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.State().Connected() {
		return m.currentBattery(ctx), nil
	}

	m.event(ctx, EventConnect)

	battery, err := m.open(ctx, source)
	if err != nil {
		m.logger.Error(err, "Connect failed", "source", source)
		m.event(ctx, EventFail)
		m.event(ctx, EventReset)
		if core.KindOf(err) == "" && ctx.Err() == nil {
			err = core.NewError(core.KindTransport, "connect", err)
		}
		return UnknownBattery, err
	}

	m.event(ctx, EventConnected)
	m.logger.Info("Session connected", "id", m.Status().SessionID, "source", source, "battery", battery)
	return battery, nil
}

func (m *Manager) open(ctx context.Context, source core.Source) (int, error) {
	id := uuid.NewString()

	if source == core.SourceCamera {
		if m.camera == nil {
			return UnknownBattery, core.Errorf(core.KindValidation, "connect", "no camera source configured")
		}
		m.attach(id, source, nil, nil, nil)
		return UnknownBattery, nil
	}

	link, err := m.dialer.Dial(ctx)
	if err != nil {
		return UnknownBattery, core.NewError(core.KindTransport, "connect", err)
	}

	opts := append([]command.Option{command.WithSessionID(id)}, m.commandOpts...)
	if m.recorder != nil {
		opts = append(opts, command.WithRecorder(m.recorder))
	}
	ch := command.NewChannel(link.Command(), opts...)

	reply, err := ch.Send(ctx, "command")
	if err == nil && reply != "ok" {
		err = core.Errorf(core.KindTransport, "connect", "drone refused SDK mode: %q", reply)
	}
	if err != nil {
		if cerr := link.Close(); cerr != nil {
			m.logger.Warn("Failed to close drone link", "error", cerr)
		}
		return UnknownBattery, err
	}

	listener := telemetry.NewListener(link.State(), m.telemetryOpts...)
	m.attach(id, source, link, ch, listener)

	return m.queryBattery(ctx, ch), nil
}

// attach installs a new session and starts its telemetry loop.
func (m *Manager) attach(id string, source core.Source, link core.Link, ch *command.Channel, l *telemetry.Listener) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.id, m.source, m.createdAt = id, source, time.Now()
	m.link, m.channel, m.listener = link, ch, l
	m.runCtx, m.cancel, m.done = runCtx, cancel, done
	m.mu.Unlock()

	if l == nil {
		close(done)
		return
	}
	go func() {
		defer close(done)
		l.Run(runCtx)
	}()
}

// Battery reports the charge percentage of the connected drone, preferring
// telemetry over a query. It returns UnknownBattery when neither answers.
func (m *Manager) Battery(ctx context.Context) (int, error) {
	if !m.State().Connected() {
		return UnknownBattery, core.Errorf(core.KindNotConnected, "battery", "no live session")
	}
	return m.currentBattery(ctx), nil
}

func (m *Manager) currentBattery(ctx context.Context) int {
	if snap := m.Telemetry(); snap.Has("bat") {
		return snap.Battery
	}
	m.mu.RLock()
	ch := m.channel
	m.mu.RUnlock()
	if ch == nil {
		return UnknownBattery
	}
	return m.queryBattery(ctx, ch)
}

func (m *Manager) queryBattery(ctx context.Context, ch *command.Channel) int {
	reply, err := ch.Send(ctx, "battery?")
	if err != nil {
		m.logger.Warn("Battery query failed", "error", err)
		return UnknownBattery
	}
	pct, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		m.logger.Warn("Unexpected battery reply", "reply", reply)
		return UnknownBattery
	}
	return pct
}

// StartStreaming enables the drone's video and starts ingest. Optional
// quality settings are best-effort; streamon must be acknowledged.
// Starting an already running stream is a no-op.
func (m *Manager) StartStreaming(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	switch m.State() {
	case core.StateStreaming:
		return nil
	case core.StateConnected:
	default:
		return core.Errorf(core.KindNotConnected, "start stream", "no live session")
	}

	m.mu.RLock()
	link, ch, runCtx := m.link, m.channel, m.runCtx
	m.mu.RUnlock()

	var src core.VideoSource
	if ch != nil {
		for _, cmd := range streamSettings {
			if reply, err := ch.Send(ctx, cmd); err != nil || reply != "ok" {
				m.logger.Warn("Optional stream setting not applied", "command", cmd, "reply", reply, "error", err)
			}
		}

		reply, err := ch.Send(ctx, "streamon")
		if err != nil {
			return err
		}
		if reply != "ok" {
			return core.Errorf(core.KindTransport, "start stream", "drone refused streamon: %q", reply)
		}
		src = link.Video()
	} else {
		src = m.camera()
	}

	if err := m.ingest.Start(runCtx, src); err != nil {
		if ch != nil {
			if _, serr := ch.Send(ctx, "streamoff"); serr != nil {
				m.logger.Warn("streamoff after failed start", "error", serr)
			}
		}
		return err
	}

	if m.firstFrameWait > 0 && !m.ingest.WaitFirstFrame(ctx, m.firstFrameWait) {
		m.logger.Warn("No frame decoded yet", "waited", m.firstFrameWait)
	}

	m.event(ctx, EventStreamOn)
	return nil
}

// StopStreaming stops ingest, clears the frame cell and drops every live
// viewer. The session returns to connected even if part of the teardown
// failed; those failures are returned.
func (m *Manager) StopStreaming(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	switch m.State() {
	case core.StateConnected:
		return nil
	case core.StateStreaming:
	default:
		return core.Errorf(core.KindNotConnected, "stop stream", "no live session")
	}

	err := m.stopStream(ctx)
	m.event(ctx, EventStreamOff)
	return err
}

func (m *Manager) stopStream(ctx context.Context) error {
	var errs []error
	if err := m.ingest.Stop(); err != nil {
		errs = append(errs, err)
	}

	m.mu.RLock()
	ch := m.channel
	m.mu.RUnlock()
	if ch != nil {
		if _, err := ch.Send(ctx, "streamoff"); err != nil {
			errs = append(errs, err)
		}
	}

	m.hub.Reset()
	return errors.Join(errs...)
}

// Disconnect tears the session down and always ends in disconnected.
// Teardown failures are logged, never returned.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	state := m.State()
	if state == core.StateDisconnected {
		return nil
	}
	m.event(ctx, EventDisconnect)

	if state == core.StateStreaming || m.ingest.Active() {
		if err := m.stopStream(ctx); err != nil {
			m.logger.Warn("Stream teardown failed", "error", err)
		}
	}

	m.mu.Lock()
	link, cancel, done, id := m.link, m.cancel, m.done, m.id
	m.id, m.source, m.createdAt = "", "", time.Time{}
	m.link, m.channel, m.listener = nil, nil, nil
	m.runCtx, m.cancel, m.done = nil, nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if link != nil {
		if err := link.Close(); err != nil {
			m.logger.Warn("Failed to close drone link", "error", err)
		}
	}

	m.event(ctx, EventDisconnected)
	if m.State() != core.StateDisconnected {
		m.fsm.SetState(string(core.StateDisconnected))
		setStateMetric(core.StateDisconnected)
	}
	m.logger.Info("Session disconnected", "id", id)
	return nil
}
