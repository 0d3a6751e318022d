// Package session owns the lifecycle of the one live drone connection and
// exposes the operations the API layers call.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"

	fsmutil "github.com/autopeer-io/dronerelay/internal/pkg/util/fsm"
	"github.com/autopeer-io/dronerelay/internal/relay/capture"
	"github.com/autopeer-io/dronerelay/internal/relay/command"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/internal/relay/fanout"
	"github.com/autopeer-io/dronerelay/internal/relay/telemetry"
	"github.com/autopeer-io/dronerelay/internal/relay/video"
	"github.com/autopeer-io/dronerelay/pkg/log"
)

// TransitionFunc observes state changes. It runs on the goroutine driving
// the transition and must not call back into the Manager.
type TransitionFunc func(from, to core.State)

type Option func(*Manager)

// WithRecorder observes every command exchange of every session.
func WithRecorder(r core.ExchangeRecorder) Option {
	return func(m *Manager) { m.recorder = r }
}

func WithCommandOptions(opts ...command.Option) Option {
	return func(m *Manager) { m.commandOpts = append(m.commandOpts, opts...) }
}

func WithTelemetryOptions(opts ...telemetry.Option) Option {
	return func(m *Manager) { m.telemetryOpts = append(m.telemetryOpts, opts...) }
}

func WithCaptureOptions(opts ...capture.Option) Option {
	return func(m *Manager) { m.captureOpts = append(m.captureOpts, opts...) }
}

func WithIngestPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.ingestPoll = d }
}

// WithFanout sets the encoder and cadence used for live viewers.
func WithFanout(encoder fanout.Encoder, interval time.Duration) Option {
	return func(m *Manager) { m.encoder, m.fanoutInterval = encoder, interval }
}

// WithFirstFrameWait makes StartStreaming wait up to d for the first decoded
// frame. Zero disables the wait.
func WithFirstFrameWait(d time.Duration) Option {
	return func(m *Manager) { m.firstFrameWait = d }
}

// WithCameraSource sets the factory for secondary camera sessions.
func WithCameraSource(fn func() core.VideoSource) Option {
	return func(m *Manager) { m.camera = fn }
}

// Manager drives one session at a time through its state machine.
// Lifecycle operations are serialized; flight commands only contend on the
// command channel.
type Manager struct {
	dialer         core.Dialer
	camera         func() core.VideoSource
	recorder       core.ExchangeRecorder
	commandOpts    []command.Option
	telemetryOpts  []telemetry.Option
	captureOpts    []capture.Option
	ingestPoll     time.Duration
	encoder        fanout.Encoder
	fanoutInterval time.Duration
	firstFrameWait time.Duration
	logger         log.Logger

	fsm      *fsm.FSM
	cell     *video.Cell
	ingest   *video.Ingest
	hub      *fanout.Hub
	selector *capture.Selector

	opMu sync.Mutex

	mu        sync.RWMutex
	id        string
	source    core.Source
	createdAt time.Time
	link      core.Link
	channel   *command.Channel
	listener  *telemetry.Listener
	cancel    context.CancelFunc
	runCtx    context.Context
	done      chan struct{}

	obsMu     sync.RWMutex
	observers []TransitionFunc
}

// New creates a Manager that opens drone links with dialer.
func New(dialer core.Dialer, opts ...Option) *Manager {
	m := &Manager{
		dialer:  dialer,
		encoder: video.JPEGEncoder{Quality: 95},
		logger:  log.WithName("session"),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.cell = &video.Cell{}
	m.ingest = video.NewIngest(m.cell, m.ingestPoll)
	m.hub = fanout.NewHub(m.cell, m.encoder, m.fanoutInterval)
	m.selector = capture.NewSelector(m.cell, m.ingest.Active, m.captureOpts...)
	m.fsm = newFSM(m.onEnterState)

	setStateMetric(core.StateDisconnected)
	return m
}

// OnTransition registers fn to observe every state change.
func (m *Manager) OnTransition(fn TransitionFunc) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Manager) onEnterState(_ context.Context, e *fsm.Event) error {
	from, to := core.State(e.Src), core.State(e.Dst)
	m.logger.Info("Session state changed", "event", e.Event, "from", from, "to", to)
	setStateMetric(to)

	m.obsMu.RLock()
	observers := m.observers
	m.obsMu.RUnlock()
	for _, fn := range observers {
		fn(from, to)
	}
	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() core.State {
	return core.State(m.fsm.Current())
}

// Active reports whether a session exists in any state but disconnected.
func (m *Manager) Active() bool {
	return m.State() != core.StateDisconnected
}

// Status returns a snapshot of the session and its latest telemetry.
func (m *Manager) Status() core.Status {
	st := core.Status{State: m.State()}
	st.Streaming = st.State == core.StateStreaming

	m.mu.RLock()
	defer m.mu.RUnlock()
	st.SessionID, st.Source, st.CreatedAt = m.id, m.source, m.createdAt
	if m.listener != nil {
		st.Telemetry = m.listener.Snapshot()
		st.Stale = m.listener.Stale()
	} else {
		st.Stale = true
	}
	return st
}

// Telemetry returns the newest telemetry snapshot; the zero value when no
// drone is connected.
func (m *Manager) Telemetry() core.TelemetrySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listener == nil {
		return core.TelemetrySnapshot{}
	}
	return m.listener.Snapshot()
}

// Capture returns the sharpest of a short burst of live frames.
func (m *Manager) Capture(ctx context.Context) (capture.Result, error) {
	return m.selector.Capture(ctx)
}

// Subscribe registers a live viewer.
func (m *Manager) Subscribe(sink core.Sink) fanout.Handle {
	return m.hub.Subscribe(sink)
}

func (m *Manager) Unsubscribe(h fanout.Handle) {
	m.hub.Unsubscribe(h)
}

// Subscribed reports whether h is still receiving frames.
func (m *Manager) Subscribed(h fanout.Handle) bool {
	return m.hub.Has(h)
}

// Run drives frame fan-out until ctx is done, then tears down any live
// session.
func (m *Manager) Run(ctx context.Context) error {
	m.hub.Run(ctx)
	return m.Disconnect(context.WithoutCancel(ctx))
}

func (m *Manager) event(ctx context.Context, name string) {
	if err := m.fsm.Event(context.WithoutCancel(ctx), name); err != nil && !fsmutil.IsNoTransition(err) {
		m.logger.Error(err, "Invalid session transition", "event", name, "state", m.fsm.Current(), "available", fsmutil.Reachable(m.fsm))
	}
}
