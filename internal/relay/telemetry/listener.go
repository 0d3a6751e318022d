// Package telemetry keeps the latest drone state broadcast available to
// readers without blocking them on the network.
package telemetry

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/dronerelay/internal/pkg/metrics"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/log"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultStaleAfter   = 5 * time.Second
)

type Option func(*Listener)

func WithClock(c clock.PassiveClock) Option {
	return func(l *Listener) { l.clock = c }
}

func WithPollInterval(d time.Duration) Option {
	return func(l *Listener) { l.poll = d }
}

func WithStaleAfter(d time.Duration) Option {
	return func(l *Listener) { l.staleAfter = d }
}

// Listener receives state records and keeps the newest well-formed one.
type Listener struct {
	conn       core.StateConn
	poll       time.Duration
	staleAfter time.Duration
	clock      clock.PassiveClock
	logger     log.Logger

	// errLimit throttles logging of repeated receive failures.
	errLimit *rate.Limiter

	mu   sync.RWMutex
	snap core.TelemetrySnapshot
}

func NewListener(conn core.StateConn, opts ...Option) *Listener {
	l := &Listener{
		conn:       conn,
		poll:       DefaultPollInterval,
		staleAfter: DefaultStaleAfter,
		clock:      clock.RealClock{},
		logger:     log.WithName("telemetry"),
		errLimit:   rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run receives records until ctx is done. Receive failures are logged and
// never end the loop.
func (l *Listener) Run(ctx context.Context) {
	l.logger.Info("Telemetry listener started")
	defer l.logger.Info("Telemetry listener stopped")

	for ctx.Err() == nil {
		data, err := l.conn.Recv(time.Now().Add(l.poll))
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if l.errLimit.Allow() {
				l.logger.Error(err, "Failed to receive telemetry")
			}
			sleep(ctx, l.poll)
			continue
		}
		l.ingest(string(data))
	}
}

func (l *Listener) ingest(record string) {
	snap, err := Parse(record, l.clock.Now())
	if err != nil {
		metrics.TelemetryRecordsTotal.WithLabelValues("dropped").Inc()
		l.logger.Debug("Dropping malformed telemetry record", "record", record)
		return
	}
	metrics.TelemetryRecordsTotal.WithLabelValues("accepted").Inc()

	l.mu.Lock()
	l.snap = snap
	l.mu.Unlock()
}

// Snapshot returns a copy of the newest record; the zero value if none has
// arrived.
func (l *Listener) Snapshot() core.TelemetrySnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap.Clone()
}

// Stale reports whether the newest record is older than the stale threshold.
func (l *Listener) Stale() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap.Stale(l.clock.Now(), l.staleAfter)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
