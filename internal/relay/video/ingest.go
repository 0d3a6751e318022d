// Package video moves decoded frames from a VideoSource into the
// single-slot Cell that live viewers and captures read from.
package video

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/autopeer-io/dronerelay/internal/pkg/metrics"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/log"
)

const DefaultPollInterval = 10 * time.Millisecond

// Ingest runs one VideoSource at a time and copies its frames into a Cell.
type Ingest struct {
	cell     *Cell
	poll     time.Duration
	logger   log.Logger
	errLimit *rate.Limiter

	mu     sync.Mutex
	src    core.VideoSource
	cancel context.CancelFunc
	done   chan struct{}
}

func NewIngest(cell *Cell, poll time.Duration) *Ingest {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Ingest{
		cell:     cell,
		poll:     poll,
		logger:   log.WithName("ingest"),
		errLimit: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// Start starts src and the ingest loop. ctx bounds the loop's lifetime and
// must outlive the request that triggered Start.
func (i *Ingest) Start(ctx context.Context, src core.VideoSource) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.src != nil {
		return core.Errorf(core.KindAlreadyInProgress, "video ingest", "already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := src.Start(runCtx); err != nil {
		cancel()
		return core.NewError(core.KindTransport, "video ingest", err)
	}

	i.cell.Clear()
	i.src, i.cancel, i.done = src, cancel, make(chan struct{})
	go i.run(runCtx, src, i.done)

	i.logger.Info("Video ingest started")
	return nil
}

// Stop ends the loop, stops the source and clears the cell. Stopping an
// idle Ingest is a no-op.
func (i *Ingest) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.src == nil {
		return nil
	}

	i.cancel()
	<-i.done
	err := i.src.Stop()

	i.src, i.cancel, i.done = nil, nil, nil
	i.cell.Clear()

	i.logger.Info("Video ingest stopped")
	return err
}

// Active reports whether a source is running.
func (i *Ingest) Active() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.src != nil
}

// WaitFirstFrame blocks until the cell holds a frame, timeout passes or ctx
// ends, and reports whether a frame arrived.
func (i *Ingest) WaitFirstFrame(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for i.cell.Seq() == 0 {
		if !time.Now().Before(deadline) || ctx.Err() != nil {
			return false
		}
		sleep(ctx, i.poll)
	}
	return true
}

func (i *Ingest) run(ctx context.Context, src core.VideoSource, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		frame, err := src.ReadFrame()
		if err != nil {
			if i.errLimit.Allow() {
				i.logger.Error(err, "Video source read failed")
			}
			sleep(ctx, i.poll)
			continue
		}
		if frame.Empty() {
			sleep(ctx, i.poll)
			continue
		}

		i.cell.Store(frame)
		metrics.FramesIngestedTotal.Inc()
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
