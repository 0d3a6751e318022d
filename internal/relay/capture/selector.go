// Package capture picks the sharpest of a short burst of live frames.
package capture

import (
	"context"
	"time"

	"github.com/autopeer-io/dronerelay/internal/pkg/metrics"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/log"
)

const (
	DefaultSamples  = 5
	DefaultInterval = 33 * time.Millisecond
)

// FrameSource is the read side of the frame cell.
type FrameSource interface {
	Load() *core.Frame
}

// Result is the frame chosen by a capture.
type Result struct {
	// Frame is a private copy; the caller may modify it.
	Frame   *core.Frame
	Score   float64
	Index   int
	Sampled int
}

type Option func(*Selector)

func WithSamples(n int) Option {
	return func(s *Selector) { s.samples = n }
}

func WithInterval(d time.Duration) Option {
	return func(s *Selector) { s.interval = d }
}

// WithScorer replaces FocusScore.
func WithScorer(fn func(*core.Frame) float64) Option {
	return func(s *Selector) { s.score = fn }
}

// Selector samples the frame cell and keeps the highest-scoring frame.
type Selector struct {
	frames   FrameSource
	active   func() bool
	samples  int
	interval time.Duration
	score    func(*core.Frame) float64
	logger   log.Logger
}

// NewSelector reads frames from frames; active reports whether video
// ingest is running.
func NewSelector(frames FrameSource, active func() bool, opts ...Option) *Selector {
	s := &Selector{
		frames:   frames,
		active:   active,
		samples:  DefaultSamples,
		interval: DefaultInterval,
		score:    FocusScore,
		logger:   log.WithName("capture"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture takes up to the configured number of samples, spaced by the
// configured interval, and returns the one with the highest score. Ties keep
// the earliest sample. It fails with StreamNotActive if ingest is not running
// and NoFrameAvailable if every sample was empty.
func (s *Selector) Capture(ctx context.Context) (Result, error) {
	res, err := s.capture(ctx)
	if err != nil {
		result := string(core.KindOf(err))
		if result == "" {
			result = "error"
		}
		metrics.CapturesTotal.WithLabelValues(result).Inc()
		return Result{}, err
	}

	metrics.CapturesTotal.WithLabelValues("ok").Inc()
	metrics.CaptureFocusScore.Observe(res.Score)
	s.logger.Info("Captured frame", "index", res.Index, "score", res.Score, "sampled", res.Sampled)
	return res, nil
}

func (s *Selector) capture(ctx context.Context) (Result, error) {
	if !s.active() {
		return Result{}, core.Errorf(core.KindStreamNotActive, "capture", "video stream is not running")
	}

	var best *core.Frame
	res := Result{Index: -1}

	for i := range s.samples {
		if i > 0 {
			if err := wait(ctx, s.interval); err != nil {
				return Result{}, err
			}
		}
		res.Sampled++

		f := s.frames.Load()
		if f.Empty() {
			continue
		}
		score := s.score(f)
		if best == nil || score > res.Score {
			best, res.Score, res.Index = f, score, i
		}
	}

	if best == nil {
		return Result{}, core.Errorf(core.KindNoFrameAvailable, "capture", "no frame in %d samples", res.Sampled)
	}
	res.Frame = best.Clone()
	return res, nil
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
