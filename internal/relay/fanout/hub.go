// Package fanout pushes the latest frame to every live viewer at a fixed
// cadence. A slow or failing viewer never delays the others.
package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autopeer-io/dronerelay/internal/pkg/metrics"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/log"
)

const DefaultInterval = 33 * time.Millisecond

// Handle identifies a subscription.
type Handle string

// FrameSource is the read side of the frame cell.
type FrameSource interface {
	Load() *core.Frame
}

// Encoder turns a frame into the bytes delivered to viewers.
type Encoder interface {
	Encode(f *core.Frame) ([]byte, error)
}

// Hub delivers each new frame, encoded once, to all subscribers.
type Hub struct {
	frames   FrameSource
	encoder  Encoder
	interval time.Duration
	logger   log.Logger

	mu   sync.RWMutex
	subs map[Handle]*subscriber

	lastSeq uint64
}

func NewHub(frames FrameSource, encoder Encoder, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Hub{
		frames:   frames,
		encoder:  encoder,
		interval: interval,
		logger:   log.WithName("fanout"),
		subs:     make(map[Handle]*subscriber),
	}
}

// Subscribe registers sink and starts its delivery goroutine.
func (h *Hub) Subscribe(sink core.Sink) Handle {
	id := Handle(uuid.NewString())
	s := newSubscriber(id, sink)

	h.mu.Lock()
	h.subs[id] = s
	n := len(h.subs)
	h.mu.Unlock()

	go s.run(h.onFailure)

	metrics.Subscribers.Set(float64(n))
	h.logger.Info("Subscriber added", "id", id, "subscribers", n)
	return id
}

// Unsubscribe removes and closes the subscription. Unknown handles are ignored.
func (h *Hub) Unsubscribe(id Handle) {
	h.remove(id, "unsubscribed")
}

// Has reports whether id is still subscribed.
func (h *Hub) Has(id Handle) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[id]
	return ok
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Reset removes and closes every subscriber.
func (h *Hub) Reset() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[Handle]*subscriber)
	h.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
	metrics.Subscribers.Set(0)
	if len(subs) > 0 {
		h.logger.Info("All subscribers removed", "count", len(subs))
	}
}

// Run ticks until ctx is done, then removes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	defer h.Reset()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Tick()
		}
	}
}

// Tick delivers the current frame if it is newer than the last one
// delivered. Subscribers are snapshotted first so Subscribe/Unsubscribe
// never wait on delivery. Tick must not be called concurrently with itself.
func (h *Hub) Tick() {
	h.mu.RLock()
	if len(h.subs) == 0 {
		h.mu.RUnlock()
		return
	}
	subs := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	frame := h.frames.Load()
	if frame == nil || frame.Seq == h.lastSeq {
		return
	}
	h.lastSeq = frame.Seq

	payload, err := h.encoder.Encode(frame)
	if err != nil {
		h.logger.Error(err, "Failed to encode frame", "seq", frame.Seq)
		return
	}

	for _, s := range subs {
		s.offer(payload)
	}
}

func (h *Hub) onFailure(id Handle, err error) {
	metrics.FanoutDeliveriesTotal.WithLabelValues("failed").Inc()
	h.logger.Warn("Dropping subscriber after failed send", "id", id, "error", err)
	h.remove(id, "send failed")
}

func (h *Hub) remove(id Handle, reason string) {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	n := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return
	}
	s.close()
	metrics.Subscribers.Set(float64(n))
	h.logger.Info("Subscriber removed", "id", id, "reason", reason, "subscribers", n)
}
