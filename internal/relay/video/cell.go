package video

import (
	"sync"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

// Cell holds the single most recent frame. Store overwrites; there is no
// queue. Frames are treated as immutable once stored, so Load hands out the
// stored pointer without copying pixels.
type Cell struct {
	mu    sync.RWMutex
	frame *core.Frame
	seq   uint64
}

// Store takes ownership of f, stamps it with the next sequence number and
// makes it the current frame. The caller must not modify f afterwards.
func (c *Cell) Store(f *core.Frame) {
	if f == nil {
		return
	}
	c.mu.Lock()
	c.seq++
	f.Seq = c.seq
	c.frame = f
	c.mu.Unlock()
}

// Load returns the current frame, or nil if the cell is empty.
func (c *Cell) Load() *core.Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// Seq returns the sequence number of the current frame; 0 when empty.
func (c *Cell) Seq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.frame == nil {
		return 0
	}
	return c.frame.Seq
}

// Clear empties the cell. Sequence numbers keep increasing across clears.
func (c *Cell) Clear() {
	c.mu.Lock()
	c.frame = nil
	c.mu.Unlock()
}
