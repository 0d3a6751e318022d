package core

import (
	"context"
	"time"
)

// CommandConn is the datagram link commands travel over.
// Recv returns an error satisfying errors.Is(err, os.ErrDeadlineExceeded)
// when nothing arrives before deadline.
type CommandConn interface {
	Send(payload []byte) error
	Recv(deadline time.Time) ([]byte, error)
	Close() error
}

// StateConn receives telemetry records.
type StateConn interface {
	Recv(deadline time.Time) ([]byte, error)
	Close() error
}

// VideoSource produces decoded frames.
type VideoSource interface {
	// Start begins producing frames. The source stops when ctx ends or Stop is called.
	Start(ctx context.Context) error
	Stop() error
	// ReadFrame returns the next decoded frame, or nil if none is ready yet.
	// It never blocks for long.
	ReadFrame() (*Frame, error)
}

// Link is an open connection to one drone.
type Link interface {
	Command() CommandConn
	State() StateConn
	Video() VideoSource
	Close() error
}

// Dialer opens Links.
type Dialer interface {
	Dial(ctx context.Context) (Link, error)
}

// Sink is a live-viewer subscriber endpoint. Send must not block for long;
// a returned error removes the subscriber.
type Sink interface {
	Send(payload []byte) error
	Close() error
}

// ExchangeRecorder observes every command exchange.
type ExchangeRecorder interface {
	Record(ctx context.Context, ex CommandExchange)
}
