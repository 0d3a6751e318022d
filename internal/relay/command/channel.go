// Package command implements the request/reply channel to the drone.
// At most one command is in flight; a second caller fails fast instead of
// queueing behind the first.
package command

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/autopeer-io/dronerelay/internal/pkg/metrics"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/log"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond

	// maxStale bounds how many late replies are discarded before a send.
	maxStale = 8
)

// Option configures a Channel.
type Option func(*Channel)

// WithTimeout sets how long Send waits for a reply.
func WithTimeout(d time.Duration) Option {
	return func(c *Channel) { c.timeout = d }
}

// WithPollInterval sets how often a waiting Send checks for cancellation.
func WithPollInterval(d time.Duration) Option {
	return func(c *Channel) { c.poll = d }
}

// WithRecorder registers an observer for every completed exchange.
func WithRecorder(r core.ExchangeRecorder) Option {
	return func(c *Channel) { c.recorder = r }
}

// WithSessionID tags recorded exchanges with the owning session.
func WithSessionID(id string) Option {
	return func(c *Channel) { c.sessionID = id }
}

// Channel sends text commands and waits for the matching reply.
type Channel struct {
	conn      core.CommandConn
	timeout   time.Duration
	poll      time.Duration
	recorder  core.ExchangeRecorder
	sessionID string
	logger    log.Logger

	inflight atomic.Bool
}

// NewChannel wraps conn. The Channel does not own conn; closing it is the
// caller's job.
func NewChannel(conn core.CommandConn, opts ...Option) *Channel {
	c := &Channel{
		conn:    conn,
		timeout: DefaultTimeout,
		poll:    DefaultPollInterval,
		logger:  log.WithName("command"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Busy reports whether a command is awaiting its reply.
func (c *Channel) Busy() bool {
	return c.inflight.Load()
}

// Send transmits command and returns the drone's reply text unchanged.
// It fails with ValidationError for an empty command, AlreadyInProgress if
// another Send is outstanding, TransportError if the datagram cannot be sent
// and Timeout if no reply arrives in time.
func (c *Channel) Send(ctx context.Context, command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", core.Errorf(core.KindValidation, "command", "empty command")
	}

	op := "command " + command
	if !c.inflight.CompareAndSwap(false, true) {
		return "", core.Errorf(core.KindAlreadyInProgress, op, "another command is awaiting its reply")
	}

	ex := core.CommandExchange{SessionID: c.sessionID, Command: command, IssuedAt: time.Now()}
	ex.Reply, ex.Err = c.exchange(ctx, op, command)
	ex.Duration = time.Since(ex.IssuedAt)
	c.inflight.Store(false)

	// Recorders run after the slot is released.
	c.observe(ctx, ex)
	return ex.Reply, ex.Err
}

func (c *Channel) exchange(ctx context.Context, op, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", contextError(op, err)
	}

	c.discardStale()

	c.logger.Info("Sending command", "command", command)
	if err := c.conn.Send([]byte(command)); err != nil {
		return "", core.NewError(core.KindTransport, op, err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		slice := time.Now().Add(c.poll)
		if slice.After(deadline) {
			slice = deadline
		}

		reply, err := c.conn.Recv(slice)
		if err == nil {
			text := strings.TrimSpace(string(reply))
			c.logger.Info("Received reply", "command", command, "reply", text)
			return text, nil
		}
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			return "", core.NewError(core.KindTransport, op, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", contextError(op, ctxErr)
		}
		if !time.Now().Before(deadline) {
			return "", core.Errorf(core.KindTimeout, op, "no reply within %s", c.timeout)
		}
	}
}

// discardStale drops replies that arrived after an earlier Send gave up,
// so they are not mistaken for the reply to the next command.
func (c *Channel) discardStale() {
	for range maxStale {
		reply, err := c.conn.Recv(time.Now().Add(time.Millisecond))
		if err != nil {
			return
		}
		c.logger.Debug("Discarding late reply", "reply", strings.TrimSpace(string(reply)))
	}
}

func (c *Channel) observe(ctx context.Context, ex core.CommandExchange) {
	v := verb(ex.Command)
	metrics.CommandsTotal.WithLabelValues(v, ex.Result()).Inc()
	metrics.CommandLatency.WithLabelValues(v).Observe(ex.Duration.Seconds())

	if ex.Err != nil {
		c.logger.Warn("Command failed", "command", ex.Command, "duration", ex.Duration, "error", ex.Err)
	}

	if c.recorder != nil {
		c.recorder.Record(context.WithoutCancel(ctx), ex)
	}
}

func contextError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewError(core.KindTimeout, op, err)
	}
	return err
}
