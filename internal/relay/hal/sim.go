package hal

import (
	"context"
	"fmt"
	"image"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/log"
)

var _ core.Dialer = (*Sim)(nil)

type SimOption func(*Sim)

func WithFrameSize(w, h int) SimOption {
	return func(s *Sim) { s.frameW, s.frameH = w, h }
}

func WithStateInterval(d time.Duration) SimOption {
	return func(s *Sim) { s.stateEvery = d }
}

func WithFrameInterval(d time.Duration) SimOption {
	return func(s *Sim) { s.frameEvery = d }
}

func WithBattery(pct int) SimOption {
	return func(s *Sim) { s.battery = pct }
}

// Sim is an in-process drone. It answers text SDK commands, broadcasts state
// records and produces synthetic video once "streamon" is acknowledged.
// Replies and failures can be scripted per command.
type Sim struct {
	frameW, frameH int
	stateEvery     time.Duration
	frameEvery     time.Duration

	mu        sync.Mutex
	battery   int
	altitude  int
	flying    bool
	streaming bool
	replies   map[string]string
	silent    map[string]bool
	dialErr   error
	closeErr  error
	commands  []string
	started   time.Time
}

func NewSim(opts ...SimOption) *Sim {
	s := &Sim{
		frameW:     320,
		frameH:     240,
		stateEvery: 100 * time.Millisecond,
		frameEvery: 33 * time.Millisecond,
		battery:    87,
		replies:    map[string]string{},
		silent:     map[string]bool{},
		started:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReply makes the drone answer cmd (a full command or just its verb) with reply.
func (s *Sim) SetReply(cmd, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[cmd] = reply
}

// SetSilent makes the drone never answer cmd (a full command or just its verb).
func (s *Sim) SetSilent(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent[cmd] = true
}

// SetDialError makes Dial fail with err; nil restores normal dialing.
func (s *Sim) SetDialError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialErr = err
}

// SetCloseError makes Link.Close return err.
func (s *Sim) SetCloseError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeErr = err
}

// Commands returns every command received so far, in order.
func (s *Sim) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Streaming reports whether the drone is currently sending video.
func (s *Sim) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

func (s *Sim) Dial(context.Context) (core.Link, error) {
	s.mu.Lock()
	err := s.dialErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	closed := make(chan struct{})
	log.Info("Simulated drone link opened")
	return &simLink{
		sim:    s,
		closed: closed,
		cmd:    &simCommandConn{sim: s, closed: closed, replies: make(chan []byte, 16)},
		state:  &simStateConn{sim: s, closed: closed},
		video:  &simVideo{sim: s, requireStream: true},
	}, nil
}

// CameraSource returns a synthetic video source that runs without streamon.
func (s *Sim) CameraSource() core.VideoSource {
	return &simVideo{sim: s}
}

func (s *Sim) respond(command string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, command)
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "error", true
	}
	verb := fields[0]

	if s.silent[command] || s.silent[verb] {
		return "", false
	}
	if r, ok := s.replies[command]; ok {
		return r, true
	}
	if r, ok := s.replies[verb]; ok {
		return r, true
	}

	arg := 0
	if len(fields) > 1 {
		arg, _ = strconv.Atoi(fields[1])
	}

	switch verb {
	case "battery?":
		return strconv.Itoa(s.battery), true
	case "height?":
		return fmt.Sprintf("%ddm", s.altitude/10), true
	case "streamon":
		s.streaming = true
	case "streamoff":
		s.streaming = false
	case "takeoff":
		s.flying, s.altitude = true, 80
	case "land", "emergency":
		s.flying, s.altitude = false, 0
	case "up":
		s.altitude += arg
	case "down":
		s.altitude = max(s.altitude-arg, 0)
	}
	return "ok", true
}

func (s *Sim) stateRecord() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tof := 10
	if s.flying {
		tof = s.altitude + 10
	}
	return fmt.Sprintf("pitch:0;roll:0;yaw:0;vgx:0;vgy:0;vgz:0;templ:60;temph:62;tof:%d;h:%d;bat:%d;baro:%.2f;time:%d;agx:0.00;agy:0.00;agz:-1000.00;\r\n",
		tof, s.altitude, s.battery, 180+float64(s.altitude)/100, int(time.Since(s.started).Seconds()))
}

type simLink struct {
	sim    *Sim
	closed chan struct{}
	once   sync.Once
	cmd    *simCommandConn
	state  *simStateConn
	video  *simVideo
}

func (l *simLink) Command() core.CommandConn { return l.cmd }
func (l *simLink) State() core.StateConn     { return l.state }
func (l *simLink) Video() core.VideoSource   { return l.video }

func (l *simLink) Close() error {
	l.once.Do(func() { close(l.closed) })
	_ = l.video.Stop()

	l.sim.mu.Lock()
	defer l.sim.mu.Unlock()
	l.sim.streaming = false
	return l.sim.closeErr
}

type simCommandConn struct {
	sim     *Sim
	closed  chan struct{}
	replies chan []byte
}

func (c *simCommandConn) Send(payload []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	if reply, ok := c.sim.respond(string(payload)); ok {
		select {
		case c.replies <- []byte(reply):
		default:
		}
	}
	return nil
}

func (c *simCommandConn) Recv(deadline time.Time) ([]byte, error) {
	select {
	case r := <-c.replies:
		return r, nil
	default:
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case r := <-c.replies:
		return r, nil
	case <-c.closed:
		return nil, net.ErrClosed
	case <-timer.C:
		return nil, os.ErrDeadlineExceeded
	}
}

func (c *simCommandConn) Close() error { return nil }

type simStateConn struct {
	sim    *Sim
	closed chan struct{}

	mu   sync.Mutex
	next time.Time
}

func (c *simStateConn) Recv(deadline time.Time) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next.IsZero() {
		c.next = time.Now()
	}
	wake, emit := c.next, true
	if wake.After(deadline) {
		wake, emit = deadline, false
	}

	timer := time.NewTimer(time.Until(wake))
	defer timer.Stop()
	select {
	case <-c.closed:
		return nil, net.ErrClosed
	case <-timer.C:
	}

	if !emit {
		return nil, os.ErrDeadlineExceeded
	}
	c.next = c.next.Add(c.sim.stateEvery)
	return []byte(c.sim.stateRecord()), nil
}

func (c *simStateConn) Close() error { return nil }

type simVideo struct {
	sim           *Sim
	requireStream bool

	mu      sync.Mutex
	running bool
	last    time.Time
	n       int
}

func (v *simVideo) Start(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.running = true
	return nil
}

func (v *simVideo) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.running = false
	return nil
}

func (v *simVideo) ReadFrame() (*core.Frame, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running || (v.requireStream && !v.sim.Streaming()) {
		return nil, nil
	}
	if time.Since(v.last) < v.sim.frameEvery {
		return nil, nil
	}
	v.last = time.Now()
	v.n++
	return core.NewFrame(stripes(v.sim.frameW, v.sim.frameH, v.n), v.last), nil
}

// stripes draws vertical bars that drift with n; contrast cycles over five
// frames so consecutive frames differ in sharpness.
func stripes(w, h, n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	amp := 20 * (n%5 + 1)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			v := 128 - amp
			if ((x+n)/4)%2 == 0 {
				v = 128 + amp
			}
			p := row[4*x : 4*x+4]
			p[0], p[1], p[2], p[3] = uint8(v), uint8(v), uint8(v), 255
		}
	}
	return img
}
