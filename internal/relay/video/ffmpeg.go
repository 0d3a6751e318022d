package video

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/log"
	"github.com/autopeer-io/dronerelay/pkg/options"
)

var _ core.VideoSource = (*FFmpegSource)(nil)

// ErrDecoderExited is returned by ReadFrame after ffmpeg has gone away.
var ErrDecoderExited = errors.New("video decoder exited")

// FFmpegSource decodes video with an ffmpeg subprocess that writes fixed-size
// RGBA frames to its stdout.
type FFmpegSource struct {
	name   string
	bin    string
	input  []string
	width  int
	height int
	logger log.Logger

	// frames holds at most one undelivered frame; a newer frame replaces it.
	frames chan *core.Frame

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewDroneSource decodes the drone's H.264 elementary stream arriving on the
// local video port.
func NewDroneSource(drone *options.DroneOptions, video *options.VideoOptions) *FFmpegSource {
	url := "udp://0.0.0.0:" + strconv.Itoa(drone.VideoPort) + "?overrun_nonfatal=1&fifo_size=50000000"
	return newFFmpegSource("drone", video, []string{
		"-fflags", "nobuffer", "-flags", "low_delay",
		"-f", "h264", "-i", url,
	})
}

// NewCameraSource decodes a local capture device.
func NewCameraSource(video *options.VideoOptions) *FFmpegSource {
	return newFFmpegSource("camera", video, []string{
		"-f", video.CameraFormat, "-i", video.CameraDevice,
	})
}

func newFFmpegSource(name string, video *options.VideoOptions, input []string) *FFmpegSource {
	return &FFmpegSource{
		name:   name,
		bin:    video.FFmpegPath,
		input:  input,
		width:  video.Width,
		height: video.Height,
		logger: log.WithName("ffmpeg").WithValues("source", name),
	}
}

// Args returns the full ffmpeg argument list.
func (s *FFmpegSource) Args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, s.input...)
	return append(args,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", s.width, s.height),
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"pipe:1",
	)
}

func (s *FFmpegSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return fmt.Errorf("%s source already started", s.name)
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, s.bin, s.Args()...)
	cmd.WaitDelay = time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", s.bin, err)
	}

	s.logger.Info("Decoder started", "pid", cmd.Process.Pid, "width", s.width, "height", s.height)

	s.frames = make(chan *core.Frame, 1)
	s.cancel, s.done, s.err = cancel, make(chan struct{}), nil
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		s.logStderr(stderr)
	}()
	go s.decode(cmd, stdout, stderrDone, s.frames, s.done)
	return nil
}

func (s *FFmpegSource) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()
	<-done

	s.mu.Lock()
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	return nil
}

func (s *FFmpegSource) ReadFrame() (*core.Frame, error) {
	s.mu.Lock()
	frames, done := s.frames, s.done
	s.mu.Unlock()

	if frames == nil {
		return nil, nil
	}
	select {
	case f := <-frames:
		return f, nil
	default:
	}
	if done != nil {
		select {
		case <-done:
			s.mu.Lock()
			defer s.mu.Unlock()
			return nil, s.err
		default:
		}
	}
	return nil, nil
}

// decode reads frames until stdout ends. Wait closes both pipes, so it runs
// only after the stderr reader has drained.
func (s *FFmpegSource) decode(cmd *exec.Cmd, stdout io.Reader, stderrDone <-chan struct{}, frames chan *core.Frame, done chan struct{}) {
	defer close(done)

	size := s.width * s.height * 4
	r := bufio.NewReaderSize(stdout, size)
	var readErr error
	for {
		pix := make([]byte, size)
		if _, readErr = io.ReadFull(r, pix); readErr != nil {
			break
		}
		img := &image.RGBA{Pix: pix, Stride: 4 * s.width, Rect: image.Rect(0, 0, s.width, s.height)}
		offer(frames, core.NewFrame(img, time.Now()))
	}

	<-stderrDone
	waitErr := cmd.Wait()
	err := fmt.Errorf("%w: %w", ErrDecoderExited, errors.Join(readErr, waitErr))
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.logger.Info("Decoder exited", "error", err)
}

func (s *FFmpegSource) logStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.logger.Warn("ffmpeg", "line", sc.Text())
	}
}

// offer puts f in the one-slot channel, replacing an undelivered frame.
func offer(ch chan *core.Frame, f *core.Frame) {
	for {
		select {
		case ch <- f:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
