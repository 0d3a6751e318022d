package options

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*VideoOptions)(nil)

// VideoOptions configures decoding, fan-out and capture.
type VideoOptions struct {
	FFmpegPath string `json:"ffmpeg-path" mapstructure:"ffmpeg-path"`

	// Width and Height are the decoded frame size; ffmpeg scales to it.
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`

	// CameraFormat and CameraDevice are passed to ffmpeg as "-f <format> -i <device>".
	CameraFormat string `json:"camera-format" mapstructure:"camera-format"`
	CameraDevice string `json:"camera-device" mapstructure:"camera-device"`

	IngestPollInterval time.Duration `json:"ingest-poll-interval" mapstructure:"ingest-poll-interval"`
	FanoutInterval     time.Duration `json:"fanout-interval" mapstructure:"fanout-interval"`

	CaptureSamples  int           `json:"capture-samples" mapstructure:"capture-samples"`
	CaptureInterval time.Duration `json:"capture-interval" mapstructure:"capture-interval"`

	StreamQuality int `json:"stream-quality" mapstructure:"stream-quality"`
	PhotoQuality  int `json:"photo-quality" mapstructure:"photo-quality"`

	// PreviewMaxWidth downscales live frames wider than this; 0 keeps full size.
	PreviewMaxWidth int `json:"preview-max-width" mapstructure:"preview-max-width"`

	// FirstFrameWait is how long startStreaming waits for the first decoded frame.
	FirstFrameWait time.Duration `json:"first-frame-wait" mapstructure:"first-frame-wait"`
}

func NewVideoOptions() *VideoOptions {
	o := &VideoOptions{
		FFmpegPath:         "ffmpeg",
		Width:              960,
		Height:             720,
		CameraFormat:       "v4l2",
		CameraDevice:       "/dev/video0",
		IngestPollInterval: 10 * time.Millisecond,
		FanoutInterval:     33 * time.Millisecond,
		CaptureSamples:     5,
		CaptureInterval:    33 * time.Millisecond,
		StreamQuality:      95,
		PhotoQuality:       100,
		FirstFrameWait:     3 * time.Second,
	}
	if runtime.GOOS == "darwin" {
		o.CameraFormat, o.CameraDevice = "avfoundation", "0"
	}
	return o
}

func (o *VideoOptions) Validate() []error {
	var errs []error

	if o.Width <= 0 || o.Height <= 0 {
		errs = append(errs, fmt.Errorf("--video.width and --video.height must be positive"))
	}
	if o.IngestPollInterval <= 0 || o.FanoutInterval <= 0 || o.CaptureInterval <= 0 {
		errs = append(errs, fmt.Errorf("video intervals must be positive"))
	}
	if o.CaptureSamples < 1 {
		errs = append(errs, fmt.Errorf("--video.capture-samples must be at least 1"))
	}
	for name, q := range map[string]int{"video.stream-quality": o.StreamQuality, "video.photo-quality": o.PhotoQuality} {
		if q < 1 || q > 100 {
			errs = append(errs, fmt.Errorf("--%s must be in [1, 100], got %d", name, q))
		}
	}
	if o.PreviewMaxWidth < 0 {
		errs = append(errs, fmt.Errorf("--video.preview-max-width must not be negative"))
	}

	return errs
}

func (o *VideoOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.FFmpegPath, "video.ffmpeg-path", o.FFmpegPath, "Path to the ffmpeg binary used for decoding.")
	fs.IntVar(&o.Width, "video.width", o.Width, "Decoded frame width.")
	fs.IntVar(&o.Height, "video.height", o.Height, "Decoded frame height.")
	fs.StringVar(&o.CameraFormat, "video.camera-format", o.CameraFormat, "ffmpeg input format for the local camera source.")
	fs.StringVar(&o.CameraDevice, "video.camera-device", o.CameraDevice, "ffmpeg input device for the local camera source.")
	fs.DurationVar(&o.IngestPollInterval, "video.ingest-poll-interval", o.IngestPollInterval, "Sleep between reads when the source has no frame.")
	fs.DurationVar(&o.FanoutInterval, "video.fanout-interval", o.FanoutInterval, "Interval between frame deliveries to live viewers.")
	fs.IntVar(&o.CaptureSamples, "video.capture-samples", o.CaptureSamples, "Number of frames sampled per capture.")
	fs.DurationVar(&o.CaptureInterval, "video.capture-interval", o.CaptureInterval, "Spacing between capture samples.")
	fs.IntVar(&o.StreamQuality, "video.stream-quality", o.StreamQuality, "JPEG quality for live frames.")
	fs.IntVar(&o.PhotoQuality, "video.photo-quality", o.PhotoQuality, "JPEG quality for saved photos.")
	fs.IntVar(&o.PreviewMaxWidth, "video.preview-max-width", o.PreviewMaxWidth, "Downscale live frames wider than this (0 disables).")
	fs.DurationVar(&o.FirstFrameWait, "video.first-frame-wait", o.FirstFrameWait, "Wait for the first frame when starting a stream.")
}
