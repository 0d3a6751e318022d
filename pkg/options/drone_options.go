package options

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*DroneOptions)(nil)

// DroneOptions describes how the relay reaches the drone and how long it
// waits for it.
type DroneOptions struct {
	// Addr is the drone's IP address on its access-point network.
	Addr string `json:"addr" mapstructure:"addr"`

	CommandPort      int `json:"command-port" mapstructure:"command-port"`
	LocalCommandPort int `json:"local-command-port" mapstructure:"local-command-port"`
	StatePort        int `json:"state-port" mapstructure:"state-port"`
	VideoPort        int `json:"video-port" mapstructure:"video-port"`

	// CommandTimeout bounds a single command/reply exchange.
	CommandTimeout time.Duration `json:"command-timeout" mapstructure:"command-timeout"`

	// PollInterval bounds how long background loops take to notice cancellation.
	PollInterval time.Duration `json:"poll-interval" mapstructure:"poll-interval"`

	// StaleAfter marks telemetry older than this as stale.
	StaleAfter time.Duration `json:"stale-after" mapstructure:"stale-after"`

	// Simulate replaces the UDP link with an in-process simulated drone.
	Simulate bool `json:"simulate" mapstructure:"simulate"`

	// Source is the default video source for new sessions: "drone" or "camera".
	Source string `json:"source" mapstructure:"source"`
}

func NewDroneOptions() *DroneOptions {
	return &DroneOptions{
		Addr:             "192.168.10.1",
		CommandPort:      8889,
		LocalCommandPort: 9000,
		StatePort:        8890,
		VideoPort:        11111,
		CommandTimeout:   10 * time.Second,
		PollInterval:     100 * time.Millisecond,
		StaleAfter:       5 * time.Second,
		Source:           "drone",
	}
}

func (o *DroneOptions) Validate() []error {
	var errs []error

	if net.ParseIP(o.Addr) == nil {
		errs = append(errs, fmt.Errorf("--drone.addr: %q is not an IP address", o.Addr))
	}
	for name, port := range map[string]int{
		"drone.command-port":       o.CommandPort,
		"drone.local-command-port": o.LocalCommandPort,
		"drone.state-port":         o.StatePort,
		"drone.video-port":         o.VideoPort,
	} {
		if err := validatePortNumber(name, port); err != nil {
			errs = append(errs, err)
		}
	}
	if o.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--drone.command-timeout must be positive"))
	}
	if o.PollInterval <= 0 || o.PollInterval > time.Second {
		errs = append(errs, fmt.Errorf("--drone.poll-interval must be in (0, 1s]"))
	}
	if o.StaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("--drone.stale-after must be positive"))
	}
	if o.Source != "drone" && o.Source != "camera" {
		errs = append(errs, fmt.Errorf("--drone.source must be 'drone' or 'camera', got %q", o.Source))
	}

	return errs
}

func (o *DroneOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "drone.addr", o.Addr, "IP address of the drone.")
	fs.IntVar(&o.CommandPort, "drone.command-port", o.CommandPort, "UDP port the drone accepts commands on.")
	fs.IntVar(&o.LocalCommandPort, "drone.local-command-port", o.LocalCommandPort, "Local UDP port the command socket binds to.")
	fs.IntVar(&o.StatePort, "drone.state-port", o.StatePort, "Local UDP port receiving state broadcasts.")
	fs.IntVar(&o.VideoPort, "drone.video-port", o.VideoPort, "Local UDP port receiving the H.264 video stream.")
	fs.DurationVar(&o.CommandTimeout, "drone.command-timeout", o.CommandTimeout, "Maximum wait for a command reply.")
	fs.DurationVar(&o.PollInterval, "drone.poll-interval", o.PollInterval, "Receive poll interval for background loops.")
	fs.DurationVar(&o.StaleAfter, "drone.stale-after", o.StaleAfter, "Age after which telemetry is reported as stale.")
	fs.BoolVar(&o.Simulate, "drone.simulate", o.Simulate, "Use an in-process simulated drone instead of UDP.")
	fs.StringVar(&o.Source, "drone.source", o.Source, "Default video source for new sessions ('drone' or 'camera').")
}
