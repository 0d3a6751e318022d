package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HttpOptions)(nil)

// HttpOptions contains configuration items related to HTTP server startup.
type HttpOptions struct {
	// Network with server network.
	Network string `json:"network" mapstructure:"network"`

	// Address with server address.
	Addr string `json:"addr" mapstructure:"addr"`

	// Timeout bounds reading request headers.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// ShutdownTimeout is how long open requests and video viewers get to
	// finish before their connections are closed.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`

	// EnableMetrics exposes Prometheus metrics on /metrics.
	EnableMetrics bool `json:"enable-metrics" mapstructure:"enable-metrics"`
}

// NewHttpOptions creates a HttpOptions object with default parameters.
func NewHttpOptions() *HttpOptions {
	return &HttpOptions{
		Network:         "tcp",
		Addr:            "0.0.0.0:5000",
		Timeout:         30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		EnableMetrics:   true,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *HttpOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}
	if o.Timeout <= 0 || o.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--http.timeout and --http.shutdown-timeout must be positive"))
	}

	return errors
}

// AddFlags adds flags related to the HTTP server to the specified FlagSet.
func (o *HttpOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Network, "http.network", o.Network, "Specify the network for the HTTP server.")
	fs.StringVar(&o.Addr, "http.addr", o.Addr, "Specify the HTTP server bind address and port.")
	fs.DurationVar(&o.Timeout, "http.timeout", o.Timeout, "Timeout for reading request headers.")
	fs.DurationVar(&o.ShutdownTimeout, "http.shutdown-timeout", o.ShutdownTimeout, "Grace period for open requests and video viewers on shutdown.")
	fs.BoolVar(&o.EnableMetrics, "http.enable-metrics", o.EnableMetrics, "Expose Prometheus metrics on /metrics.")
}
