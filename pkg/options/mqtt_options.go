package options

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/dronerelay/pkg/mqtt"
)

var _ IOptions = (*MqttOptions)(nil)

// MqttOptions contains configuration for the MQTT relay bridge.
type MqttOptions struct {
	// Enabled turns the bridge on. The relay runs without a broker by default.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	Broker   string `json:"broker" mapstructure:"broker"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	ClientID string `json:"client-id" mapstructure:"client-id"`

	// Client behavior
	KeepAlive      time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
	ConnectTimeout time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	SessionExpiry  uint32        `json:"session-expiry" mapstructure:"session-expiry"`
	CleanStart     bool          `json:"clean-start" mapstructure:"clean-start"`

	// InsecureSkipVerify controls whether a client verifies the server's certificate chain and host name.
	// This should be used only for testing.
	InsecureSkipVerify bool `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`

	// TopicRoot prefixes every topic: {TopicRoot}/{segment}/{DroneID}.
	TopicRoot string `json:"topic-root" mapstructure:"topic-root"`

	// DroneID identifies this relay's drone in topic paths.
	DroneID string `json:"drone-id" mapstructure:"drone-id"`

	// TelemetryInterval is how often the latest telemetry snapshot is published.
	TelemetryInterval time.Duration `json:"telemetry-interval" mapstructure:"telemetry-interval"`

	// CommandRate caps remote commands accepted per second; CommandBurst is the bucket size.
	CommandRate  float64 `json:"command-rate" mapstructure:"command-rate"`
	CommandBurst int     `json:"command-burst" mapstructure:"command-burst"`
}

// NewMqttOptions creates a new MqttOptions with default values.
func NewMqttOptions() *MqttOptions {
	return &MqttOptions{
		Enabled:            false,
		Broker:             "tcp://127.0.0.1:1883",
		KeepAlive:          60 * time.Second,
		ConnectTimeout:     5 * time.Second,
		SessionExpiry:      60,
		CleanStart:         true,
		InsecureSkipVerify: false,
		TopicRoot:          "drone/v1",
		DroneID:            "tello-01",
		TelemetryInterval:  time.Second,
		CommandRate:        5,
		CommandBurst:       1,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *MqttOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	errors := []error{}

	if _, err := url.Parse(o.Broker); err != nil || o.Broker == "" {
		errors = append(errors, fmt.Errorf("--mqtt.broker: invalid broker url %q", o.Broker))
	}
	if o.DroneID == "" {
		errors = append(errors, fmt.Errorf("--mqtt.drone-id must not be empty"))
	}
	if o.TelemetryInterval <= 0 {
		errors = append(errors, fmt.Errorf("--mqtt.telemetry-interval must be positive"))
	}
	if o.CommandRate <= 0 || o.CommandBurst < 1 {
		errors = append(errors, fmt.Errorf("--mqtt.command-rate and --mqtt.command-burst must be positive"))
	}

	return errors
}

// AddFlags adds flags for MqttOptions to the specified FlagSet.
func (o *MqttOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "mqtt.enabled", o.Enabled, "Bridge telemetry, session state and remote commands over MQTT.")
	fs.StringVar(&o.Broker, "mqtt.broker", o.Broker, "The URL of the MQTT broker.")
	fs.StringVar(&o.Username, "mqtt.username", o.Username, "The username for MQTT authentication.")
	fs.StringVar(&o.Password, "mqtt.password", o.Password, "The password for MQTT authentication.")
	fs.StringVar(&o.ClientID, "mqtt.client-id", o.ClientID, "Explicit Client ID (optional, usually generated).")

	fs.DurationVar(&o.KeepAlive, "mqtt.keep-alive", o.KeepAlive, "MQTT Keep Alive interval.")
	fs.DurationVar(&o.ConnectTimeout, "mqtt.connect-timeout", o.ConnectTimeout, "Timeout for establishing MQTT connection.")
	fs.Uint32Var(&o.SessionExpiry, "mqtt.session-expiry", o.SessionExpiry, "MQTT Session Expiry Interval in seconds.")
	fs.BoolVar(&o.CleanStart, "mqtt.clean-start", o.CleanStart, "Start a clean MQTT session on first connect.")
	fs.BoolVar(&o.InsecureSkipVerify, "mqtt.insecure-skip-verify", o.InsecureSkipVerify, "If true, skips the TLS certificate verification.")

	fs.StringVar(&o.TopicRoot, "mqtt.topic-root", o.TopicRoot, "Topic prefix for all relay topics.")
	fs.StringVar(&o.DroneID, "mqtt.drone-id", o.DroneID, "Drone identifier used in topic paths.")
	fs.DurationVar(&o.TelemetryInterval, "mqtt.telemetry-interval", o.TelemetryInterval, "Interval between telemetry publications.")
	fs.Float64Var(&o.CommandRate, "mqtt.command-rate", o.CommandRate, "Maximum remote commands accepted per second.")
	fs.IntVar(&o.CommandBurst, "mqtt.command-burst", o.CommandBurst, "Burst size for remote command admission.")
}

// ToClientConfig converts the options into a pkg/mqtt client configuration.
func (o *MqttOptions) ToClientConfig() *mqtt.ClientConfig {
	return &mqtt.ClientConfig{
		BrokerURL:          o.Broker,
		Username:           o.Username,
		Password:           o.Password,
		ClientID:           o.ClientID,
		KeepAlive:          uint16(o.KeepAlive.Seconds()),
		SessionExpiry:      o.SessionExpiry,
		ConnectTimeout:     o.ConnectTimeout,
		CleanStart:         o.CleanStart,
		InsecureSkipVerify: o.InsecureSkipVerify,
	}
}
