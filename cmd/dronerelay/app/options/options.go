package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/dronerelay/internal/relay"
	"github.com/autopeer-io/dronerelay/pkg/app"
	"github.com/autopeer-io/dronerelay/pkg/log"
	"github.com/autopeer-io/dronerelay/pkg/options"
)

type RelayOptions struct {
	DroneOptions   *options.DroneOptions   `json:"drone" mapstructure:"drone"`
	VideoOptions   *options.VideoOptions   `json:"video" mapstructure:"video"`
	StorageOptions *options.StorageOptions `json:"storage" mapstructure:"storage"`
	JournalOptions *options.JournalOptions `json:"journal" mapstructure:"journal"`
	HttpOptions    *options.HttpOptions    `json:"http" mapstructure:"http"`
	GrpcOptions    *options.GrpcOptions    `json:"grpc" mapstructure:"grpc"`
	MqttOptions    *options.MqttOptions    `json:"mqtt" mapstructure:"mqtt"`
	S3Options      *options.S3Options      `json:"s3" mapstructure:"s3"`
	Log            *log.Options            `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*RelayOptions)(nil)
	_ app.LogOptionsProvider  = (*RelayOptions)(nil)
)

func NewRelayOptions() *RelayOptions {
	o := &RelayOptions{
		DroneOptions:   options.NewDroneOptions(),
		VideoOptions:   options.NewVideoOptions(),
		StorageOptions: options.NewStorageOptions(),
		JournalOptions: options.NewJournalOptions(),
		HttpOptions:    options.NewHttpOptions(),
		GrpcOptions:    options.NewGrpcOptions(),
		MqttOptions:    options.NewMqttOptions(),
		S3Options:      options.NewS3Options(),
		Log:            log.NewOptions(),
	}

	return o
}

func (o *RelayOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.DroneOptions.AddFlags(fss.FlagSet("drone"))
	o.VideoOptions.AddFlags(fss.FlagSet("video"))
	o.StorageOptions.AddFlags(fss.FlagSet("storage"))
	o.JournalOptions.AddFlags(fss.FlagSet("journal"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete lets the simulator run without a real drone address.
func (o *RelayOptions) Complete() error {
	if o.DroneOptions.Simulate && o.DroneOptions.Addr == "" {
		o.DroneOptions.Addr = "127.0.0.1"
	}
	return nil
}

func (o *RelayOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.DroneOptions.Validate()...)
	errs = append(errs, o.VideoOptions.Validate()...)
	errs = append(errs, o.StorageOptions.Validate()...)
	errs = append(errs, o.JournalOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *RelayOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *RelayOptions) Config() (*relay.Config, error) {
	return &relay.Config{
		DroneOptions:   o.DroneOptions,
		VideoOptions:   o.VideoOptions,
		StorageOptions: o.StorageOptions,
		JournalOptions: o.JournalOptions,
		HttpOptions:    o.HttpOptions,
		GrpcOptions:    o.GrpcOptions,
		MqttOptions:    o.MqttOptions,
		S3Options:      o.S3Options,
	}, nil
}
