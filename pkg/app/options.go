package app

import (
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/dronerelay/pkg/log"
)

// NamedFlagSetOptions is implemented by a command's option aggregate.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by section, as shown in --help.
	Flags() cliflag.NamedFlagSets
	// Complete fills in fields derived from other fields.
	Complete() error
	// Validate checks the options after flags, env and config are merged.
	Validate() error
}

// LogOptionsProvider is implemented by options that carry log settings.
// The App initializes the global logger from them before running.
type LogOptionsProvider interface {
	LogOptions() *log.Options
}
