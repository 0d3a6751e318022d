package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"
	"k8s.io/component-base/term"

	"github.com/autopeer-io/dronerelay/pkg/log"
)

const globalSection = "global"

// RunFunc is the application's main body, called once options are loaded
// and valid.
type RunFunc func() error

// App is a cobra command wired to an options aggregate.
type App struct {
	name        string
	shortDesc   string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	args        cobra.PositionalArgs

	configFile  string
	printConfig bool
	viper       *viper.Viper

	cmd *cobra.Command
}

// Option configures an App.
type Option func(*App)

func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithDefaultValidArgs rejects positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// NewApp builds the command. name is also the environment variable prefix.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
		viper:     viper.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.buildCommand()
	return a
}

// Command returns the underlying cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the command and exits the process on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	var namedfs cliflag.NamedFlagSets
	if a.options != nil {
		namedfs = a.options.Flags()
	}
	global := namedfs.FlagSet(globalSection)
	a.addConfigFlags(global)
	globalflag.AddGlobalFlags(global, cmd.Name())

	fs := cmd.Flags()
	for _, f := range namedfs.FlagSets {
		fs.AddFlagSet(f)
	}

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, namedfs, cols)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.runCommand(cmd, namedfs)
	}
	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, namedfs cliflag.NamedFlagSets) error {
	if err := a.loadConfig(namedfs.FlagSets); err != nil {
		return err
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	var logOpts *log.Options
	if p, ok := a.options.(LogOptionsProvider); ok {
		logOpts = p.LogOptions()
	}
	log.Init(logOpts)
	defer func() { _ = log.Sync() }()

	if a.printConfig {
		a.writeConfig(cmd.OutOrStdout())
	}
	a.watchConfig()

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Info(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		log.Warn("Failed to set GOMAXPROCS", "error", err)
	}
	defer undo()

	if a.runFunc == nil {
		return nil
	}
	return a.runFunc()
}
