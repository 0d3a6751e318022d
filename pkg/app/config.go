package app

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/gosuri/uitable"
	"github.com/spf13/pflag"

	"github.com/autopeer-io/dronerelay/pkg/log"
)

const (
	flagConfig      = "config"
	flagPrintConfig = "print-config"
)

func (a *App) addConfigFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&a.configFile, flagConfig, "c", a.configFile,
		"Read configuration from the specified file; supports JSON, TOML, YAML, HCL or Java properties formats.")
	fs.BoolVar(&a.printConfig, flagPrintConfig, a.printConfig, "Print the effective configuration at startup.")
}

// envPrefix turns "drone-relay" into "DRONE_RELAY".
func envPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// loadConfig merges flags, environment and the config file into the options.
// Precedence is flag, then env, then file, then the option defaults.
func (a *App) loadConfig(flagSets map[string]*pflag.FlagSet) error {
	v := a.viper

	v.SetEnvPrefix(envPrefix(a.name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for name, fs := range flagSets {
		if name == globalSection {
			continue
		}
		if err := v.BindPFlags(fs); err != nil {
			return fmt.Errorf("failed to bind %s flags: %w", name, err)
		}
	}

	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file %q: %w", a.configFile, err)
		}
	}

	if a.options == nil {
		return nil
	}
	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

// watchConfig reports edits to the config file. Changes take effect on restart.
func (a *App) watchConfig() {
	if a.configFile == "" {
		return
	}
	a.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Warn("Configuration file changed; restart to apply", "file", e.Name, "op", e.Op.String())
	})
	a.viper.WatchConfig()
}

func (a *App) writeConfig(w io.Writer) {
	keys := a.viper.AllKeys()
	sort.Strings(keys)

	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("KEY", "VALUE")
	for _, k := range keys {
		val := a.viper.Get(k)
		if strings.Contains(k, "password") || strings.Contains(k, "secret") {
			val = "******"
		}
		table.AddRow(k, fmt.Sprint(val))
	}
	fmt.Fprintln(w, table)
}
