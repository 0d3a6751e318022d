package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cliflag "k8s.io/component-base/cli/flag"
)

type testServerOptions struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type testOptions struct {
	Server *testServerOptions `mapstructure:"server"`

	completed bool
}

func newTestOptions() *testOptions {
	return &testOptions{Server: &testServerOptions{Addr: ":8080", Timeout: time.Second}}
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("server")
	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "Listen address.")
	fs.DurationVar(&o.Server.Timeout, "server.timeout", o.Server.Timeout, "Request timeout.")
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	return nil
}

func execute(t *testing.T, name string, opts *testOptions, args ...string) (bool, error) {
	t.Helper()
	ran := false
	a := NewApp(name, "test app",
		WithOptions(opts),
		WithDefaultValidArgs(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)
	cmd := a.Command()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return ran, err
}

func TestAppFlags(t *testing.T) {
	opts := newTestOptions()
	ran, err := execute(t, "app-flags", opts, "--server.addr=:9090", "--server.timeout=3s")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !ran || !opts.completed {
		t.Errorf("ran = %v, completed = %v", ran, opts.completed)
	}
	if opts.Server.Addr != ":9090" || opts.Server.Timeout != 3*time.Second {
		t.Errorf("options = %+v", opts.Server)
	}
}

func TestAppConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":7070\"\n  timeout: 5s\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	opts := newTestOptions()
	if _, err := execute(t, "app-file", opts, "--config", path, "--server.timeout=2s"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if opts.Server.Addr != ":7070" {
		t.Errorf("addr = %q, want value from file", opts.Server.Addr)
	}
	if opts.Server.Timeout != 2*time.Second {
		t.Errorf("timeout = %v, flag should win over file", opts.Server.Timeout)
	}
}

func TestAppEnvironment(t *testing.T) {
	t.Setenv("APP_ENV_SERVER_ADDR", ":6060")

	opts := newTestOptions()
	if _, err := execute(t, "app-env", opts); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if opts.Server.Addr != ":6060" {
		t.Errorf("addr = %q, want value from environment", opts.Server.Addr)
	}
}

func TestAppErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"positional argument", []string{"extra"}, "does not take any arguments"},
		{"invalid options", []string{"--server.addr="}, "server.addr must not be empty"},
		{"missing config file", []string{"--config", "/nonexistent/relay.yaml"}, "failed to read configuration file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran, err := execute(t, "app-errors", newTestOptions(), tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
			if ran {
				t.Errorf("run func called despite error")
			}
		})
	}
}

func TestEnvPrefix(t *testing.T) {
	if got := envPrefix("drone-relay"); got != "DRONE_RELAY" {
		t.Errorf("envPrefix = %q", got)
	}
}
