package options

import (
	"testing"
	"time"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"0.0.0.0:5000", false},
		{":8091", false},
		{"127.0.0.1:65535", false},
		{"127.0.0.1", true},
		{"127.0.0.1:70000", true},
		{"127.0.0.1:http", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestDroneOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *DroneOptions)
		wantErr int
	}{
		{"defaults", func(o *DroneOptions) {}, 0},
		{"bad addr", func(o *DroneOptions) { o.Addr = "tello" }, 1},
		{"bad port", func(o *DroneOptions) { o.StatePort = 0 }, 1},
		{"zero timeout", func(o *DroneOptions) { o.CommandTimeout = 0 }, 1},
		{"slow poll", func(o *DroneOptions) { o.PollInterval = 2 * time.Second }, 1},
		{"bad source", func(o *DroneOptions) { o.Source = "satellite" }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewDroneOptions()
			tt.mutate(o)
			if got := len(o.Validate()); got != tt.wantErr {
				t.Errorf("Validate() returned %d errors, want %d", got, tt.wantErr)
			}
		})
	}
}

func TestVideoOptionsValidate(t *testing.T) {
	o := NewVideoOptions()
	if errs := o.Validate(); len(errs) != 0 {
		t.Fatalf("defaults should validate, got %v", errs)
	}

	o.CaptureSamples = 0
	o.PhotoQuality = 101
	if got := len(o.Validate()); got != 2 {
		t.Errorf("Validate() returned %d errors, want 2", got)
	}
}

func TestMqttOptionsDisabledSkipsValidation(t *testing.T) {
	o := NewMqttOptions()
	o.DroneID = ""
	if errs := o.Validate(); len(errs) != 0 {
		t.Fatalf("disabled bridge should not validate, got %v", errs)
	}

	o.Enabled = true
	if errs := o.Validate(); len(errs) != 1 {
		t.Fatalf("enabled bridge with empty drone id: got %v", errs)
	}
}
