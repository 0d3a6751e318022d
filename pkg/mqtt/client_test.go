package mqtt

import "testing"

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"drone/v1/command/tello-01", "drone/v1/command/tello-01", true},
		{"drone/v1/command/+", "drone/v1/command/tello-01", true},
		{"drone/v1/command/+", "drone/v1/command/ack/tello-01", false},
		{"drone/v1/#", "drone/v1/telemetry/tello-01", true},
		{"drone/v1/+/tello-01", "drone/v1/state/tello-01", true},
		{"drone/v1/state/tello-01", "drone/v1/state/tello-02", false},
		{"drone/v1/state/+/x", "drone/v1/state/tello-01", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"~"+tt.topic, func(t *testing.T) {
			if got := topicsMatch(tt.filter, tt.topic); got != tt.want {
				t.Errorf("topicsMatch(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}

func TestTopicFilter(t *testing.T) {
	if got := topicFilter("$share/relays/drone/v1/command/+"); got != "drone/v1/command/+" {
		t.Errorf("topicFilter stripped to %q", got)
	}
	if got := topicFilter("drone/v1/command/+"); got != "drone/v1/command/+" {
		t.Errorf("topicFilter changed a plain filter to %q", got)
	}
}

func TestClientConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr bool
	}{
		{"ok", ClientConfig{BrokerURL: "tcp://127.0.0.1:1883"}, false},
		{"empty", ClientConfig{}, true},
		{"no host", ClientConfig{BrokerURL: "localhost"}, true},
		{"bad will qos", ClientConfig{BrokerURL: "tcp://127.0.0.1:1883", WillQoS: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
