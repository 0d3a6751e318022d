package topic

import "testing"

func TestBuilder(t *testing.T) {
	b := NewBuilder("/drone/v1/")

	if got := b.Build("command/ack", "tello-01"); got != "drone/v1/command/ack/tello-01" {
		t.Errorf("Build() = %q", got)
	}
	if got := b.Wildcard("telemetry"); got != "drone/v1/telemetry/+" {
		t.Errorf("Wildcard() = %q", got)
	}
	if got := b.Root(); got != "drone/v1" {
		t.Errorf("Root() = %q", got)
	}
}
