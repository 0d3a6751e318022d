package core

import (
	"image"
	"testing"
	"time"
)

func TestFrameClone(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Pix[0] = 10
	f := NewFrame(img, time.Unix(100, 0))
	f.Seq = 7

	c := f.Clone()
	c.Image.Pix[0] = 99

	if f.Image.Pix[0] != 10 {
		t.Fatalf("clone shares pixel memory with original")
	}
	if c.Seq != 7 || c.Width() != 2 || c.Height() != 2 {
		t.Fatalf("clone lost metadata: %+v", c)
	}
}

func TestFrameEmpty(t *testing.T) {
	var nilFrame *Frame
	if !nilFrame.Empty() {
		t.Errorf("nil frame should be empty")
	}
	if !(&Frame{}).Empty() {
		t.Errorf("frame without image should be empty")
	}
	if NewFrame(image.NewRGBA(image.Rect(0, 0, 1, 1)), time.Now()).Empty() {
		t.Errorf("1x1 frame should not be empty")
	}
}

func TestTelemetryStale(t *testing.T) {
	now := time.Unix(1000, 0)
	tests := []struct {
		name string
		snap TelemetrySnapshot
		want bool
	}{
		{"never received", TelemetrySnapshot{}, true},
		{"fresh", TelemetrySnapshot{ReceivedAt: now.Add(-time.Second)}, false},
		{"exactly at threshold", TelemetrySnapshot{ReceivedAt: now.Add(-5 * time.Second)}, false},
		{"old", TelemetrySnapshot{ReceivedAt: now.Add(-6 * time.Second)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.Stale(now, 5*time.Second); got != tt.want {
				t.Errorf("Stale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTelemetryCloneIsolatesFields(t *testing.T) {
	s := TelemetrySnapshot{Fields: map[string]string{"bat": "85"}}
	c := s.Clone()
	c.Fields["bat"] = "1"
	if s.Fields["bat"] != "85" {
		t.Fatalf("clone shares Fields map")
	}
}

func TestParseSource(t *testing.T) {
	for in, want := range map[string]Source{"": SourceDrone, "tello": SourceDrone, "webcam": SourceCamera, "camera": SourceCamera} {
		got, ok := ParseSource(in)
		if !ok || got != want {
			t.Errorf("ParseSource(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseSource("satellite"); ok {
		t.Errorf("ParseSource accepted an unknown source")
	}
}
