package hal

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/autopeer-io/dronerelay/pkg/options"
)

func TestSimAnswersCommands(t *testing.T) {
	sim := NewSim(WithBattery(64))
	link, err := sim.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer link.Close()

	tests := []struct {
		command string
		want    string
	}{
		{"command", "ok"},
		{"battery?", "64"},
		{"takeoff", "ok"},
		{"height?", "8dm"},
	}
	for _, tt := range tests {
		if err := link.Command().Send([]byte(tt.command)); err != nil {
			t.Fatalf("Send(%q) error = %v", tt.command, err)
		}
		reply, err := link.Command().Recv(time.Now().Add(time.Second))
		if err != nil {
			t.Fatalf("Recv after %q error = %v", tt.command, err)
		}
		if string(reply) != tt.want {
			t.Errorf("reply to %q = %q, want %q", tt.command, reply, tt.want)
		}
	}
}

func TestSimScriptedFailures(t *testing.T) {
	sim := NewSim()
	sim.SetReply("streamon", "error")
	sim.SetSilent("land")

	link, _ := sim.Dial(context.Background())
	defer link.Close()

	_ = link.Command().Send([]byte("streamon"))
	reply, _ := link.Command().Recv(time.Now().Add(time.Second))
	if string(reply) != "error" || sim.Streaming() {
		t.Errorf("scripted streamon reply = %q, streaming = %v", reply, sim.Streaming())
	}

	_ = link.Command().Send([]byte("land"))
	if _, err := link.Command().Recv(time.Now().Add(20 * time.Millisecond)); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("silent command Recv error = %v, want deadline exceeded", err)
	}

	sim.SetDialError(errors.New("no route to host"))
	if _, err := sim.Dial(context.Background()); err == nil {
		t.Errorf("Dial() succeeded with a scripted dial error")
	}
}

func TestSimStateBroadcast(t *testing.T) {
	sim := NewSim(WithStateInterval(10 * time.Millisecond))
	link, _ := sim.Dial(context.Background())

	rec, err := link.State().Recv(time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if !strings.Contains(string(rec), "bat:87;") {
		t.Errorf("state record = %q", rec)
	}

	if _, err := link.State().Recv(time.Now()); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("Recv with an expired deadline error = %v", err)
	}

	_ = link.Close()
	if _, err := link.State().Recv(time.Now().Add(time.Second)); !errors.Is(err, net.ErrClosed) {
		t.Errorf("Recv after Close error = %v, want net.ErrClosed", err)
	}
	if err := link.Command().Send([]byte("command")); !errors.Is(err, net.ErrClosed) {
		t.Errorf("Send after Close error = %v, want net.ErrClosed", err)
	}
}

func TestSimVideoNeedsStreamon(t *testing.T) {
	sim := NewSim(WithFrameSize(16, 8), WithFrameInterval(time.Millisecond))
	link, _ := sim.Dial(context.Background())
	defer link.Close()

	src := link.Video()
	_ = src.Start(context.Background())

	if f, _ := src.ReadFrame(); f != nil {
		t.Fatalf("frame produced before streamon")
	}

	_ = link.Command().Send([]byte("streamon"))
	time.Sleep(2 * time.Millisecond)
	f, err := src.ReadFrame()
	if err != nil || f == nil {
		t.Fatalf("ReadFrame() = %v, %v after streamon", f, err)
	}
	if f.Width() != 16 || f.Height() != 8 {
		t.Errorf("frame size = %dx%d, want 16x8", f.Width(), f.Height())
	}

	cam := sim.CameraSource()
	_ = cam.Start(context.Background())
	if f, _ := cam.ReadFrame(); f == nil {
		t.Errorf("camera source produced no frame")
	}
}

func TestUDPDialerCommandRoundTrip(t *testing.T) {
	drone, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("cannot bind UDP: %v", err)
	}
	defer drone.Close()

	opts := options.NewDroneOptions()
	opts.Addr = "127.0.0.1"
	opts.CommandPort = drone.LocalAddr().(*net.UDPAddr).Port
	opts.LocalCommandPort = freeUDPPort(t)
	opts.StatePort = freeUDPPort(t)

	link, err := NewUDPDialer(opts, options.NewVideoOptions()).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer link.Close()

	go func() {
		buf := make([]byte, 64)
		n, addr, err := drone.ReadFromUDP(buf)
		if err != nil || string(buf[:n]) != "command" {
			return
		}
		_, _ = drone.WriteToUDP([]byte("ok"), addr)
	}()

	if err := link.Command().Send([]byte("command")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	reply, err := link.Command().Recv(time.Now().Add(2 * time.Second))
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if string(reply) != "ok" {
		t.Errorf("reply = %q, want ok", reply)
	}

	if _, err := link.State().Recv(time.Now().Add(10 * time.Millisecond)); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("idle state Recv error = %v, want deadline exceeded", err)
	}
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	c, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		t.Skipf("cannot bind UDP: %v", err)
	}
	defer c.Close()
	return c.LocalAddr().(*net.UDPAddr).Port
}
