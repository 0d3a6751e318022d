package telemetry

import (
	"context"
	"os"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

type chanConn struct {
	records chan string
}

func (c *chanConn) Recv(deadline time.Time) ([]byte, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case r := <-c.records:
		return []byte(r), nil
	case <-timer.C:
		return nil, os.ErrDeadlineExceeded
	}
}

func (c *chanConn) Close() error { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestListenerKeepsNewestRecord(t *testing.T) {
	now := time.Unix(1700000000, 0)
	fakeClock := clocktesting.NewFakePassiveClock(now)
	conn := &chanConn{records: make(chan string, 4)}
	l := NewListener(conn, WithClock(fakeClock), WithPollInterval(10*time.Millisecond))

	if !l.Snapshot().IsZero() || !l.Stale() {
		t.Fatalf("listener should start empty and stale")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	conn.records <- "bat:85;temp:24;h:120;time_unused:xx"
	waitFor(t, func() bool { return l.Snapshot().Battery == 85 })

	conn.records <- "garbage"
	conn.records <- "bat:84;h:121"
	waitFor(t, func() bool { return l.Snapshot().Battery == 84 })
	if l.Snapshot().Height != 121 {
		t.Errorf("height = %d, want 121", l.Snapshot().Height)
	}

	if l.Stale() {
		t.Errorf("fresh snapshot reported stale")
	}
	fakeClock.SetTime(now.Add(6 * time.Second))
	if !l.Stale() {
		t.Errorf("snapshot older than 5s not reported stale")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	l := NewListener(&chanConn{records: make(chan string)})
	l.ingest("bat:50")

	s := l.Snapshot()
	s.Fields["bat"] = "1"
	if l.Snapshot().Fields["bat"] != "50" {
		t.Fatalf("mutating a snapshot changed the listener state")
	}
}
