package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
)

func TestJournalRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	j, err := Open(ctx, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer j.Close()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	exchanges := []core.CommandExchange{
		{SessionID: "s1", Command: "command", Reply: "ok", IssuedAt: base, Duration: 12 * time.Millisecond},
		{SessionID: "s1", Command: "takeoff", IssuedAt: base.Add(time.Second), Duration: 10 * time.Second,
			Err: core.Errorf(core.KindTimeout, "command takeoff", "no reply")},
		{SessionID: "s1", Command: "land", IssuedAt: base.Add(2 * time.Second), Err: errors.New("boom")},
	}
	for _, ex := range exchanges {
		j.Record(ctx, ex)
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(got))
	}

	tests := []struct {
		entry   Entry
		command string
		result  string
		reply   string
	}{
		{got[0], "land", "error", ""},
		{got[1], "takeoff", "Timeout", ""},
	}
	for _, tt := range tests {
		if tt.entry.Command != tt.command || tt.entry.Result != tt.result || tt.entry.Reply != tt.reply {
			t.Errorf("entry = %+v, want command %q result %q", tt.entry, tt.command, tt.result)
		}
		if tt.entry.Error == "" {
			t.Errorf("entry %q lost its error text", tt.entry.Command)
		}
	}
	if !got[1].IssuedAt.Equal(base.Add(time.Second)) || got[1].Duration != 10*time.Second {
		t.Errorf("takeoff timing = %s / %s", got[1].IssuedAt, got[1].Duration)
	}

	all, _ := j.Recent(ctx, 0)
	if len(all) != 3 || all[2].Reply != "ok" || all[2].Result != "ok" {
		t.Errorf("Recent(0) = %+v", all)
	}
}

func TestJournalRecordAfterClose(t *testing.T) {
	ctx := context.Background()
	j, err := Open(ctx, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	j.Record(ctx, core.CommandExchange{Command: "land"})
	if _, err := j.Recent(ctx, 1); err == nil {
		t.Errorf("Recent() after Close succeeded")
	}
}
