package relay

import (
	"context"
	"fmt"

	"github.com/autopeer-io/dronerelay/internal/relay/journal"
	"github.com/autopeer-io/dronerelay/internal/relay/server"
	"github.com/autopeer-io/dronerelay/internal/relay/storage"
	"github.com/autopeer-io/dronerelay/pkg/log"
)

// Relay is the assembled application.
type Relay struct {
	serverManager *server.Manager
	photos        storage.Provider
	journal       *journal.Journal
}

// Run prepares photo storage and serves until ctx is cancelled. The session
// is disconnected before Run returns.
func (r *Relay) Run(ctx context.Context) error {
	log.Info("Starting drone relay...")
	defer closeJournal(r.journal)

	// 1. Make sure the photo store is writable before accepting captures.
	if err := r.photos.Init(ctx); err != nil {
		return fmt.Errorf("failed to init photo storage: %w", err)
	}

	// 2. Start session and servers (blocking)
	return r.serverManager.Start(ctx)
}

func closeJournal(j *journal.Journal) {
	if j == nil {
		return
	}
	if err := j.Close(); err != nil {
		log.Error(err, "Failed to close journal")
	}
}
