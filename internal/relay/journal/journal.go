// Package journal persists every command exchange to SQLite so operators can
// review what was sent to the drone.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/log"
)

var _ core.ExchangeRecorder = (*Journal)(nil)

// DefaultLimit caps Recent when no limit is given.
const DefaultLimit = 50

// Entry is one stored exchange.
type Entry struct {
	ID        int64         `json:"id"`
	SessionID string        `json:"sessionId"`
	Command   string        `json:"command"`
	Reply     string        `json:"reply,omitempty"`
	Error     string        `json:"error,omitempty"`
	Result    string        `json:"result"`
	IssuedAt  time.Time     `json:"issuedAt"`
	Duration  time.Duration `json:"duration"`
}

// Journal is a SQLite-backed ExchangeRecorder.
type Journal struct {
	db     *sql.DB
	logger log.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", path, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One writer at a time; also keeps an in-memory database on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, initSchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	log.Info("Command journal opened", "path", path)
	return &Journal{db: db, logger: log.WithName("journal")}, nil
}

// Record stores ex. Failures are logged and never fail the command. The
// command channel frees its in-flight slot before calling Record.
func (j *Journal) Record(ctx context.Context, ex core.CommandExchange) {
	var reply, errText sql.NullString
	if ex.Err != nil {
		errText = sql.NullString{String: ex.Err.Error(), Valid: true}
	} else {
		reply = sql.NullString{String: ex.Reply, Valid: true}
	}

	_, err := j.db.ExecContext(ctx, insertExchangeSQL,
		ex.SessionID,
		ex.Command,
		reply,
		errText,
		ex.Result(),
		ex.IssuedAt.UTC().UnixNano(),
		ex.Duration.Microseconds(),
	)
	if err != nil {
		j.logger.Error(err, "Failed to record command exchange", "command", ex.Command)
	}
}

// Recent returns up to limit exchanges, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) (entries []Entry, err error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := j.db.QueryContext(ctx, selectRecentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying exchanges: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	for rows.Next() {
		var (
			e            Entry
			reply, errs  sql.NullString
			issued, durr int64
		)
		if err = rows.Scan(&e.ID, &e.SessionID, &e.Command, &reply, &errs, &e.Result, &issued, &durr); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		e.Reply, e.Error = reply.String, errs.String
		e.IssuedAt = time.Unix(0, issued).UTC()
		e.Duration = time.Duration(durr) * time.Microsecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *Journal) Close() error {
	j.closeOnce.Do(func() {
		j.closeErr = j.db.Close()
	})
	return j.closeErr
}
