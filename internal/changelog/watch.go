package changelog

import (
	"context"
	"fmt"
	"time"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/store"
)

// WatchConfig configures Watch.
type WatchConfig struct {
	// PollInterval is how often to check for new entries (default: 500ms)
	PollInterval time.Duration

	// AfterID is the entry id to start watching after. When zero the
	// watcher starts after the most recent entry, unless FromStart is set.
	AfterID int64

	// FromStart delivers the whole history on the first poll.
	FromStart bool

	// BatchSize bounds the entries read per poll (default: 200)
	BatchSize int
}

// Callback receives new entries in chronological order (oldest first). If
// it returns an error, watching continues but the error is logged.
type Callback func(entries []schema.ChangeLogEntry) error

// Watch polls the change log for entries written by any process and calls
// callback with each batch. It blocks until ctx is cancelled.
//
// Example:
//
//	err := cl.Watch(ctx, changelog.WatchConfig{PollInterval: time.Second}, func(entries []schema.ChangeLogEntry) error {
//	    for _, e := range entries {
//	        log.Printf("%s %s #%d", e.Accion, e.Tabla, e.RegistroID)
//	    }
//	    return nil
//	})
func (l *Log) Watch(ctx context.Context, config WatchConfig, callback Callback) error {
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 200
	}

	lastSeenID := config.AfterID
	if lastSeenID == 0 && !config.FromStart {
		id, err := l.LatestID(ctx)
		if err != nil {
			return err
		}
		lastSeenID = id
	}

	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			entries, err := l.after(ctx, lastSeenID, config.BatchSize)
			if err != nil {
				// Keep watching; the store may come back.
				l.logger.Printf("WARNING: failed to poll change log: %v", err)
				continue
			}
			if len(entries) == 0 {
				continue
			}

			lastSeenID = entries[len(entries)-1].ID

			if err := callback(entries); err != nil {
				l.logger.Printf("WARNING: change log callback error: %v", err)
			}
		}
	}
}

// LatestID returns the id of the most recent entry, or 0 for an empty log.
func (l *Log) LatestID(ctx context.Context) (int64, error) {
	rows, err := l.store.Select(ctx, schema.ChangeLogTable, store.Query{
		OrderBy: []store.Order{{Column: "id", Desc: true}},
		Limit:   1,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get latest change: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].ID(), nil
}

// after returns entries with id > lastSeenID, oldest first.
func (l *Log) after(ctx context.Context, lastSeenID int64, limit int) ([]schema.ChangeLogEntry, error) {
	rows, err := l.store.Select(ctx, schema.ChangeLogTable, store.Query{
		Where:   []store.Cond{store.Gt("id", lastSeenID)},
		OrderBy: []store.Order{{Column: "id"}},
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	entries := make([]schema.ChangeLogEntry, len(rows))
	for i, row := range rows {
		entries[i] = schema.ChangeLogEntryFromRow(row)
	}
	return entries, nil
}
