package changelog

import (
	"context"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/store"
)

// DefaultLimit is the number of entries ListRecent returns when no limit is
// given.
const DefaultLimit = 50

// Log writes and reads the registro_cambios audit table.
//
// Failures never propagate: a failed write or read is reported once per Log
// instance as a WARNING on the logger and then suppressed.
type Log struct {
	store  store.Store
	logger *log.Logger

	writeWarned atomic.Bool
	readWarned  atomic.Bool
}

// New creates a change log over s. A nil logger writes to stderr.
func New(s store.Store, logger *log.Logger) *Log {
	if logger == nil {
		logger = log.New(os.Stderr, "[changelog] ", log.LstdFlags)
	}
	return &Log{store: s, logger: logger}
}

// LogChange records one mutation. recordID is 0 when the change is not
// about a single row. The payload is normalised with
// schema.NormalisePayload.
func (l *Log) LogChange(ctx context.Context, table schema.Table, action schema.Action, recordID int64, payload any) {
	entry := schema.ChangeLogEntry{
		Tabla:      table,
		Accion:     action,
		RegistroID: recordID,
		Payload:    schema.NormalisePayload(payload),
	}
	if _, err := l.store.Insert(ctx, schema.ChangeLogTable, entry.Row()); err != nil {
		if l.writeWarned.CompareAndSwap(false, true) {
			l.logger.Printf("WARNING: No se pudo registrar el cambio: %v. Verifica que exista la tabla \"registro_cambios\" con columnas (tabla, accion, registro_id, payload, created_at).", err)
		}
	}
}

// ListRecent returns up to limit entries, newest first. A limit <= 0 means
// DefaultLimit. On failure it returns an empty slice.
func (l *Log) ListRecent(ctx context.Context, limit int) []schema.ChangeLogEntry {
	return l.list(ctx, limit)
}

// ListSince is ListRecent restricted to entries created at or after since.
func (l *Log) ListSince(ctx context.Context, since time.Time, limit int) []schema.ChangeLogEntry {
	return l.list(ctx, limit, store.Gte("created_at", since))
}

func (l *Log) list(ctx context.Context, limit int, conds ...store.Cond) []schema.ChangeLogEntry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := l.store.Select(ctx, schema.ChangeLogTable, store.Query{
		Where: conds,
		OrderBy: []store.Order{
			{Column: "created_at", Desc: true},
			{Column: "id", Desc: true},
		},
		Limit: limit,
	})
	if err != nil {
		if l.readWarned.CompareAndSwap(false, true) {
			l.logger.Printf("WARNING: No se pudo obtener el historial de cambios: %v", err)
		}
		return []schema.ChangeLogEntry{}
	}

	entries := make([]schema.ChangeLogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, schema.ChangeLogEntryFromRow(row))
	}
	return entries
}

// Subscribe calls callback whenever a change is recorded through the
// store's change feed.
func (l *Log) Subscribe(callback func()) (unsubscribe func()) {
	return l.store.SubscribeChanges(schema.ChangeLogTable, callback)
}
