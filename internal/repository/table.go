package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/store"
)

// ErrInvalid is returned, wrapped, when input is rejected before it reaches
// the store.
var ErrInvalid = errors.New("datos inválidos")

// Verbs used in error prefixes.
const (
	verbGet    = "obtener"
	verbInsert = "insertar"
	verbUpdate = "actualizar"
	verbDelete = "eliminar"
)

// ChangeRecorder receives one entry per successful mutation. It must not
// fail the caller; *changelog.Log satisfies it.
type ChangeRecorder interface {
	LogChange(ctx context.Context, table schema.Table, action schema.Action, recordID int64, payload any)
}

// fail adds the user-facing context prefix to a store error.
func fail(verb string, t schema.Table, err error) error {
	return fmt.Errorf("No se pudo %s %s: %w", verb, t, err)
}

func invalid(verb string, t schema.Table, reason string) error {
	return fmt.Errorf("No se pudo %s %s: %w: %s", verb, t, ErrInvalid, reason)
}

// table is the CRUD core shared by every repository. decode maps a store
// row to the entity returned to callers and logged as payload.
type table[T any] struct {
	store  store.Store
	log    ChangeRecorder
	name   schema.Table
	decode func(schema.Row) T
}

func newTable[T any](s store.Store, log ChangeRecorder, name schema.Table, decode func(schema.Row) T) *table[T] {
	return &table[T]{store: s, log: log, name: name, decode: decode}
}

func (t *table[T]) decodeAll(rows []schema.Row) []T {
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		items = append(items, t.decode(row))
	}
	return items
}

// list returns every row ordered by id.
func (t *table[T]) list(ctx context.Context) ([]T, error) {
	rows, err := t.store.List(ctx, t.name)
	if err != nil {
		return nil, fail(verbGet, t.name, err)
	}
	return t.decodeAll(rows), nil
}

func (t *table[T]) query(ctx context.Context, q store.Query) ([]T, error) {
	rows, err := t.store.Select(ctx, t.name, q)
	if err != nil {
		return nil, fail(verbGet, t.name, err)
	}
	return t.decodeAll(rows), nil
}

// ids returns the ids of the rows matching conds.
func (t *table[T]) ids(ctx context.Context, conds ...store.Cond) ([]int64, error) {
	rows, err := t.store.Select(ctx, t.name, store.Query{Where: conds})
	if err != nil {
		return nil, fail(verbGet, t.name, err)
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID()
	}
	return ids, nil
}

func (t *table[T]) get(ctx context.Context, id int64) (T, error) {
	row, err := t.store.Get(ctx, t.name, id)
	if err != nil {
		var zero T
		return zero, fail(verbGet, t.name, err)
	}
	return t.decode(row), nil
}

func (t *table[T]) create(ctx context.Context, row schema.Row) (T, error) {
	inserted, err := t.store.Insert(ctx, t.name, row)
	if err != nil {
		var zero T
		return zero, fail(verbInsert, t.name, err)
	}
	item := t.decode(inserted)
	t.log.LogChange(ctx, t.name, schema.ActionInsert, inserted.ID(), item)
	return item, nil
}

func (t *table[T]) update(ctx context.Context, id int64, patch schema.Row) (T, error) {
	updated, err := t.store.Update(ctx, t.name, id, patch)
	if err != nil {
		var zero T
		return zero, fail(verbUpdate, t.name, err)
	}
	item := t.decode(updated)
	t.log.LogChange(ctx, t.name, schema.ActionUpdate, id, item)
	return item, nil
}

// remove deletes by id and returns the deleted entity, or nil when no row
// had that id. cascade, if set, removes dependent rows after the delete
// and before the single log entry. It runs even when the row was absent so
// a retried delete still cleans up.
func (t *table[T]) remove(ctx context.Context, id int64, cascade func(context.Context) error) (*T, error) {
	row, err := t.store.Delete(ctx, t.name, id)
	if err != nil {
		return nil, fail(verbDelete, t.name, err)
	}

	var deleted *T
	if row != nil {
		item := t.decode(row)
		deleted = &item
	}

	if cascade != nil {
		if err := cascade(ctx); err != nil {
			return deleted, err
		}
	}

	var payload any
	if deleted != nil {
		payload = *deleted
	}
	t.log.LogChange(ctx, t.name, schema.ActionDelete, id, payload)
	return deleted, nil
}

// deleteWhere removes dependent rows; used by cascades.
func (t *table[T]) deleteWhere(ctx context.Context, conds ...store.Cond) error {
	if err := t.store.DeleteWhere(ctx, t.name, conds...); err != nil {
		return fail(verbDelete, t.name, err)
	}
	return nil
}
