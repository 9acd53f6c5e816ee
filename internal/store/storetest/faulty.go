// Package storetest provides a Store double that records calls and injects
// failures, for testing code that must survive a misbehaving store.
package storetest

import (
	"context"
	"sync"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/store"
)

// Op names a Store method.
type Op string

const (
	OpList        Op = "list"
	OpSelect      Op = "select"
	OpGet         Op = "get"
	OpCount       Op = "count"
	OpInsert      Op = "insert"
	OpUpdate      Op = "update"
	OpDelete      Op = "delete"
	OpDeleteWhere Op = "delete_where"
	OpUpsert      Op = "upsert"
)

// Call is one recorded Store call.
type Call struct {
	Op    Op
	Table schema.Table
	ID    int64
	Row   schema.Row
	Rows  []schema.Row
	Conds []store.Cond
}

type fault struct {
	table schema.Table
	op    Op
}

// Faulty wraps a Store. Calls pass through to the inner store unless a
// failure was registered for that table and operation.
type Faulty struct {
	store.Store

	mu     sync.Mutex
	faults map[fault]error
	calls  []Call
}

var _ store.Store = (*Faulty)(nil)

// New wraps inner.
func New(inner store.Store) *Faulty {
	return &Faulty{Store: inner, faults: make(map[fault]error)}
}

// Fail makes every subsequent op on table return err.
func (f *Faulty) Fail(table schema.Table, op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[fault{table, op}] = err
}

// Heal removes a failure registered with Fail.
func (f *Faulty) Heal(table schema.Table, op Op) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.faults, fault{table, op})
}

// Calls returns the recorded calls for table and op.
func (f *Faulty) Calls(table schema.Table, op Op) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Table == table && c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (f *Faulty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *Faulty) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if err, ok := f.faults[fault{c.Table, c.Op}]; ok {
		return &store.Error{Op: string(c.Op), Table: c.Table, Kind: store.KindUnavailable, Err: err}
	}
	return nil
}

func (f *Faulty) List(ctx context.Context, table schema.Table) ([]schema.Row, error) {
	if err := f.record(Call{Op: OpList, Table: table}); err != nil {
		return nil, err
	}
	return f.Store.List(ctx, table)
}

func (f *Faulty) Select(ctx context.Context, table schema.Table, q store.Query) ([]schema.Row, error) {
	if err := f.record(Call{Op: OpSelect, Table: table, Conds: q.Where}); err != nil {
		return nil, err
	}
	return f.Store.Select(ctx, table, q)
}

func (f *Faulty) Get(ctx context.Context, table schema.Table, id int64) (schema.Row, error) {
	if err := f.record(Call{Op: OpGet, Table: table, ID: id}); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, table, id)
}

func (f *Faulty) Count(ctx context.Context, table schema.Table) (int, error) {
	if err := f.record(Call{Op: OpCount, Table: table}); err != nil {
		return 0, err
	}
	return f.Store.Count(ctx, table)
}

func (f *Faulty) Insert(ctx context.Context, table schema.Table, row schema.Row) (schema.Row, error) {
	if err := f.record(Call{Op: OpInsert, Table: table, Row: row}); err != nil {
		return nil, err
	}
	return f.Store.Insert(ctx, table, row)
}

func (f *Faulty) Update(ctx context.Context, table schema.Table, id int64, patch schema.Row) (schema.Row, error) {
	if err := f.record(Call{Op: OpUpdate, Table: table, ID: id, Row: patch}); err != nil {
		return nil, err
	}
	return f.Store.Update(ctx, table, id, patch)
}

func (f *Faulty) Delete(ctx context.Context, table schema.Table, id int64) (schema.Row, error) {
	if err := f.record(Call{Op: OpDelete, Table: table, ID: id}); err != nil {
		return nil, err
	}
	return f.Store.Delete(ctx, table, id)
}

func (f *Faulty) DeleteWhere(ctx context.Context, table schema.Table, conds ...store.Cond) error {
	if err := f.record(Call{Op: OpDeleteWhere, Table: table, Conds: conds}); err != nil {
		return err
	}
	return f.Store.DeleteWhere(ctx, table, conds...)
}

func (f *Faulty) Upsert(ctx context.Context, table schema.Table, rows []schema.Row, conflictKey ...string) error {
	if err := f.record(Call{Op: OpUpsert, Table: table, Rows: rows}); err != nil {
		return err
	}
	return f.Store.Upsert(ctx, table, rows, conflictKey...)
}
