package store

import (
	"context"
	"sync"

	"github.com/cooperativa/registro/internal/schema"
)

// Store is the table store consumed by the repository, the change log and
// the snapshot engine. Every table is addressed by name and every row is a
// schema.Row.
type Store interface {
	// List returns every row of the table ordered by id ascending.
	List(ctx context.Context, table schema.Table) ([]schema.Row, error)

	// Select returns the rows matching q.
	Select(ctx context.Context, table schema.Table, q Query) ([]schema.Row, error)

	// Get returns one row by id. Fails with ErrNotFound if absent.
	Get(ctx context.Context, table schema.Table, id int64) (schema.Row, error)

	// Count returns the number of rows in the table.
	Count(ctx context.Context, table schema.Table) (int, error)

	// Insert stores a new row and returns it with its assigned id.
	// Fails with ErrConstraint when the row is rejected.
	Insert(ctx context.Context, table schema.Table, row schema.Row) (schema.Row, error)

	// Update applies patch to the row with the given id and returns the
	// updated row. Fails with ErrNotFound if absent.
	Update(ctx context.Context, table schema.Table, id int64, patch schema.Row) (schema.Row, error)

	// Delete removes the row with the given id and returns it as it was
	// before deletion. Returns a nil row, without error, if absent.
	Delete(ctx context.Context, table schema.Table, id int64) (schema.Row, error)

	// DeleteWhere removes the rows matching every condition. With no
	// conditions it clears the table.
	DeleteWhere(ctx context.Context, table schema.Table, conds ...Cond) error

	// Upsert inserts rows, updating the existing row when conflictKey
	// already exists. The default conflict key is "id". Rows without the
	// key columns are inserted as new.
	Upsert(ctx context.Context, table schema.Table, rows []schema.Row, conflictKey ...string) error

	// SubscribeChanges registers a callback invoked after any mutation of
	// the table. Delivery is at-least-once and unordered, and carries no
	// payload. The returned function cancels the subscription.
	SubscribeChanges(table schema.Table, callback func()) (unsubscribe func())

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// Cond restricts a query to rows whose Column equals one of Values, or,
// for the comparison operators, compares it against the single value.
// A Cond with no values matches nothing.
type Cond struct {
	Column string
	Op     CondOp
	Values []any
}

// CondOp is the comparison of a Cond. The zero value is equality.
type CondOp string

const (
	OpEq  CondOp = ""
	OpGt  CondOp = ">"
	OpGte CondOp = ">="
	OpLt  CondOp = "<"
)

// Gt matches rows where column > value.
func Gt(column string, value any) Cond {
	return Cond{Column: column, Op: OpGt, Values: []any{value}}
}

// Gte matches rows where column >= value.
func Gte(column string, value any) Cond {
	return Cond{Column: column, Op: OpGte, Values: []any{value}}
}

// Lt matches rows where column < value.
func Lt(column string, value any) Cond {
	return Cond{Column: column, Op: OpLt, Values: []any{value}}
}

// Eq matches rows where column == value.
func Eq(column string, value any) Cond {
	return Cond{Column: column, Values: []any{value}}
}

// In matches rows where column is one of values.
func In[T any](column string, values []T) Cond {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return Cond{Column: column, Values: vals}
}

// Order is one ORDER BY term.
type Order struct {
	Column    string
	Desc      bool
	NullsLast bool
}

// Query selects rows. A zero Query lists every row ordered by id.
type Query struct {
	Where   []Cond
	OrderBy []Order
	Limit   int
}

// hub fans change notifications out to per-table subscribers.
type hub struct {
	mu   sync.RWMutex
	next int
	subs map[schema.Table]map[int]func()
}

func newHub() *hub {
	return &hub{subs: make(map[schema.Table]map[int]func())}
}

func (h *hub) subscribe(table schema.Table, callback func()) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[table] == nil {
		h.subs[table] = make(map[int]func())
	}
	h.subs[table][id] = callback
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[table], id)
			h.mu.Unlock()
		})
	}
}

// notify runs every subscriber of the table on its own goroutine so a slow
// callback never delays the mutation that triggered it.
func (h *hub) notify(table schema.Table) {
	h.mu.RLock()
	callbacks := make([]func(), 0, len(h.subs[table]))
	for _, cb := range h.subs[table] {
		callbacks = append(callbacks, cb)
	}
	h.mu.RUnlock()

	for _, cb := range callbacks {
		go cb()
	}
}
