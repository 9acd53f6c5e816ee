package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/cooperativa/registro/internal/schema"
)

// DB is the SQLite implementation of Store. The same type serves the
// embedded database (Open) and a libSQL server (OpenRemote); only the
// driver differs.
type DB struct {
	conn *sql.DB
	path string
	hub  *hub
	now  func() time.Time
}

var _ Store = (*DB)(nil)

// Open creates or opens the embedded database at path.
//
// The database runs in WAL mode so readers never block the writer, with a
// five second busy timeout. Foreign keys are not declared: referential
// cleanup is the repository's job.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open("registro.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_txlock=immediate", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db, err := newDB(conn, path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func newDB(conn *sql.DB, path string) (*DB, error) {
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		conn: conn,
		path: path,
		hub:  newHub(),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the database location (file path or URL).
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if !strings.Contains(db.path, "://") {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates every table of the dataset and the change log if they
// don't exist. This is idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	tables := append(schema.Tables(), schema.ChangeLogTable)
	for _, table := range tables {
		for _, stmt := range createStatements(schema.MustDescribe(table)) {
			if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create schema for %s: %w", table, err)
			}
		}
	}
	return nil
}

// Ping touches the ropa table, the same check the application runs on
// start-up.
func (db *DB) Ping(ctx context.Context) error {
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT count(*) FROM ropa").Scan(&n); err != nil {
		return wrapError("ping", schema.TableRopa, err)
	}
	return nil
}

// SubscribeChanges registers a change callback for the table.
func (db *DB) SubscribeChanges(table schema.Table, callback func()) func() {
	return db.hub.subscribe(table, callback)
}

// List returns every row of the table ordered by id.
func (db *DB) List(ctx context.Context, table schema.Table) ([]schema.Row, error) {
	return db.Select(ctx, table, Query{})
}

// Select returns the rows matching q.
func (db *DB) Select(ctx context.Context, table schema.Table, q Query) ([]schema.Row, error) {
	d, err := describe("select", table)
	if err != nil {
		return nil, err
	}
	query, args, empty, err := buildSelect(d, q)
	if err != nil {
		return nil, newError("select", table, KindInvalid, err)
	}
	if empty {
		return []schema.Row{}, nil
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("select", table, err)
	}
	defer rows.Close()

	result, err := scanRows(rows, d)
	if err != nil {
		return nil, wrapError("select", table, err)
	}
	return result, nil
}

// Get returns one row by id.
func (db *DB) Get(ctx context.Context, table schema.Table, id int64) (schema.Row, error) {
	return db.get(ctx, db.conn, "get", table, id)
}

// Count returns the number of rows in the table.
func (db *DB) Count(ctx context.Context, table schema.Table) (int, error) {
	if _, err := describe("count", table); err != nil {
		return 0, err
	}
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT count(*) FROM "+string(table)).Scan(&n); err != nil {
		return 0, wrapError("count", table, err)
	}
	return n, nil
}

// Insert stores a new row and returns it as stored.
func (db *DB) Insert(ctx context.Context, table schema.Table, row schema.Row) (schema.Row, error) {
	d, err := describe("insert", table)
	if err != nil {
		return nil, err
	}
	query, args, err := buildInsert(d, row, nil, db.now())
	if err != nil {
		return nil, newError("insert", table, KindInvalid, err)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("insert", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapError("insert", table, err)
	}
	db.hub.notify(table)

	return db.get(ctx, db.conn, "insert", table, id)
}

// Update applies patch to the row with the given id.
func (db *DB) Update(ctx context.Context, table schema.Table, id int64, patch schema.Row) (schema.Row, error) {
	d, err := describe("update", table)
	if err != nil {
		return nil, err
	}
	query, args, err := buildUpdate(d, id, patch, db.now())
	if err != nil {
		return nil, newError("update", table, KindInvalid, err)
	}
	if query == "" {
		return db.get(ctx, db.conn, "update", table, id)
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("update", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, wrapError("update", table, err)
	}
	if affected == 0 {
		return nil, newError("update", table, KindNotFound, fmt.Errorf("id %d: %w", id, ErrNotFound))
	}
	db.hub.notify(table)

	return db.get(ctx, db.conn, "update", table, id)
}

// Delete removes the row with the given id and returns it.
func (db *DB) Delete(ctx context.Context, table schema.Table, id int64) (schema.Row, error) {
	if _, err := describe("delete", table); err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapError("delete", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	row, err := db.get(ctx, tx, "delete", table, id)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+string(table)+" WHERE id = ?", id); err != nil {
		return nil, wrapError("delete", table, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapError("delete", table, err)
	}
	db.hub.notify(table)

	return row, nil
}

// DeleteWhere removes the rows matching every condition.
func (db *DB) DeleteWhere(ctx context.Context, table schema.Table, conds ...Cond) error {
	d, err := describe("delete", table)
	if err != nil {
		return err
	}
	where, args, empty, err := buildWhere(d, conds)
	if err != nil {
		return newError("delete", table, KindInvalid, err)
	}
	if empty {
		return nil
	}
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM "+string(table)+where, args...); err != nil {
		return wrapError("delete", table, err)
	}
	db.hub.notify(table)
	return nil
}

// Upsert inserts or updates rows on conflictKey inside one transaction.
func (db *DB) Upsert(ctx context.Context, table schema.Table, rows []schema.Row, conflictKey ...string) error {
	d, err := describe("upsert", table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if len(conflictKey) == 0 {
		conflictKey = []string{"id"}
	}
	if !validConflictKey(d, conflictKey) {
		return newError("upsert", table, KindInvalid, fmt.Errorf("no unique key on (%s)", strings.Join(conflictKey, ", ")))
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("upsert", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := db.now()
	for i, row := range rows {
		query, args, err := buildInsert(d, row, conflictKey, now)
		if err != nil {
			return newError("upsert", table, KindInvalid, fmt.Errorf("row %d: %w", i, err))
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return wrapError("upsert", table, fmt.Errorf("row %d: %w", i, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapError("upsert", table, err)
	}
	db.hub.notify(table)
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (db *DB) get(ctx context.Context, q querier, op string, table schema.Table, id int64) (schema.Row, error) {
	d, err := describe(op, table)
	if err != nil {
		return nil, err
	}
	query, args, _, err := buildSelect(d, Query{Where: []Cond{Eq("id", id)}, Limit: 1})
	if err != nil {
		return nil, newError(op, table, KindInvalid, err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(op, table, err)
	}
	defer rows.Close()

	result, err := scanRows(rows, d)
	if err != nil {
		return nil, wrapError(op, table, err)
	}
	if len(result) == 0 {
		return nil, newError(op, table, KindNotFound, fmt.Errorf("id %d: %w", id, ErrNotFound))
	}
	return result[0], nil
}

func describe(op string, table schema.Table) (*schema.Descriptor, error) {
	d := schema.Describe(table)
	if d == nil {
		return nil, newError(op, table, KindInvalid, fmt.Errorf("unknown table %q", table))
	}
	return d, nil
}
