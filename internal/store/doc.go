// Package store is the table store behind the registro dataset.
//
// # Overview
//
// Store is a small, name-addressed CRUD interface: list, select, get,
// insert, update, delete, delete-where and upsert over schema.Row values,
// plus a per-table change feed. Nothing above this package writes SQL.
//
// DB implements Store on SQLite. Open uses the embedded ncruces driver
// (WebAssembly build, no cgo); OpenRemote, available with -tags libsql,
// talks to a libSQL server with the same schema.
//
// # Schema
//
// Tables are generated from schema descriptors by InitSchema. Ids are
// AUTOINCREMENT so they are never reused. Composite unique keys become
// UNIQUE constraints so Upsert can target them. Foreign keys are indexed
// but not declared; the store does not enforce them.
//
// # Change Feed
//
// Every successful mutation notifies the table's subscribers, each on its
// own goroutine. Notifications carry no payload and may arrive out of
// order or more than once; subscribers re-fetch.
//
//	unsubscribe := db.SubscribeChanges(schema.TableRopa, func() {
//	    // reload ropa
//	})
//	defer unsubscribe()
//
// # Error Handling
//
// Every method returns *Error, which matches ErrNotFound, ErrConstraint,
// ErrInvalid or ErrUnavailable with errors.Is. Multi-row Upsert runs in one
// transaction; nothing else spans more than one statement except Delete,
// which reads the row it is about to remove.
//
// # Concurrency
//
// DB is safe for concurrent use. WAL mode lets readers proceed while a
// write is in progress; writers wait up to five seconds for the lock.
package store
