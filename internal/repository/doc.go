// Package repository is the per-entity CRUD layer over the table store.
//
// Each family (people, families, clothing, donations and activities with
// their assignments and attendance) exposes FetchAll, Create, Update and
// Delete. Every successful mutation is followed by exactly one change-log
// entry whose payload is the row after the change, or the row as it was
// before a delete.
//
// Errors carry a Spanish prefix naming the operation and table, such as
// "No se pudo actualizar ropa: ...", and wrap the store error so callers
// can test it with errors.Is against store.ErrNotFound and friends. Input
// rejected before reaching the store wraps ErrInvalid.
//
// Multi-step operations (SetAssignments, cascading deletes) are not atomic.
// They are written so that repeating a failed call finishes the job.
package repository
