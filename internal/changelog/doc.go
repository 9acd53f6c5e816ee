// Package changelog records and reads the registro_cambios audit trail.
//
// # Overview
//
// Every repository mutation is followed by one LogChange call naming the
// table, the action (INSERT, UPDATE or DELETE), the affected record id and
// a JSON payload describing the change. ListRecent returns the newest
// entries for display; Watch polls for entries written by other processes.
//
// # Error Handling
//
// Logging is best effort. A failed write or read never reaches the caller:
// the first failure of each kind logs a WARNING naming the expected table
// layout, later failures are silent. ListRecent returns an empty slice on
// failure.
//
// # Concurrency
//
// Log is safe for concurrent use. Watch runs until its context is done and
// delivers entries in id order, oldest first.
package changelog
