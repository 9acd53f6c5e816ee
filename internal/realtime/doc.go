// Package realtime tells interested parties that a table changed.
//
// Notifications carry no payload. A subscriber learns only which table
// changed and is expected to refetch it.
//
// # In-process
//
// Subscribe and Notifier combine the per-table SubscribeChanges feed of a
// store into one subscription over several tables:
//
//	unsubscribe := realtime.Subscribe(db, schema.ActivityTables(), refresh)
//	defer unsubscribe()
//
// # Across processes
//
// Server listens to a store and rebroadcasts every change as a JSON
// websocket frame:
//
//	{"id":"…","type":"table_changed","timestamp":"2024-03-06T18:00:00Z","table":"ropa"}
//
// RemoteFeed is the client side. It implements the same SubscribeChanges
// method, so Subscribe works unchanged against a remote server.
package realtime
