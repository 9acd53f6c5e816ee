//go:build libsql

package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/go-libsql"
)

// OpenRemote connects to a libSQL server (Turso or sqld) at url.
//
// The schema and queries are the same as the embedded database; only
// pragmas that make no sense over the network are skipped.
func OpenRemote(url, authToken string) (*DB, error) {
	dsn := url
	if authToken != "" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "authToken=" + authToken
	}

	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql database: %w", err)
	}
	return newDB(conn, url)
}
