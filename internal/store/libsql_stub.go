//go:build !libsql

package store

import "errors"

// OpenRemote is only available in binaries built with -tags libsql.
func OpenRemote(url, authToken string) (*DB, error) {
	return nil, errors.New("libsql support not compiled in (rebuild with -tags libsql)")
}
