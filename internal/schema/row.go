package schema

import (
	"encoding/json"
	"strconv"
	"time"
)

// Row is a single table row keyed by column name.
//
// Values are int64, string, bool, json.RawMessage, time.Time or nil. The
// accessors below tolerate the neighbouring Go types (int, float64, []byte)
// so rows built by hand in tests read the same as rows from the store.
type Row map[string]any

// ID returns the row id, or 0 when absent.
func (r Row) ID() int64 {
	return r.Int("id")
}

// Int returns an integer column.
func (r Row) Int(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// Text returns a text column.
func (r Row) Text(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// Bool returns a boolean column. SQLite stores booleans as integers.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// JSON returns a JSON column as raw bytes.
func (r Row) JSON(col string) json.RawMessage {
	switch v := r[col].(type) {
	case json.RawMessage:
		return v
	case []byte:
		return json.RawMessage(v)
	case string:
		return json.RawMessage(v)
	}
	return nil
}

// Time returns a timestamp column.
func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

// withID adds the id column when the entity has one.
func withID(id int64, r Row) Row {
	if id > 0 {
		r["id"] = id
	}
	return r
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
