package schema

import (
	"bytes"
	"encoding/json"
)

// NormalisePayload converts a change-log payload to JSON.
//
// Objects and arrays are kept as they serialize. Other non-nil values are
// wrapped as {"value": v}. nil, and values encoding/json rejects (funcs,
// channels, cyclic pointers), yield nil.
func NormalisePayload(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		return json.RawMessage(data)
	}

	wrapped, err := json.Marshal(map[string]json.RawMessage{"value": data})
	if err != nil {
		return nil
	}
	return json.RawMessage(wrapped)
}
