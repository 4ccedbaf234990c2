package extract

import (
	"bytes"
	"encoding/json"
)

// Decode converts extracted records into T, dropping every element that is
// not a JSON object or whose fields do not fit T. Unknown fields are ignored
// and missing ones keep their zero value. The result is never nil.
func Decode[T any](items []json.RawMessage) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var v T
		if err := json.Unmarshal(trimmed, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
