// Package extract recovers JSON records from free-form LLM output.
//
// Models wrap their answers in markdown fences, prepend chatter, or return
// an object where a list was asked for. JSON walks a fixed sequence of
// recovery steps and always yields a list, possibly empty. It never fails.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	jsonFence = "```json"
	fence     = "```"
)

// flatObject matches the first brace-delimited span with no nested braces.
var flatObject = regexp.MustCompile(`\{[^{}]*\}`)

// JSON extracts the list of records stored under key from raw.
// An empty key means "whatever list the payload holds".
// The result is never nil.
func JSON(raw, key string) []json.RawMessage {
	candidate := fencedCandidate(raw)

	items, ok := interpret([]byte(candidate), key)
	if ok {
		return items
	}

	if obj, ok := embeddedObject(raw); ok {
		if items, ok := interpret([]byte(obj), key); ok {
			return items
		}
	}
	return []json.RawMessage{}
}

// Recoverable reports whether raw carries any JSON payload that JSON could
// read: a fenced or bare document, or an object embedded in prose.
func Recoverable(raw string) bool {
	if json.Valid([]byte(fencedCandidate(raw))) {
		return true
	}
	obj, ok := embeddedObject(raw)
	return ok && json.Valid([]byte(obj))
}

// maxObjectStarts bounds the balanced-brace scan in embeddedObject.
const maxObjectStarts = 64

// embeddedObject finds a JSON object buried in prose. It prefers the first
// balanced {...} span that parses, so nested records survive, and falls back
// to the first flat object.
func embeddedObject(raw string) (string, bool) {
	starts := 0
	for i := 0; i < len(raw) && starts < maxObjectStarts; i++ {
		if raw[i] != '{' {
			continue
		}
		starts++
		end, ok := balancedEnd(raw, i)
		if !ok {
			continue
		}
		if span := raw[i : end+1]; json.Valid([]byte(span)) {
			return span, true
		}
	}
	if m := flatObject.FindString(raw); m != "" {
		return m, true
	}
	return "", false
}

// balancedEnd returns the index of the brace closing the one at start,
// skipping braces inside JSON strings.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// fencedCandidate picks the text worth parsing: the body of a ```json fence,
// else the body of the first closed ``` fence, else raw itself.
func fencedCandidate(raw string) string {
	if body, ok := jsonFenceBody(raw); ok {
		return body
	}
	if body, ok := plainFenceBody(raw); ok {
		return body
	}
	return strings.TrimSpace(raw)
}

// jsonFenceBody returns the text after the first ```json tag up to the next
// fence. An unclosed fence runs to the end of the text.
func jsonFenceBody(raw string) (string, bool) {
	i := strings.Index(raw, jsonFence)
	if i < 0 {
		return "", false
	}
	rest := raw[i+len(jsonFence):]
	if j := strings.Index(rest, fence); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest), true
}

// plainFenceBody returns the text between the first ``` and the next one.
// Without a closing fence there is no body.
func plainFenceBody(raw string) (string, bool) {
	i := strings.Index(raw, fence)
	if i < 0 {
		return "", false
	}
	rest := raw[i+len(fence):]
	j := strings.Index(rest, fence)
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:j]), true
}

// interpret parses data and maps it to a record list. ok is false only when
// data is not valid JSON; a valid payload of the wrong shape yields an empty
// list with ok true.
func interpret(data []byte, key string) ([]json.RawMessage, bool) {
	var v json.RawMessage
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(v, &arr); err == nil {
		return nonNil(arr), true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(v, &obj); err != nil {
		// Scalar or null.
		return []json.RawMessage{}, true
	}

	switch {
	case key != "":
		return asList(obj[key]), true
	case len(obj) == 1:
		for _, val := range obj {
			return asList(val), true
		}
	}
	return []json.RawMessage{}, true
}

// asList returns the elements of a JSON array, or an empty list for anything else.
func asList(v json.RawMessage) []json.RawMessage {
	if len(v) == 0 {
		return []json.RawMessage{}
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(v, &arr); err != nil {
		return []json.RawMessage{}
	}
	return nonNil(arr)
}

func nonNil(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return []json.RawMessage{}
	}
	return items
}
