package remote

import (
	"encoding/json"
	"strings"
	"unicode"
)

// snakeCase converts an internal camelCase key to the wire's snake_case
// ("assigneeIds" -> "assignee_ids").
func snakeCase(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// snakeKeys rewrites every object key in v, recursively.
func snakeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[snakeCase(k)] = snakeKeys(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = snakeKeys(t[i])
		}
		return t
	}
	return v
}

// toWire marshals an entity or patch through its internal JSON shape and
// returns the snake_case payload. Creates pass withoutID so the transient
// id never leaves the client.
func toWire(v any, withoutID bool) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	payload, _ := snakeKeys(generic).(map[string]any)
	if payload == nil {
		payload = map[string]any{}
	}
	if withoutID {
		delete(payload, "id")
	}
	return payload, nil
}

// entityOf unwraps single-record envelopes such as {"data": {...}} or
// {"task": {...}}. Anything else is returned as is.
func entityOf(raw any, keys ...string) any {
	m, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	for _, k := range append([]string{"data"}, keys...) {
		if inner, ok := m[k].(map[string]any); ok {
			return inner
		}
	}
	return raw
}
