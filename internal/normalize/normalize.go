// Package normalize turns loosely typed records from the cache or the
// backend into well-formed entities. Nothing in this package returns an
// error: missing or wrong-typed fields take documented defaults and
// malformed collection elements are dropped.
package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Decode parses JSON into generic values, keeping numbers as json.Number.
// Unparseable input yields nil.
func Decode(data []byte) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// record is a decoded JSON object with lookup helpers that try several key
// spellings in order (internal camelCase first, then wire variants).
type record map[string]any

func asRecord(v any) (record, bool) {
	m, ok := v.(map[string]any)
	return record(m), ok
}

// lookup returns the first present, non-null value among keys.
func (r record) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r record) str(keys ...string) string {
	v, _ := r.lookup(keys...)
	s, _ := v.(string)
	return s
}

// id accepts strings, numbers and nested {"id": ...} objects.
func (r record) id(keys ...string) string {
	v, _ := r.lookup(keys...)
	return idString(v)
}

func (r record) ids(keys ...string) []string {
	v, _ := r.lookup(keys...)
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := idString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r record) strs(keys ...string) []string {
	v, _ := r.lookup(keys...)
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r record) integer(keys ...string) int {
	v, _ := r.lookup(keys...)
	f, _ := number(v)
	return int(f)
}

func (r record) float(keys ...string) float64 {
	v, _ := r.lookup(keys...)
	f, _ := number(v)
	return f
}

func (r record) flag(keys ...string) bool {
	v, _ := r.lookup(keys...)
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		return err == nil && parsed
	}
	return false
}

// date returns an ISO YYYY-MM-DD string, trimming full timestamps.
// Anything unparseable becomes "".
func (r record) date(keys ...string) string {
	s := strings.TrimSpace(r.str(keys...))
	if len(s) < 10 {
		return ""
	}
	if _, err := time.Parse("2006-01-02", s[:10]); err != nil {
		return ""
	}
	return s[:10]
}

// timestamp parses RFC 3339 strings or unix seconds, always in UTC. Missing or
// bad values yield the zero time.
func (r record) timestamp(keys ...string) time.Time {
	v, _ := r.lookup(keys...)
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t))
		if err != nil {
			return time.Time{}
		}
		return parsed.UTC()
	default:
		if f, ok := number(v); ok && f > 0 {
			sec, frac := math.Modf(f)
			return time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
	}
	return time.Time{}
}

// count returns a number, or the length when the value is an array.
func (r record) count(keys ...string) int {
	v, _ := r.lookup(keys...)
	if list, ok := v.([]any); ok {
		return len(list)
	}
	f, ok := number(v)
	if !ok || f < 0 {
		return 0
	}
	return int(f)
}

func (r record) list(keys ...string) []any {
	v, _ := r.lookup(keys...)
	list, _ := v.([]any)
	return list
}

// number coerces JSON numbers and numeric strings. NaN and infinities are
// rejected.
func number(v any) (float64, bool) {
	f, ok := rawNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rawNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case map[string]any:
		return idString(t["id"])
	}
	return ""
}

// enum canonicalises an enum spelling: lower case, dashes and spaces to
// underscores, then resolves aliases.
func enum(s string, aliases map[string]string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if alias, ok := aliases[s]; ok {
		return alias
	}
	return s
}

// unwrapList accepts a bare array or a common envelope
// ({"data": [...]}, {"items": [...]}, {"results": [...]}).
func unwrapList(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range []string{"data", "items", "results"} {
			if list, ok := v[key].([]any); ok {
				return list
			}
		}
	}
	return nil
}
