package urlstate

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Encode serializes st to query parameters. A value is written only when it
// is non-empty, differs from the field default and is not page 1. Keys
// outside the schema are never written.
func (s *Schema) Encode(st State) url.Values {
	params := url.Values{}
	for _, f := range s.fields {
		v, ok := st[f.Key]
		if !ok || v == nil {
			continue
		}
		if str, isStr := v.(string); isStr && str == "" {
			continue
		}
		if v == f.Default {
			continue
		}
		if f.Key == KeyPage && v == 1 {
			continue
		}
		text, ok := format(v)
		if !ok {
			continue
		}
		params.Set(f.Key, text)
	}
	return params
}

// Decode parses params into a full State. It never fails: missing keys and
// values that do not coerce to the field kind take the default, unknown
// parameters are ignored.
func (s *Schema) Decode(params url.Values) State {
	st := make(State, len(s.fields))
	for _, f := range s.fields {
		st[f.Key] = f.Default
		if raw, ok := lookup(params, f.Key); ok {
			st[f.Key] = f.coerce(raw)
		}
	}
	return st
}

// DecodePartial is like Decode but returns only the schema keys present in
// params. It is the merge payload for a control that sends a single
// parameter (a pagination link, one filter select).
func (s *Schema) DecodePartial(params url.Values) State {
	st := State{}
	for _, f := range s.fields {
		if raw, ok := lookup(params, f.Key); ok {
			st[f.Key] = f.coerce(raw)
		}
	}
	return st
}

// Canonical returns the canonical query string for params: unknown keys
// dropped, malformed values and defaults collapsed, keys sorted. Two query
// strings describe the same state iff their canonical forms are equal.
func (s *Schema) Canonical(params url.Values) string {
	return s.Encode(s.Decode(params)).Encode()
}

// Href renders path plus the encoded state, omitting "?" when there is
// nothing to encode.
func (s *Schema) Href(path string, st State) string {
	q := s.Encode(st).Encode()
	if q == "" {
		return path
	}
	return path + "?" + q
}

func lookup(params url.Values, key string) (string, bool) {
	vs, ok := params[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (f Field) coerce(raw string) any {
	switch f.Kind {
	case KindInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return f.Default
		}
		return n
	case KindFloat:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return f.Default
		}
		return n
	case KindBool:
		return raw == "true"
	case KindEnum:
		if slices.Contains(f.Allowed, raw) {
			return raw
		}
		return f.Default
	default:
		return raw
	}
}

func format(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case int:
		return strconv.Itoa(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
