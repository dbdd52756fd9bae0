package urlstate

import "maps"

// State is a decoded FilterState: schema key -> scalar value (string, int,
// float64 or bool). A State produced by Decode always carries every schema
// key; a partial State passed to SetState carries only the keys to change.
type State map[string]any

// Clone returns a shallow copy. Values are scalars, so the copy is independent.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// Equal reports structural equality.
func (s State) Equal(other State) bool {
	return maps.Equal(s, other)
}

// String returns the value of key as a string, or "" if absent or not a string.
func (s State) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Int returns the value of key as an int, or 0.
func (s State) Int(key string) int {
	v, _ := s[key].(int)
	return v
}

// Float returns the value of key as a float64, or 0.
func (s State) Float(key string) float64 {
	v, _ := s[key].(float64)
	return v
}

// Bool returns the value of key as a bool, or false.
func (s State) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// Page returns the page field.
func (s State) Page() int {
	return s.Int(KeyPage)
}

// With returns a copy of s with key set to v.
func (s State) With(key string, v any) State {
	c := s.Clone()
	c[key] = v
	return c
}
