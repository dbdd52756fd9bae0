package urlstate

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Kind is the scalar type of a state field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindEnum
)

// String implements fmt.Stringer
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Well-known keys shared by every list view.
const (
	KeyPage      = "page"
	KeySortBy    = "sortBy"
	KeySortOrder = "sortOrder"
	KeyQuery     = "q"
)

// Sort orders accepted by SortOrder.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

var (
	ErrEmptyKey       = errors.New("urlstate: empty field key")
	ErrDuplicateField = errors.New("urlstate: duplicate field")
	ErrInvalidDefault = errors.New("urlstate: invalid default value")
	ErrUnknownField   = errors.New("urlstate: unknown field")
	ErrFieldType      = errors.New("urlstate: value does not match field kind")
)

// Field declares one recognized URL parameter and its default.
type Field struct {
	Key     string
	Kind    Kind
	Default any
	Allowed []string // enum only
}

// String declares a free-text field.
func String(key, def string) Field {
	return Field{Key: key, Kind: KindString, Default: def}
}

// Int declares an integer field.
func Int(key string, def int) Field {
	return Field{Key: key, Kind: KindInt, Default: def}
}

// Float declares a decimal field.
func Float(key string, def float64) Field {
	return Field{Key: key, Kind: KindFloat, Default: def}
}

// Bool declares a boolean flag.
func Bool(key string, def bool) Field {
	return Field{Key: key, Kind: KindBool, Default: def}
}

// Enum declares a field restricted to a fixed set of literals.
func Enum(key, def string, allowed ...string) Field {
	return Field{Key: key, Kind: KindEnum, Default: def, Allowed: allowed}
}

// Page declares the standard page field (default 1).
func Page() Field {
	return Int(KeyPage, 1)
}

// SortOrder declares the standard asc/desc field.
func SortOrder(def string) Field {
	return Enum(KeySortOrder, def, SortAsc, SortDesc)
}

// Query declares the standard free-text search field.
func Query() Field {
	return String(KeyQuery, "")
}

func (f Field) validate() error {
	if strings.TrimSpace(f.Key) == "" {
		return ErrEmptyKey
	}
	ok := false
	switch f.Kind {
	case KindString:
		_, ok = f.Default.(string)
	case KindInt:
		_, ok = f.Default.(int)
	case KindFloat:
		var v float64
		v, ok = f.Default.(float64)
		ok = ok && !math.IsNaN(v) && !math.IsInf(v, 0)
	case KindBool:
		_, ok = f.Default.(bool)
	case KindEnum:
		var v string
		v, ok = f.Default.(string)
		ok = ok && len(f.Allowed) > 0 && slices.Contains(f.Allowed, v)
	}
	if !ok {
		return fmt.Errorf("%w: field %q (%s) default %v", ErrInvalidDefault, f.Key, f.Kind, f.Default)
	}
	return nil
}

// Schema is the initial-state shape of a view: the ordered set of recognized
// keys and their defaults. A Schema is immutable and safe to share.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema validates fields and builds a Schema.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := f.validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[f.Key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateField, f.Key)
		}
		f.Allowed = slices.Clone(f.Allowed)
		s.index[f.Key] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on an invalid declaration.
// Intended for package-level view declarations.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	return slices.Clone(s.fields)
}

// Field looks up a field by key.
func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.index[key]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether key is a recognized parameter.
func (s *Schema) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Defaults returns the initial state.
func (s *Schema) Defaults() State {
	st := make(State, len(s.fields))
	for _, f := range s.fields {
		st[f.Key] = f.Default
	}
	return st
}

// normalize converts v to the canonical Go type of the field kind.
func (f Field) normalize(v any) (any, error) {
	switch f.Kind {
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindEnum:
		if s, ok := v.(string); ok {
			if !slices.Contains(f.Allowed, s) {
				return nil, fmt.Errorf("%w: %q is not one of %v for %q", ErrFieldType, s, f.Allowed, f.Key)
			}
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int8:
			return int(n), nil
		case int16:
			return int(n), nil
		case int32:
			return int(n), nil
		case int64:
			return int(n), nil
		case uint:
			return int(n), nil
		case uint8:
			return int(n), nil
		case uint16:
			return int(n), nil
		case uint32:
			return int(n), nil
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	}
	return nil, fmt.Errorf("%w: %q expects %s, got %T", ErrFieldType, f.Key, f.Kind, v)
}
