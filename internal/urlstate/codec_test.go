package urlstate

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(
		Page(),
		Enum(KeySortBy, "createdAt", "createdAt", "amount", "description"),
		SortOrder(SortAsc),
		Query(),
	)
	require.NoError(t, err)
	return s
}

func filterSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(
		Page(),
		Int("pageSize", 20),
		Enum(KeySortBy, "date", "date", "amount"),
		SortOrder(SortDesc),
		Query(),
		String("category", ""),
		Float("minAmount", 0),
		Bool("recurring", false),
	)
	require.NoError(t, err)
	return s
}

func TestNewSchemaRejectsInvalidDeclarations(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
		want   error
	}{
		{"empty key", []Field{String(" ", "")}, ErrEmptyKey},
		{"duplicate", []Field{Page(), Int(KeyPage, 1)}, ErrDuplicateField},
		{"enum default not allowed", []Field{Enum(KeySortBy, "x", "a", "b")}, ErrInvalidDefault},
		{"enum without values", []Field{Enum(KeySortBy, "a")}, ErrInvalidDefault},
		{"mistyped default", []Field{{Key: "n", Kind: KindInt, Default: "1"}}, ErrInvalidDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.fields...)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMustSchemaPanics(t *testing.T) {
	assert.Panics(t, func() { MustSchema(Page(), Page()) })
}

func TestEncodeOmitsDefaults(t *testing.T) {
	s := listSchema(t)

	assert.Empty(t, s.Encode(s.Defaults()))

	got := s.Encode(State{
		KeyPage:      1,
		KeySortBy:    "createdAt",
		KeySortOrder: SortDesc,
		KeyQuery:     "",
	})
	assert.Equal(t, url.Values{KeySortOrder: {SortDesc}}, got)
}

func TestEncodeNeverWritesPageOne(t *testing.T) {
	s, err := NewSchema(Int(KeyPage, 3))
	require.NoError(t, err)

	assert.Empty(t, s.Encode(State{KeyPage: 1}))
	assert.Equal(t, "2", s.Encode(State{KeyPage: 2}).Get(KeyPage))
}

func TestEncodeSkipsUnknownKeys(t *testing.T) {
	s := listSchema(t)
	got := s.Encode(State{"utm_source": "mail", KeyQuery: "rent"})
	assert.Equal(t, url.Values{KeyQuery: {"rent"}}, got)
}

func TestEncodeFormatsScalars(t *testing.T) {
	s := filterSchema(t)
	got := s.Encode(State{
		"pageSize":  50,
		"minAmount": 12.5,
		"recurring": true,
	})
	assert.Equal(t, url.Values{
		"pageSize":  {"50"},
		"minAmount": {"12.5"},
		"recurring": {"true"},
	}, got)
}

func TestDecodeIsTotal(t *testing.T) {
	s := filterSchema(t)

	tests := []struct {
		name  string
		query string
		key   string
		want  any
	}{
		{"missing page", "", KeyPage, 1},
		{"page", "page=4", KeyPage, 4},
		{"page with spaces", "page=%204%20", KeyPage, 4},
		{"malformed page", "page=abc", KeyPage, 1},
		{"float page", "page=2.5", KeyPage, 1},
		{"enum allowed", "sortBy=amount", KeySortBy, "amount"},
		{"enum not allowed", "sortBy=DROP+TABLE", KeySortBy, "date"},
		{"sort order bogus", "sortOrder=sideways", KeySortOrder, SortDesc},
		{"string raw", "q=rent+%26+bills", KeyQuery, "rent & bills"},
		{"float", "minAmount=9.99", "minAmount", 9.99},
		{"float NaN", "minAmount=NaN", "minAmount", 0.0},
		{"float Inf", "minAmount=Inf", "minAmount", 0.0},
		{"bool true", "recurring=true", "recurring", true},
		{"bool other", "recurring=yes", "recurring", false},
		{"first value wins", "category=food&category=rent", "category", "food"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			st := s.Decode(params)
			assert.Equal(t, tt.want, st[tt.key])
			assert.Len(t, st, len(s.Fields()))
		})
	}
}

func TestDecodeIgnoresUnknownParams(t *testing.T) {
	s := listSchema(t)
	st := s.Decode(url.Values{"utm_source": {"mail"}, KeyPage: {"2"}})

	_, present := st["utm_source"]
	assert.False(t, present)
	assert.Equal(t, 2, st.Page())
}

func TestRoundTrip(t *testing.T) {
	s := filterSchema(t)
	states := []State{
		s.Defaults(),
		s.Defaults().With(KeyPage, 7),
		s.Defaults().With(KeyQuery, "rent").With(KeySortBy, "amount").With(KeySortOrder, SortAsc),
		s.Defaults().With("minAmount", 0.1).With("recurring", true).With("category", "food & drink"),
		s.Defaults().With("pageSize", 100).With(KeyPage, 12),
	}

	for _, st := range states {
		encoded := s.Encode(st)
		reparsed, err := url.ParseQuery(encoded.Encode())
		require.NoError(t, err)
		assert.Equal(t, st, s.Decode(reparsed), "query %q", encoded.Encode())
	}
}

func TestDecodePartialKeepsOnlyPresentKeys(t *testing.T) {
	s := filterSchema(t)
	got := s.DecodePartial(url.Values{KeyPage: {"3"}, "other": {"x"}})
	assert.Equal(t, State{KeyPage: 3}, got)
}

func TestCanonicalIgnoresOrderAndNoise(t *testing.T) {
	s := listSchema(t)

	a, _ := url.ParseQuery("sortOrder=desc&sortBy=amount&page=2&utm=1")
	b, _ := url.ParseQuery("page=2&sortBy=amount&sortOrder=desc")
	c, _ := url.ParseQuery("page=1&sortBy=amount&sortOrder=desc&q=")

	assert.Equal(t, s.Canonical(a), s.Canonical(b))
	assert.Equal(t, "sortBy=amount&sortOrder=desc", s.Canonical(c))
}

func TestHref(t *testing.T) {
	s := listSchema(t)
	assert.Equal(t, "/expenses", s.Href("/expenses", s.Defaults()))
	assert.Equal(t, "/expenses?page=2", s.Href("/expenses", s.Defaults().With(KeyPage, 2)))
}
