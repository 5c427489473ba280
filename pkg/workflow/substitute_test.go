package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Precedence(t *testing.T) {
	store := NewStore(
		map[string]Value{"host": String("env.example.com"), "user": String("env-user")},
		map[string]Value{"user": String("chain-user")},
	)

	v, ok := store.Get("user")
	require.True(t, ok)
	assert.Equal(t, "chain-user", v.String())

	store.Set("user", String("step-user"))
	v, _ = store.Get("user")
	assert.Equal(t, "step-user", v.String())

	store.Unset("user")
	v, _ = store.Get("user")
	assert.Equal(t, "chain-user", v.String())

	v, _ = store.Get("host")
	assert.Equal(t, "env.example.com", v.String())

	snap := store.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, "chain-user", snap["user"].String())
	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestStore_CopiesInput(t *testing.T) {
	env := map[string]Value{"a": Number(1)}
	store := NewStore(env, nil)
	env["a"] = Number(2)

	v, _ := store.Get("a")
	assert.Equal(t, "1", v.String())
}

func TestSubstitutor_Substitute(t *testing.T) {
	store := NewStore(nil, map[string]Value{
		"token": String("abc123"),
		"id":    Number(42),
		"ratio": Number(0.5),
		"flag":  Bool(true),
		"empty": Null(),
		"loop":  String("{{token}}"),
	})
	sub := NewSubstitutor(store, nil)

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"no placeholders", "plain text", "plain text"},
		{"bearer", "Bearer {{token}}", "Bearer abc123"},
		{"inner whitespace", "{{ token }}", "abc123"},
		{"number", "/users/{{id}}", "/users/42"},
		{"fraction", "{{ratio}}", "0.5"},
		{"bool", "{{flag}}", "true"},
		{"null", "[{{empty}}]", "[]"},
		{"repeated", "{{id}}-{{id}}", "42-42"},
		{"not re-expanded", "{{loop}}", "{{token}}"},
		{"single braces untouched", "{token}", "{token}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sub.Substitute(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubstitutor_Unresolved(t *testing.T) {
	sub := NewSubstitutor(NewStore(nil, map[string]Value{"a": String("x")}), nil)

	_, err := sub.SubstituteField("url", "{{a}}/{{missing}}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedVariable))

	var te *TemplateError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "missing", te.Name)
	assert.Equal(t, "url", te.Field)

	assert.Equal(t, []string{"missing", "other"}, sub.Missing("{{missing}} {{a}} {{other}} {{missing}}"))
}

func TestSubstitutor_Idempotent(t *testing.T) {
	sub := NewSubstitutor(NewStore(nil, map[string]Value{"host": String("api.test"), "v": Number(2)}), nil)

	once, err := sub.Substitute("https://{{host}}/v{{v}}/items")
	require.NoError(t, err)
	twice, err := sub.Substitute(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestSubstitutor_ReadsStoreAtCallTime(t *testing.T) {
	store := NewStore(nil, nil)
	sub := NewSubstitutor(store, nil)

	_, err := sub.Substitute("{{token}}")
	require.Error(t, err)

	store.Set("token", String("late"))
	got, err := sub.Substitute("{{token}}")
	require.NoError(t, err)
	assert.Equal(t, "late", got)
}

func TestSubstitutor_MapDeterministicFailure(t *testing.T) {
	sub := NewSubstitutor(NewStore(nil, nil), nil)
	headers := map[string]string{"Z": "{{z}}", "A": "{{a}}", "M": "{{m}}"}

	for range 20 {
		_, err := sub.SubstituteMap("headers", headers)
		var te *TemplateError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "a", te.Name)
		assert.Equal(t, "headers.A", te.Field)
	}
}

func TestSubstitutor_Dynamic(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGenerators(7).WithNowFunc(func() time.Time { return fixed })
	sub := NewSubstitutor(NewStore(nil, nil), gen)

	got, err := sub.Substitute("{{$timestamp}} {{$isoTimestamp}}")
	require.NoError(t, err)
	assert.Equal(t, "1709294400 2024-03-01T12:00:00Z", got)

	id, err := sub.Substitute("{{$uuid}}")
	require.NoError(t, err)
	assert.Len(t, id, 36)

	email, err := sub.Substitute("{{$faker.email}}")
	require.NoError(t, err)
	assert.Contains(t, email, "@")

	_, err = sub.Substitute("{{$faker.nope}}")
	assert.ErrorIs(t, err, ErrUnresolvedVariable)

	_, err = NewSubstitutor(NewStore(nil, nil), nil).Substitute("{{$uuid}}")
	assert.ErrorIs(t, err, ErrUnresolvedVariable)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"a", "$uuid", "a"}, Placeholders("{{a}} {{ $uuid }} {{a}}"))
	assert.True(t, HasPlaceholders("x {{y}}"))
	assert.False(t, HasPlaceholders("x {y}"))
}
