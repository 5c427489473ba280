package workflow

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, body string) Value {
	t.Helper()
	v, err := ParseJSON([]byte(body))
	require.NoError(t, err)
	return v
}

func TestExtract(t *testing.T) {
	doc := mustParse(t, `{
		"a": {"b": [1, 2, 3]},
		"auth": {"token": "abc123"},
		"users": [{"name": "ann", "age": 31}, {"name": "bob", "age": 27}],
		"nothing": null,
		"my key": "spaced"
	}`)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"array index", "$.a.b[1]", "2"},
		{"nested member", "$.auth.token", "abc123"},
		{"member of indexed element", "$.users[1].name", "bob"},
		{"negative index", "$.a.b[-1]", "3"},
		{"bracket member", "$['my key']", "spaced"},
		{"null value", "$.nothing", ""},
		{"whole container", "$.a", `{"b":[1,2,3]}`},
		{"root", "$", ""},
		{"wildcard collects", "$.users[*].name", `["ann","bob"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(doc, tt.path)
			require.NoError(t, err)
			if tt.path == "$" {
				assert.True(t, got.Equal(doc))
				return
			}
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestExtract_Errors(t *testing.T) {
	doc := mustParse(t, `{"a": {"b": [1, 2, 3]}, "s": "text"}`)

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"missing member", "$.a.c", ErrPathNotFound},
		{"index out of range", "$.a.b[7]", ErrPathNotFound},
		{"index into object", "$.a[0]", ErrTypeMismatch},
		{"member of array", "$.a.b.c", ErrTypeMismatch},
		{"member of string", "$.s.len", ErrTypeMismatch},
		{"no wildcard match", "$.a.b[*].x", ErrPathNotFound},
		{"unparseable", "$.a[", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(doc, tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var ee *ExtractionError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.path, ee.Path)
		})
	}
}

func TestResolveTarget(t *testing.T) {
	resp := &ResponseSpec{
		Status:  201,
		Headers: http.Header{"Content-Type": []string{"application/json"}},
		Body:    `{"id": 7}`,
		Elapsed: 1500 * time.Microsecond,
	}

	tests := []struct {
		path string
		want string
	}{
		{"status", "201"},
		{"body", `{"id": 7}`},
		{"duration", "1.5"},
		{"responseTime", "1.5"},
		{"header.content-type", "application/json"},
		{"headers.Content-Type", "application/json"},
		{"header:X-Missing", ""},
		{"$.id", "7"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ResolveTarget(resp, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := ResolveTarget(&ResponseSpec{Body: "<html>"}, "$.id")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestValidateTarget(t *testing.T) {
	assert.NoError(t, ValidateTarget("status"))
	assert.NoError(t, ValidateTarget("header.X-Id"))
	assert.NoError(t, ValidateTarget("$.items[0].id"))
	assert.ErrorIs(t, ValidateTarget("$.items["), ErrInvalidPath)
}
