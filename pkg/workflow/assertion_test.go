package workflow

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertion(path string, kind MatcherKind, expected string) Assertion {
	return Assertion{Path: path, Matcher: Matcher{Kind: kind, Expected: expected}}
}

func TestValidate_NoShortCircuit(t *testing.T) {
	resp := &ResponseSpec{
		Status:  200,
		Headers: http.Header{"X-Request-Id": []string{"req-1"}},
		Body:    `{"user": {"id": 7, "email": "a@b.c"}, "tags": []}`,
	}

	disabled := false
	assertions := []Assertion{
		assertion("status", MatchEquals, "200"),
		assertion("$.user.id", MatchGreaterThan, "100"),
		assertion("$.user.email", MatchRegex, "("),
		assertion("$.missing", MatchEquals, "x"),
		assertion("header.X-Request-Id", MatchStartsWith, "req-"),
		assertion("$.tags", MatchIsEmpty, ""),
		{Path: "status", Matcher: Matcher{Kind: MatchEquals, Expected: "500"}, Enabled: &disabled},
	}

	report := Validate(resp, assertions)
	require.Len(t, report.Results, 6)
	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 3, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Errored)
	assert.False(t, report.Success())

	statuses := make([]Status, len(report.Results))
	for i, r := range report.Results {
		statuses[i] = r.Status
	}
	assert.Equal(t, []Status{
		StatusPassed, StatusFailed, StatusErrored, StatusErrored, StatusPassed, StatusPassed,
	}, statuses)

	assert.Equal(t, "7", report.Results[1].Actual.String())
	assert.ErrorIs(t, report.Results[2].Err, ErrInvalidPattern)
	assert.ErrorIs(t, report.Results[3].Err, ErrPathNotFound)
	assert.Equal(t, "1 of 6 assertions failed, 2 errored", report.Summary())
}

func TestEvaluate_MissingPath(t *testing.T) {
	resp := &ResponseSpec{Status: 200, Body: `{"ok":true,"items":[1]}`}

	tests := []struct {
		name string
		a    Assertion
		want Status
	}{
		{"is null", assertion("$.error", MatchIsNull, ""), StatusPassed},
		{"is not null", assertion("$.error", MatchIsNotNull, ""), StatusFailed},
		{"is empty", assertion("$.error", MatchIsEmpty, ""), StatusPassed},
		{"is not empty", assertion("$.error", MatchIsNotEmpty, ""), StatusFailed},
		{"not contains", assertion("$.error", MatchNotContains, "denied"), StatusPassed},
		{"not equals", assertion("$.error", MatchNotEquals, "x"), StatusPassed},
		{"equals stays errored", assertion("$.error", MatchEquals, ""), StatusErrored},
		{"comparison stays errored", assertion("$.count", MatchGreaterThan, "0"), StatusErrored},
		{"type mismatch stays errored", assertion("$.ok.nested", MatchIsNull, ""), StatusErrored},
		{"index out of range", assertion("$.items[3]", MatchIsNull, ""), StatusPassed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(resp, tt.a)
			assert.Equal(t, tt.want, res.Status, res.Error)
			if tt.want != StatusErrored {
				assert.True(t, res.Actual.IsNull())
				assert.Empty(t, res.Error)
			}
		})
	}
}

func TestEvaluate_EmptyBody(t *testing.T) {
	res := Evaluate(&ResponseSpec{Status: 204}, assertion("$.a", MatchEquals, "1"))
	require.Equal(t, StatusErrored, res.Status)
	assert.Contains(t, res.Error, "not valid JSON")

	res = Evaluate(&ResponseSpec{Status: 204}, assertion("$.a", MatchIsNull, ""))
	assert.Equal(t, StatusErrored, res.Status, "a body that is not JSON cannot answer for absence")
}

func TestAssertionResult_Summary(t *testing.T) {
	resp := &ResponseSpec{Status: 404}

	pass := Evaluate(resp, assertion("status", MatchLessThan, "500"))
	assert.Equal(t, "PASS status < 500", pass.Summary())

	fail := Evaluate(resp, assertion("status", MatchEquals, "200"))
	assert.Equal(t, "FAIL status equals '200': expected equals '200', got '404'", fail.Summary())

	described := assertion("status", MatchEquals, "200")
	described.Description = "request succeeds"
	assert.Equal(t, "request succeeds", described.Label())
}

func TestValidate_AllPassed(t *testing.T) {
	report := Validate(&ResponseSpec{Status: 204}, []Assertion{
		assertion("status", MatchEquals, "204"),
		assertion("body", MatchIsEmpty, ""),
	})
	assert.True(t, report.Success())
	assert.Equal(t, "all 2 assertions passed", report.Summary())
}
