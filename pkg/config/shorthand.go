package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/getmockd/reqchain/pkg/workflow"
)

// ErrInvalidAssertion is returned for shorthand assertions that do not parse.
var ErrInvalidAssertion = errors.New("invalid assertion")

// shorthand is the grammar of "<path> <matcher words> [operand]".
type shorthand struct {
	Path   string   `parser:"@Word"`
	Words  []string `parser:"@(Op | Word)+"`
	Quoted *string  `parser:"@String?"`
}

var shorthandLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"|'[^']*'`},
	{Name: "Op", Pattern: `==|!=|<=|>=|<|>`},
	{Name: "Word", Pattern: `[^\s"']+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var shorthandParser = participle.MustBuild[shorthand](
	participle.Lexer(shorthandLexer),
	participle.Elide("Whitespace"),
)

// ParseAssertion parses the one-line assertion form:
//
//	status equals 200
//	$.user.email contains "@"
//	header.Content-Type starts with application/json
//	$.items is not empty
//	duration < 500
//
// Matcher names may be split into words ("greater than or equal") and are
// matched case-insensitively; the longest word run naming a matcher wins
// and the remaining words form the expected value.
func ParseAssertion(s string) (workflow.Assertion, error) {
	parsed, err := shorthandParser.ParseString("", s)
	if err != nil {
		return workflow.Assertion{}, fmt.Errorf("%w %q: %v", ErrInvalidAssertion, s, err)
	}

	kind, rest, ok := matchWords(parsed.Words)
	if !ok {
		return workflow.Assertion{}, fmt.Errorf("%w %q: unknown matcher %q", ErrInvalidAssertion, s, parsed.Words[0])
	}

	var expected string
	switch {
	case parsed.Quoted != nil && len(rest) > 0:
		return workflow.Assertion{}, fmt.Errorf("%w %q: unexpected %q before quoted value", ErrInvalidAssertion, s, strings.Join(rest, " "))
	case parsed.Quoted != nil:
		expected = unquote(*parsed.Quoted)
	default:
		expected = strings.Join(rest, " ")
	}

	hasOperand := parsed.Quoted != nil || len(rest) > 0
	if kind.NeedsOperand() && !hasOperand {
		return workflow.Assertion{}, fmt.Errorf("%w %q: %s needs an expected value", ErrInvalidAssertion, s, kind)
	}
	if !kind.NeedsOperand() && hasOperand {
		return workflow.Assertion{}, fmt.Errorf("%w %q: %s takes no expected value", ErrInvalidAssertion, s, kind)
	}

	return workflow.Assertion{
		Path:    parsed.Path,
		Matcher: workflow.Matcher{Kind: kind, Expected: expected},
	}, nil
}

func matchWords(words []string) (workflow.MatcherKind, []string, bool) {
	for n := len(words); n > 0; n-- {
		if kind, err := workflow.ParseMatcherKind(strings.Join(words[:n], "")); err == nil {
			return kind, words[n:], true
		}
	}
	return "", nil, false
}

func unquote(s string) string {
	if strings.HasPrefix(s, "'") {
		return strings.Trim(s, "'")
	}
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return strings.Trim(s, `"`)
}
