package workflow

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// MatcherKind names a comparison operation.
type MatcherKind string

// Matcher kinds. The names double as the document format.
const (
	MatchEquals             MatcherKind = "equals"
	MatchNotEquals          MatcherKind = "notEquals"
	MatchContains           MatcherKind = "contains"
	MatchNotContains        MatcherKind = "notContains"
	MatchStartsWith         MatcherKind = "startsWith"
	MatchEndsWith           MatcherKind = "endsWith"
	MatchRegex              MatcherKind = "regex"
	MatchLessThan           MatcherKind = "lessThan"
	MatchLessThanOrEqual    MatcherKind = "lessThanOrEqual"
	MatchGreaterThan        MatcherKind = "greaterThan"
	MatchGreaterThanOrEqual MatcherKind = "greaterThanOrEqual"
	MatchIsEmpty            MatcherKind = "isEmpty"
	MatchIsNotEmpty         MatcherKind = "isNotEmpty"
	MatchHasLength          MatcherKind = "hasLength"
	MatchIsNull             MatcherKind = "isNull"
	MatchIsNotNull          MatcherKind = "isNotNull"
)

// MatcherKinds lists every kind in declaration order.
var MatcherKinds = []MatcherKind{
	MatchEquals, MatchNotEquals,
	MatchContains, MatchNotContains,
	MatchStartsWith, MatchEndsWith,
	MatchRegex,
	MatchLessThan, MatchLessThanOrEqual, MatchGreaterThan, MatchGreaterThanOrEqual,
	MatchIsEmpty, MatchIsNotEmpty, MatchHasLength,
	MatchIsNull, MatchIsNotNull,
}

var matcherAliases = map[string]MatcherKind{
	"eq": MatchEquals, "==": MatchEquals,
	"ne": MatchNotEquals, "!=": MatchNotEquals,
	"lt": MatchLessThan, "<": MatchLessThan,
	"lte": MatchLessThanOrEqual, "<=": MatchLessThanOrEqual,
	"gt": MatchGreaterThan, ">": MatchGreaterThan,
	"gte": MatchGreaterThanOrEqual, ">=": MatchGreaterThanOrEqual,
	"matches": MatchRegex,
}

// ParseMatcherKind resolves a kind name or alias, case-insensitively.
func ParseMatcherKind(s string) (MatcherKind, error) {
	for _, k := range MatcherKinds {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	if k, ok := matcherAliases[strings.ToLower(s)]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMatcher, s)
}

// NeedsOperand reports whether the kind compares against an expected value.
func (k MatcherKind) NeedsOperand() bool {
	switch k {
	case MatchIsEmpty, MatchIsNotEmpty, MatchIsNull, MatchIsNotNull:
		return false
	default:
		return true
	}
}

// AcceptsAbsent reports whether the kind gives a meaningful answer for a
// missing field, which it sees as null.
func (k MatcherKind) AcceptsAbsent() bool {
	switch k {
	case MatchIsNull, MatchIsNotNull, MatchIsEmpty, MatchIsNotEmpty, MatchNotContains, MatchNotEquals:
		return true
	default:
		return false
	}
}

// Status is the outcome of an evaluated check.
type Status string

// Check and step statuses.
const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// Matcher compares an actual value with an expected literal.
type Matcher struct {
	Kind     MatcherKind `json:"matcher" yaml:"matcher"`
	Expected string      `json:"expected,omitempty" yaml:"expected,omitempty"`
}

// Outcome is the result of one matcher evaluation. Err is set when Status is
// StatusErrored and wraps ErrTypeCoercion, ErrInvalidPattern or
// ErrUnknownMatcher.
type Outcome struct {
	Status Status
	Err    error
}

func passIf(ok bool) Outcome {
	if ok {
		return Outcome{Status: StatusPassed}
	}
	return Outcome{Status: StatusFailed}
}

func errored(err error) Outcome {
	return Outcome{Status: StatusErrored, Err: err}
}

// Match evaluates the matcher against actual.
func (m Matcher) Match(actual Value) Outcome {
	switch m.Kind {
	case MatchEquals:
		return passIf(m.equal(actual))
	case MatchNotEquals:
		return passIf(!m.equal(actual))
	case MatchContains:
		return passIf(strings.Contains(actual.String(), m.Expected))
	case MatchNotContains:
		return passIf(!strings.Contains(actual.String(), m.Expected))
	case MatchStartsWith:
		return passIf(strings.HasPrefix(actual.String(), m.Expected))
	case MatchEndsWith:
		return passIf(strings.HasSuffix(actual.String(), m.Expected))
	case MatchRegex:
		re, err := compilePattern(m.Expected)
		if err != nil {
			return errored(err)
		}
		return passIf(re.MatchString(actual.String()))
	case MatchLessThan, MatchLessThanOrEqual, MatchGreaterThan, MatchGreaterThanOrEqual:
		return m.compare(actual)
	case MatchIsEmpty:
		return passIf(actual.Length() == 0)
	case MatchIsNotEmpty:
		return passIf(actual.Length() != 0)
	case MatchHasLength:
		n, err := strconv.Atoi(strings.TrimSpace(m.Expected))
		if err != nil || n < 0 {
			return errored(fmt.Errorf("%w: length %q is not a non-negative integer", ErrTypeCoercion, m.Expected))
		}
		return passIf(actual.Length() == n)
	case MatchIsNull:
		return passIf(actual.IsNull())
	case MatchIsNotNull:
		return passIf(!actual.IsNull())
	default:
		return errored(fmt.Errorf("%w: %q", ErrUnknownMatcher, m.Kind))
	}
}

// equal compares numerically when actual is a number and the expected text
// parses as one; otherwise it compares canonical strings exactly.
func (m Matcher) equal(actual Value) bool {
	if actual.Kind() == KindNumber {
		if c, ok := compareNumeric(actual, strings.TrimSpace(m.Expected)); ok {
			return c == 0
		}
	}
	return actual.String() == m.Expected
}

func (m Matcher) compare(actual Value) Outcome {
	if _, ok := actual.Numeric(); !ok {
		return errored(fmt.Errorf("%w: actual %s value %q is not numeric", ErrTypeCoercion, actual.Kind(), actual.String()))
	}
	c, ok := compareNumeric(actual, strings.TrimSpace(m.Expected))
	if !ok {
		return errored(fmt.Errorf("%w: expected %q is not numeric", ErrTypeCoercion, m.Expected))
	}
	switch m.Kind {
	case MatchLessThan:
		return passIf(c < 0)
	case MatchLessThanOrEqual:
		return passIf(c <= 0)
	case MatchGreaterThan:
		return passIf(c > 0)
	default:
		return passIf(c >= 0)
	}
}

// compareNumeric orders actual against the expected literal. Two integers
// compare exactly; anything else compares as float64.
func compareNumeric(actual Value, expected string) (int, bool) {
	if a, ok := actual.exactInt(); ok {
		if e, err := strconv.ParseInt(expected, 10, 64); err == nil {
			return cmp.Compare(a, e), true
		}
	}
	a, ok := actual.Numeric()
	if !ok {
		return 0, false
	}
	e, ok := parseNumber(expected)
	if !ok {
		return 0, false
	}
	return cmp.Compare(a, e), true
}

// Description renders the matcher for reports, e.g. "equals '200'" or "< 500".
func (m Matcher) Description() string {
	switch m.Kind {
	case MatchEquals:
		return fmt.Sprintf("equals '%s'", m.Expected)
	case MatchNotEquals:
		return fmt.Sprintf("not equals '%s'", m.Expected)
	case MatchContains:
		return fmt.Sprintf("contains '%s'", m.Expected)
	case MatchNotContains:
		return fmt.Sprintf("does not contain '%s'", m.Expected)
	case MatchStartsWith:
		return fmt.Sprintf("starts with '%s'", m.Expected)
	case MatchEndsWith:
		return fmt.Sprintf("ends with '%s'", m.Expected)
	case MatchRegex:
		return fmt.Sprintf("matches regex '%s'", m.Expected)
	case MatchLessThan:
		return "< " + m.Expected
	case MatchLessThanOrEqual:
		return "<= " + m.Expected
	case MatchGreaterThan:
		return "> " + m.Expected
	case MatchGreaterThanOrEqual:
		return ">= " + m.Expected
	case MatchIsEmpty:
		return "is empty"
	case MatchIsNotEmpty:
		return "is not empty"
	case MatchHasLength:
		return "has length " + m.Expected
	case MatchIsNull:
		return "is null"
	case MatchIsNotNull:
		return "is not null"
	default:
		return string(m.Kind)
	}
}

// Validate checks the matcher without evaluating it: the kind must be known,
// regex patterns must compile and numeric operands must parse.
func (m Matcher) Validate() error {
	switch m.Kind {
	case MatchRegex:
		_, err := compilePattern(m.Expected)
		return err
	case MatchLessThan, MatchLessThanOrEqual, MatchGreaterThan, MatchGreaterThanOrEqual:
		if _, ok := parseNumber(strings.TrimSpace(m.Expected)); !ok {
			return fmt.Errorf("%w: expected %q is not numeric", ErrTypeCoercion, m.Expected)
		}
	case MatchHasLength:
		if n, err := strconv.Atoi(strings.TrimSpace(m.Expected)); err != nil || n < 0 {
			return fmt.Errorf("%w: length %q is not a non-negative integer", ErrTypeCoercion, m.Expected)
		}
	default:
		for _, k := range MatcherKinds {
			if k == m.Kind {
				return nil
			}
		}
		return fmt.Errorf("%w: %q", ErrUnknownMatcher, m.Kind)
	}
	return nil
}

var patternCache sync.Map // string -> *regexp.Regexp

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	patternCache.Store(pattern, re)
	return re, nil
}
