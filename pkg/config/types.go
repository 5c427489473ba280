package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/reqchain/pkg/auth"
)

// Document is the on-disk form of a chain.
type Document struct {
	Name        string           `json:"name,omitempty" yaml:"name,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Variables   map[string]any   `json:"variables,omitempty" yaml:"variables,omitempty"`
	Auth        *auth.Credential `json:"auth,omitempty" yaml:"auth,omitempty"`

	// Contract is an OpenAPI document path, relative to the chain file.
	Contract string `json:"contract,omitempty" yaml:"contract,omitempty"`

	Config ChainConfig `json:"config,omitzero" yaml:"config,omitempty"`
	Steps  []StepDoc   `json:"steps" yaml:"steps"`
}

// ChainConfig is the config block of a chain document.
type ChainConfig struct {
	Delay         Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
	MaxDuration   Duration `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`
	Iterations    int      `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	StopOnFailure *bool    `json:"stopOnFailure,omitempty" yaml:"stopOnFailure,omitempty"`
}

// StepDoc is one step of a chain document.
type StepDoc struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Request     RequestDoc     `json:"request" yaml:"request"`
	Extract     ExtractList    `json:"extract,omitempty" yaml:"extract,omitempty"`
	Assertions  []AssertionDoc `json:"assertions,omitempty" yaml:"assertions,omitempty"`
	Scripts     *ScriptsDoc    `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	OnFailure   string         `json:"onFailure,omitempty" yaml:"onFailure,omitempty"`
	Timeout     Duration       `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Enabled     *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// RequestDoc is a request template. Body may be a string or any JSON value;
// structured bodies are sent as JSON.
type RequestDoc struct {
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
	Body    any               `json:"body,omitempty" yaml:"body,omitempty"`
}

// ScriptsDoc holds the pre and post scripts of a step.
type ScriptsDoc struct {
	Pre  string `json:"pre,omitempty" yaml:"pre,omitempty"`
	Post string `json:"post,omitempty" yaml:"post,omitempty"`
}

// ExtractDoc is one extraction rule.
type ExtractDoc struct {
	Name     string `json:"name" yaml:"name"`
	Path     string `json:"path" yaml:"path"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// ExtractList accepts either a list of rules or a name-to-path mapping.
// The mapping form keeps document order.
type ExtractList []ExtractDoc

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *ExtractList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		out := make(ExtractList, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: extract %q must map to a path", val.Line, key.Value)
			}
			out = append(out, ExtractDoc{Name: key.Value, Path: val.Value})
		}
		*l = out
		return nil
	}
	var rules []ExtractDoc
	if err := node.Decode(&rules); err != nil {
		return err
	}
	*l = rules
	return nil
}

// AssertionDoc is an assertion in long form, or the shorthand string
// "<path> <matcher> [expected]" kept in Shorthand.
type AssertionDoc struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Matcher     string `json:"matcher,omitempty" yaml:"matcher,omitempty"`
	Expected    string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	Shorthand string `json:"-" yaml:"-"`
}

type assertionFields AssertionDoc

// UnmarshalYAML implements yaml.Unmarshaler. "operator" is accepted as an
// alias of "matcher".
func (a *AssertionDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*a = AssertionDoc{Shorthand: node.Value}
		return nil
	}
	var f struct {
		assertionFields `yaml:",inline"`
		Operator        string `yaml:"operator"`
	}
	if err := node.Decode(&f); err != nil {
		return err
	}
	*a = AssertionDoc(f.assertionFields)
	if a.Matcher == "" {
		a.Matcher = f.Operator
	}
	return nil
}

// MarshalYAML writes shorthand assertions back as strings.
func (a AssertionDoc) MarshalYAML() (any, error) {
	if a.Shorthand != "" {
		return a.Shorthand, nil
	}
	return assertionFields(a), nil
}

// MarshalJSON writes shorthand assertions back as strings.
func (a AssertionDoc) MarshalJSON() ([]byte, error) {
	if a.Shorthand != "" {
		return json.Marshal(a.Shorthand)
	}
	return json.Marshal(assertionFields(a))
}

// Duration accepts Go duration strings ("1.5s") or integer milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string or milliseconds", node.Line)
	}
	parsed, err := ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// ParseDuration parses a duration string or a bare millisecond count.
func ParseDuration(s string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
