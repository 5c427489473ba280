package environment

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/reqchain/pkg/workflow"
)

// OverlayPrefix marks process environment variables that override
// environment values.
const OverlayPrefix = "REQCHAIN_VAR_"

// Mask replaces secret values in display output.
const Mask = "********"

var (
	ErrNotFound    = errors.New("environment not found")
	ErrInvalidFile = errors.New("invalid environment file")
)

// Variable is one environment entry.
type Variable struct {
	Value   any
	Secret  bool
	Enabled *bool
}

// IsEnabled reports whether the variable is exposed to chains.
func (v Variable) IsEnabled() bool {
	return v.Enabled == nil || *v.Enabled
}

type variableDoc struct {
	Value   any   `json:"value" yaml:"value"`
	Secret  bool  `json:"secret,omitempty" yaml:"secret,omitempty"`
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// UnmarshalYAML accepts either a bare value or a {value, secret, enabled}
// mapping. A mapping without a value key is a bare object value.
func (v *Variable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode && hasKey(node, "value") {
		var doc variableDoc
		if err := node.Decode(&doc); err != nil {
			return err
		}
		*v = Variable(doc)
		return nil
	}
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*v = Variable{Value: raw}
	return nil
}

// MarshalYAML writes the short form when no flags are set.
func (v Variable) MarshalYAML() (any, error) {
	if !v.Secret && v.Enabled == nil {
		return v.Value, nil
	}
	return variableDoc(v), nil
}

// UnmarshalJSON mirrors UnmarshalYAML.
func (v *Variable) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil {
		if _, ok := probe["value"]; ok {
			var doc variableDoc
			if err := json.Unmarshal(data, &doc); err != nil {
				return err
			}
			*v = Variable(doc)
			return nil
		}
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = Variable{Value: raw}
	return nil
}

// MarshalJSON mirrors MarshalYAML.
func (v Variable) MarshalJSON() ([]byte, error) {
	if !v.Secret && v.Enabled == nil {
		return json.Marshal(v.Value)
	}
	return json.Marshal(variableDoc(v))
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// Environment is a named set of variables.
type Environment struct {
	Name        string              `json:"name" yaml:"name"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Variables   map[string]Variable `json:"variables" yaml:"variables"`

	// Path is the file the environment was loaded from, if any.
	Path string `json:"-" yaml:"-"`
}

// Values converts the enabled variables into workflow values.
func (e *Environment) Values() (map[string]workflow.Value, error) {
	out := make(map[string]workflow.Value, len(e.Variables))
	for name, v := range e.Variables {
		if !v.IsEnabled() {
			continue
		}
		val, err := workflow.FromAny(v.Value)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		out[name] = val
	}
	return out, nil
}

// Masked renders enabled variables for display with secrets hidden.
func (e *Environment) Masked() map[string]string {
	out := make(map[string]string, len(e.Variables))
	for name, v := range e.Variables {
		if !v.IsEnabled() {
			continue
		}
		if v.Secret {
			out[name] = Mask
			continue
		}
		val, err := workflow.FromAny(v.Value)
		if err != nil {
			out[name] = fmt.Sprint(v.Value)
			continue
		}
		out[name] = val.String()
	}
	return out
}

// SecretNames lists secret variables in sorted order.
func (e *Environment) SecretNames() []string {
	var names []string
	for name, v := range e.Variables {
		if v.Secret {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Parse decodes an environment document. JSON documents go through the
// YAML decoder, which accepts them unchanged.
func Parse(data []byte) (*Environment, error) {
	var env Environment
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if env.Variables == nil {
		env.Variables = map[string]Variable{}
	}
	return &env, nil
}

// LoadFile reads one environment file. A missing name defaults to the file
// name without its extension.
func LoadFile(path string) (*Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	env, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if env.Name == "" {
		base := filepath.Base(path)
		env.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	env.Path = path
	return env, nil
}

// Overlay returns values with every REQCHAIN_VAR_<NAME> entry of environ
// applied on top. environ has the os.Environ form.
func Overlay(values map[string]workflow.Value, environ []string) map[string]workflow.Value {
	out := make(map[string]workflow.Value, len(values))
	for k, v := range values {
		out[k] = v
	}
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, OverlayPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, OverlayPrefix)
		if name == "" {
			continue
		}
		out[name] = workflow.String(val)
	}
	return out
}
