package workflow

import (
	"regexp"
	"sort"
	"strings"
)

// placeholderPattern matches {{name}} with optional inner whitespace. Names
// starting with $ are dynamic and resolve through a DynamicResolver.
var placeholderPattern = regexp.MustCompile(`\{\{\s*(\$?[A-Za-z_][A-Za-z0-9_.\-]*)\s*\}\}`)

// DynamicResolver produces values for $-prefixed placeholder names.
type DynamicResolver interface {
	Resolve(name string) (Value, bool)
}

// Substitutor resolves placeholders against a Store.
//
// Resolution is a single left-to-right pass: inserted values are never
// rescanned, so a value containing "{{x}}" is emitted literally. Lookups
// read the store at call time.
type Substitutor struct {
	store   *Store
	dynamic DynamicResolver
}

// NewSubstitutor creates a substitutor. dynamic may be nil, in which case
// $-prefixed names are unresolved.
func NewSubstitutor(store *Store, dynamic DynamicResolver) *Substitutor {
	return &Substitutor{store: store, dynamic: dynamic}
}

// Substitute replaces every placeholder in template. The first unresolved
// name fails the whole call with a *TemplateError.
func (s *Substitutor) Substitute(template string) (string, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(template, -1)
	if len(matches) == 0 {
		return template, nil
	}

	var b strings.Builder
	b.Grow(len(template))
	last := 0
	for _, m := range matches {
		name := template[m[2]:m[3]]
		v, ok := s.resolve(name)
		if !ok {
			return "", &TemplateError{Name: name}
		}
		b.WriteString(template[last:m[0]])
		b.WriteString(v.String())
		last = m[1]
	}
	b.WriteString(template[last:])
	return b.String(), nil
}

// SubstituteField is Substitute with the field name recorded on failure.
func (s *Substitutor) SubstituteField(field, template string) (string, error) {
	out, err := s.Substitute(template)
	if err != nil {
		if te, ok := err.(*TemplateError); ok {
			te.Field = field
		}
		return "", err
	}
	return out, nil
}

// SubstituteMap resolves every value of m. Keys are processed in sorted order
// so the reported failure does not depend on map iteration.
func (s *Substitutor) SubstituteMap(field string, m map[string]string) (map[string]string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(m))
	for _, k := range keys {
		v, err := s.SubstituteField(field+"."+k, m[k])
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// Missing lists the distinct unresolved names in template, in order of
// first appearance.
func (s *Substitutor) Missing(template string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, name := range Placeholders(template) {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := s.resolve(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func (s *Substitutor) resolve(name string) (Value, bool) {
	if strings.HasPrefix(name, "$") {
		if s.dynamic == nil {
			return Value{}, false
		}
		return s.dynamic.Resolve(name)
	}
	if s.store == nil {
		return Value{}, false
	}
	return s.store.Get(name)
}

// Placeholders returns the placeholder names in template, in order, with
// duplicates preserved.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// HasPlaceholders reports whether template contains any placeholder.
func HasPlaceholders(template string) bool {
	return placeholderPattern.MatchString(template)
}
