package portability

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// maxSampleDepth bounds recursion through self-referencing schemas.
const maxSampleDepth = 6

// sampler builds request bodies from schemas. Values the runner can
// generate fresh on every run are emitted as dynamic placeholders
// ({{$uuid}}, {{$faker.email}}); everything else gets a fixed value.
//
// Priority: example, default, enum, composition, then type.
type sampler struct {
	// literal disables placeholders, for values stored as chain variables.
	literal  bool
	visiting map[*openapi3.Schema]bool
}

func newSampler(literal bool) *sampler {
	return &sampler{literal: literal, visiting: make(map[*openapi3.Schema]bool)}
}

func (s *sampler) sample(schema *openapi3.Schema, name string, depth int) any {
	if schema == nil || depth > maxSampleDepth || s.visiting[schema] {
		return nil
	}
	s.visiting[schema] = true
	defer delete(s.visiting, schema)

	if schema.Example != nil {
		return schema.Example
	}
	if schema.Default != nil {
		return schema.Default
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}

	if len(schema.AllOf) > 0 {
		merged := map[string]any{}
		for _, ref := range schema.AllOf {
			if ref == nil {
				continue
			}
			if obj, ok := s.sample(ref.Value, name, depth+1).(map[string]any); ok {
				for k, v := range obj {
					merged[k] = v
				}
			}
		}
		return merged
	}
	if len(schema.OneOf) > 0 && schema.OneOf[0] != nil {
		return s.sample(schema.OneOf[0].Value, name, depth+1)
	}
	if len(schema.AnyOf) > 0 && schema.AnyOf[0] != nil {
		return s.sample(schema.AnyOf[0].Value, name, depth+1)
	}

	switch {
	case schema.Type.Is(openapi3.TypeObject), schema.Type == nil && len(schema.Properties) > 0:
		obj := make(map[string]any, len(schema.Properties))
		for prop, ref := range schema.Properties {
			if ref == nil || ref.Value == nil || ref.Value.ReadOnly {
				continue
			}
			if v := s.sample(ref.Value, prop, depth+1); v != nil {
				obj[prop] = v
			}
		}
		return obj
	case schema.Type.Is(openapi3.TypeArray):
		if schema.Items == nil {
			return []any{}
		}
		item := s.sample(schema.Items.Value, name, depth+1)
		if item == nil {
			return []any{}
		}
		return []any{item}
	case schema.Type.Is(openapi3.TypeString):
		v := sampleString(schema.Format, name)
		if s.literal {
			if fixed, ok := literalSamples[v]; ok {
				return fixed
			}
		}
		return v
	case schema.Type.Is(openapi3.TypeInteger):
		if schema.Min != nil {
			return int64(*schema.Min)
		}
		return 1
	case schema.Type.Is(openapi3.TypeNumber):
		if schema.Min != nil {
			return *schema.Min
		}
		return 1.5
	case schema.Type.Is(openapi3.TypeBoolean):
		return true
	}
	return nil
}

func sampleString(format, name string) string {
	switch format {
	case "uuid":
		return "{{$uuid}}"
	case "email":
		return "{{$faker.email}}"
	case "date-time":
		return "{{$isoTimestamp}}"
	case "date":
		return "2024-01-01"
	case "uri", "url":
		return "{{$faker.url}}"
	case "ipv4":
		return "{{$faker.ipv4}}"
	case "hostname":
		return "{{$faker.domain}}"
	}

	switch strings.ToLower(name) {
	case "email":
		return "{{$faker.email}}"
	case "name", "fullname":
		return "{{$faker.name}}"
	case "firstname":
		return "{{$faker.firstName}}"
	case "lastname":
		return "{{$faker.lastName}}"
	case "username", "login":
		return "{{$faker.username}}"
	case "phone":
		return "{{$faker.phone}}"
	case "company":
		return "{{$faker.company}}"
	case "city":
		return "{{$faker.city}}"
	case "country":
		return "{{$faker.country}}"
	case "id":
		return "{{$uuid}}"
	case "":
		return "string"
	}
	return name
}

var literalSamples = map[string]string{
	"{{$uuid}}":            "00000000-0000-0000-0000-000000000001",
	"{{$faker.email}}":     "user@example.com",
	"{{$isoTimestamp}}":    "2024-01-01T00:00:00Z",
	"{{$faker.url}}":       "https://example.com",
	"{{$faker.ipv4}}":      "192.0.2.1",
	"{{$faker.domain}}":    "example.com",
	"{{$faker.name}}":      "Jane Doe",
	"{{$faker.firstName}}": "Jane",
	"{{$faker.lastName}}":  "Doe",
	"{{$faker.username}}":  "jdoe",
	"{{$faker.phone}}":     "555-0100",
	"{{$faker.company}}":   "Example Inc",
	"{{$faker.city}}":      "Springfield",
	"{{$faker.country}}":   "Nowhere",
}
