package portability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/reqchain/pkg/auth"
	"github.com/getmockd/reqchain/pkg/config"
)

// OpenAPIImporter imports OpenAPI 3.x and Swagger 2.0 documents. Each
// operation becomes one step; steps are ordered by path, then by method in
// GET, POST, PUT, PATCH, DELETE order.
//
// Path parameters turn into chain variables seeded with an example value.
// Security schemes become the chain credential, with secrets left as
// placeholders ({{token}}, {{password}}, ...) to be supplied by an
// environment.
type OpenAPIImporter struct{}

// Format returns FormatOpenAPI.
func (i *OpenAPIImporter) Format() Format {
	return FormatOpenAPI
}

// Import parses and validates an OpenAPI document.
func (i *OpenAPIImporter) Import(data []byte, opts *Options) (*config.Document, error) {
	spec, err := loadOpenAPI(data)
	if err != nil {
		return nil, err
	}
	if spec.Paths == nil || spec.Paths.Len() == 0 {
		return nil, &ImportError{Format: FormatOpenAPI, Message: "document has no paths"}
	}

	doc := &config.Document{
		Variables: map[string]any{BaseURLVar: serverURL(spec.Servers)},
	}
	if spec.Info != nil {
		doc.Name = spec.Info.Title
		doc.Description = strings.TrimSpace(spec.Info.Description)
	}

	var security openapi3.SecurityRequirements
	if len(spec.Security) > 0 {
		security = spec.Security
	}

	names := stepNamer{}
	for _, path := range sortedPaths(spec.Paths) {
		item := spec.Paths.Value(path)
		ops := item.Operations()
		for _, method := range sortedMethods(ops) {
			op := ops[method]
			if security == nil && op.Security != nil && len(*op.Security) > 0 {
				security = *op.Security
			}
			params := append(openapi3.Parameters{}, item.Parameters...)
			params = append(params, op.Parameters...)
			doc.Steps = append(doc.Steps, operationToStep(names, path, method, op, params, doc.Variables))
		}
	}

	if opts != nil {
		doc.Contract = opts.Contract
	}
	if len(security) > 0 && spec.Components != nil {
		doc.Auth = credentialFor(security[0], spec.Components.SecuritySchemes)
	}
	return doc, nil
}

func loadOpenAPI(data []byte) (*openapi3.T, error) {
	raw, err := decodeAny(data)
	if err != nil {
		return nil, &ImportError{Format: FormatOpenAPI, Message: "failed to parse document", Cause: err}
	}
	root, _ := raw.(map[string]any)

	if _, ok := root["swagger"]; ok {
		js, err := json.Marshal(raw)
		if err != nil {
			return nil, &ImportError{Format: FormatOpenAPI, Message: "failed to parse document", Cause: err}
		}
		var v2 openapi2.T
		if err := json.Unmarshal(js, &v2); err != nil {
			return nil, &ImportError{Format: FormatOpenAPI, Message: "failed to parse Swagger 2.0 document", Cause: err}
		}
		spec, err := openapi2conv.ToV3(&v2)
		if err != nil {
			return nil, &ImportError{Format: FormatOpenAPI, Message: "failed to convert Swagger 2.0 document", Cause: err}
		}
		return spec, nil
	}

	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(data)
	if err != nil {
		return nil, &ImportError{Format: FormatOpenAPI, Message: "failed to parse OpenAPI document", Cause: err}
	}
	if err := spec.Validate(context.Background()); err != nil {
		return nil, &ImportError{Format: FormatOpenAPI, Message: "invalid OpenAPI document", Cause: err}
	}
	return spec, nil
}

// decodeAny decodes JSON or YAML into plain values with string map keys.
func decodeAny(data []byte) (any, error) {
	var raw any
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		err := json.Unmarshal(trimmed, &raw)
		return raw, err
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return stringKeys(raw), nil
}

func stringKeys(x any) any {
	switch v := x.(type) {
	case map[string]any:
		for k, val := range v {
			v[k] = stringKeys(val)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case []any:
		for i, val := range v {
			v[i] = stringKeys(val)
		}
		return v
	default:
		return v
	}
}

func serverURL(servers openapi3.Servers) string {
	if len(servers) == 0 || servers[0] == nil {
		return "http://localhost"
	}
	s := servers[0]
	u := s.URL
	for name, v := range s.Variables {
		if v != nil {
			u = strings.ReplaceAll(u, "{"+name+"}", v.Default)
		}
	}
	if strings.HasPrefix(u, "/") {
		u = "http://localhost" + u
	}
	return strings.TrimRight(u, "/")
}

func sortedPaths(paths *openapi3.Paths) []string {
	if paths == nil {
		return nil
	}
	keys := make([]string, 0, paths.Len())
	for k := range paths.Map() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var methodOrder = map[string]int{"GET": 0, "POST": 1, "PUT": 2, "PATCH": 3, "DELETE": 4}

func sortedMethods(ops map[string]*openapi3.Operation) []string {
	methods := make([]string, 0, len(ops))
	for m := range ops {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool {
		oi, iok := methodOrder[methods[i]]
		oj, jok := methodOrder[methods[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return methods[i] < methods[j]
		}
	})
	return methods
}

func operationToStep(names stepNamer, path, method string, op *openapi3.Operation, params openapi3.Parameters, vars map[string]any) config.StepDoc {
	name := op.OperationID
	if name == "" {
		name = method + " " + path
	}
	step := config.StepDoc{
		Name:        names.next(name),
		Description: strings.TrimSpace(op.Summary),
		Request: config.RequestDoc{
			Method: method,
			URL:    "{{" + BaseURLVar + "}}" + templatePath(path),
		},
	}

	for _, ref := range params {
		if ref == nil || ref.Value == nil {
			continue
		}
		p := ref.Value
		switch p.In {
		case openapi3.ParameterInPath:
			if _, ok := vars[p.Name]; !ok {
				vars[p.Name] = parameterSample(p)
			}
		case openapi3.ParameterInQuery:
			if p.Required {
				if step.Request.Query == nil {
					step.Request.Query = make(map[string]string)
				}
				step.Request.Query[p.Name] = fmt.Sprint(parameterSample(p))
			}
		case openapi3.ParameterInHeader:
			if p.Required {
				if step.Request.Headers == nil {
					step.Request.Headers = make(map[string]string)
				}
				step.Request.Headers[p.Name] = fmt.Sprint(parameterSample(p))
			}
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		if body, contentType, ok := requestBodySample(op.RequestBody.Value); ok {
			step.Request.Body = body
			if contentType != "application/json" {
				if step.Request.Headers == nil {
					step.Request.Headers = make(map[string]string)
				}
				step.Request.Headers["Content-Type"] = contentType
			}
		}
	}

	if code := bestStatus(op.Responses); code > 0 {
		step.Assertions = append(step.Assertions, statusAssertion(code))
	}
	return step
}

// templatePath rewrites /users/{id} to /users/{{id}}.
func templatePath(path string) string {
	var b strings.Builder
	for {
		open := strings.IndexByte(path, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(path[open:], '}')
		if end < 0 {
			break
		}
		b.WriteString(path[:open])
		b.WriteString("{{" + path[open+1:open+end] + "}}")
		path = path[open+end+1:]
	}
	b.WriteString(path)
	return b.String()
}

func parameterSample(p *openapi3.Parameter) any {
	if p.Example != nil {
		return p.Example
	}
	for _, name := range sortedKeys(p.Examples) {
		if ex := p.Examples[name]; ex != nil && ex.Value != nil && ex.Value.Value != nil {
			return ex.Value.Value
		}
	}
	if p.Schema != nil && p.Schema.Value != nil {
		if v := newSampler(p.In == openapi3.ParameterInPath).sample(p.Schema.Value, p.Name, 0); v != nil {
			return v
		}
	}
	return p.Name
}

func requestBodySample(body *openapi3.RequestBody) (any, string, bool) {
	contentType := "application/json"
	media := body.Content.Get(contentType)
	if media == nil {
		for _, ct := range sortedKeys(body.Content) {
			contentType, media = ct, body.Content[ct]
			break
		}
	}
	if media == nil {
		return nil, "", false
	}
	if media.Example != nil {
		return media.Example, contentType, true
	}
	for _, name := range sortedKeys(media.Examples) {
		if ex := media.Examples[name]; ex != nil && ex.Value != nil && ex.Value.Value != nil {
			return ex.Value.Value, contentType, true
		}
	}
	if media.Schema != nil && media.Schema.Value != nil {
		if v := newSampler(false).sample(media.Schema.Value, "", 0); v != nil {
			return v, contentType, true
		}
	}
	return nil, "", false
}

// bestStatus picks the status a step should assert: a common success code
// first, then the lowest documented 2xx, then the lowest documented code.
func bestStatus(responses *openapi3.Responses) int {
	if responses == nil {
		return 0
	}
	var codes []int
	for key := range responses.Map() {
		if code, err := strconv.Atoi(key); err == nil {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return 0
	}
	sort.Ints(codes)
	for _, preferred := range []int{200, 201, 202, 204} {
		for _, c := range codes {
			if c == preferred {
				return c
			}
		}
	}
	for _, c := range codes {
		if c >= 200 && c < 300 {
			return c
		}
	}
	return codes[0]
}

func credentialFor(req openapi3.SecurityRequirement, schemes openapi3.SecuritySchemes) *auth.Credential {
	for _, name := range sortedKeys(req) {
		ref := schemes[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		s := ref.Value
		switch strings.ToLower(s.Type) {
		case "http":
			switch strings.ToLower(s.Scheme) {
			case "bearer":
				return &auth.Credential{Kind: auth.KindBearer, Bearer: &auth.Bearer{Token: "{{token}}"}}
			case "basic":
				return &auth.Credential{Kind: auth.KindBasic, Basic: &auth.Basic{Username: "{{username}}", Password: "{{password}}"}}
			}
		case "apikey":
			if s.In == "header" || s.In == "query" {
				return &auth.Credential{Kind: auth.KindAPIKey, APIKey: &auth.APIKey{Name: s.Name, Value: "{{apiKey}}", In: s.In}}
			}
		case "oauth2":
			if s.Flows == nil {
				continue
			}
			scopes := req[name]
			if f := s.Flows.ClientCredentials; f != nil {
				return &auth.Credential{Kind: auth.KindOAuth2, OAuth2: &auth.OAuth2{
					Grant:        auth.GrantClientCredentials,
					TokenURL:     f.TokenURL,
					ClientID:     "{{clientId}}",
					ClientSecret: "{{clientSecret}}",
					Scopes:       scopes,
				}}
			}
			if f := s.Flows.Password; f != nil {
				return &auth.Credential{Kind: auth.KindOAuth2, OAuth2: &auth.OAuth2{
					Grant:    auth.GrantPassword,
					TokenURL: f.TokenURL,
					ClientID: "{{clientId}}",
					Username: "{{username}}",
					Password: "{{password}}",
					Scopes:   scopes,
				}}
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	RegisterImporter(&OpenAPIImporter{})
}
