package portability

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/getmockd/reqchain/pkg/auth"
	"github.com/getmockd/reqchain/pkg/config"
)

// Postman Collection v2.x types

// PostmanCollection represents a Postman Collection v2.x.
type PostmanCollection struct {
	Info     PostmanInfo       `json:"info"`
	Item     []PostmanItem     `json:"item"`
	Variable []PostmanVariable `json:"variable,omitempty"`
	Auth     *PostmanAuth      `json:"auth,omitempty"`
}

// PostmanInfo contains collection metadata.
type PostmanInfo struct {
	Name        string      `json:"name"`
	Description PostmanText `json:"description,omitempty"`
	Schema      string      `json:"schema"`
}

// PostmanText is a description, given either as a string or as an object
// with a content field.
type PostmanText string

// UnmarshalJSON implements json.Unmarshaler.
func (t *PostmanText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = PostmanText(s)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*t = PostmanText(obj.Content)
	return nil
}

// PostmanItem represents an item in the collection (request or folder).
type PostmanItem struct {
	Name        string            `json:"name"`
	Description PostmanText       `json:"description,omitempty"`
	Request     *PostmanRequest   `json:"request,omitempty"`
	Response    []PostmanResponse `json:"response,omitempty"`
	Event       []PostmanEvent    `json:"event,omitempty"`
	Item        []PostmanItem     `json:"item,omitempty"`
}

// PostmanRequest represents a Postman request.
type PostmanRequest struct {
	Method string          `json:"method"`
	URL    PostmanURL      `json:"url"`
	Header []PostmanHeader `json:"header,omitempty"`
	Body   *PostmanBody    `json:"body,omitempty"`
	Auth   *PostmanAuth    `json:"auth,omitempty"`
}

// PostmanURL represents a URL in Postman format. It may be given as a plain
// string.
type PostmanURL struct {
	Raw      string         `json:"raw,omitempty"`
	Protocol string         `json:"protocol,omitempty"`
	Host     []string       `json:"host,omitempty"`
	Path     []string       `json:"path,omitempty"`
	Query    []PostmanQuery `json:"query,omitempty"`
	Variable []PostmanQuery `json:"variable,omitempty"`
}

type postmanURLFields PostmanURL

// UnmarshalJSON implements json.Unmarshaler.
func (u *PostmanURL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*u = PostmanURL{Raw: s}
		return nil
	}
	var f postmanURLFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*u = PostmanURL(f)
	return nil
}

// PostmanQuery represents a query parameter or path variable.
type PostmanQuery struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

// PostmanHeader represents a request header.
type PostmanHeader struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

// PostmanBody represents a request body.
type PostmanBody struct {
	Mode       string         `json:"mode"`
	Raw        string         `json:"raw,omitempty"`
	URLEncoded []PostmanQuery `json:"urlencoded,omitempty"`
	Options    *struct {
		Raw struct {
			Language string `json:"language"`
		} `json:"raw"`
	} `json:"options,omitempty"`
}

// PostmanAuth represents authentication configuration.
type PostmanAuth struct {
	Type   string             `json:"type"`
	Bearer []PostmanAuthParam `json:"bearer,omitempty"`
	Basic  []PostmanAuthParam `json:"basic,omitempty"`
	APIKey []PostmanAuthParam `json:"apikey,omitempty"`
}

// PostmanAuthParam is one key of an auth block.
type PostmanAuthParam struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func authParam(params []PostmanAuthParam, key string) string {
	for _, p := range params {
		if p.Key == key && p.Value != nil {
			return fmt.Sprint(p.Value)
		}
	}
	return ""
}

// PostmanResponse represents a saved response.
type PostmanResponse struct {
	Name string `json:"name"`
	Code int    `json:"code,omitempty"`
}

// PostmanEvent is a pre-request or test script.
type PostmanEvent struct {
	Listen string `json:"listen"`
	Script struct {
		Exec PostmanLines `json:"exec"`
	} `json:"script"`
}

// PostmanLines is script source, given as a list of lines or one string.
type PostmanLines []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *PostmanLines) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = PostmanLines{s}
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	*l = lines
	return nil
}

// PostmanVariable represents a collection variable.
type PostmanVariable struct {
	Key      string `json:"key"`
	Value    any    `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

// PostmanImporter imports Postman Collection v2.x format. Postman's
// {{variable}} syntax is kept as is. Folders are flattened into step names
// ("Folder / Request").
//
// Test scripts are not run, but two common idioms are translated: status
// checks (pm.response.to.have.status(201)) become assertions and
// pm.*.set("name", pm.response.json().path) becomes an extraction.
type PostmanImporter struct{}

// Format returns FormatPostman.
func (i *PostmanImporter) Format() Format {
	return FormatPostman
}

// Import parses a Postman collection.
func (i *PostmanImporter) Import(data []byte, _ *Options) (*config.Document, error) {
	var collection PostmanCollection
	if err := json.Unmarshal(data, &collection); err != nil {
		return nil, &ImportError{Format: FormatPostman, Message: "failed to parse Postman collection", Cause: err}
	}
	if collection.Info.Name == "" && len(collection.Item) == 0 {
		return nil, &ImportError{Format: FormatPostman, Message: "not a valid Postman collection (missing info and item)"}
	}

	doc := &config.Document{
		Name:        collection.Info.Name,
		Description: strings.TrimSpace(string(collection.Info.Description)),
		Auth:        postmanCredential(collection.Auth),
	}
	for _, v := range collection.Variable {
		if v.Disabled || v.Key == "" {
			continue
		}
		if doc.Variables == nil {
			doc.Variables = make(map[string]any)
		}
		doc.Variables[v.Key] = v.Value
	}

	imp := &postmanImport{doc: doc, names: stepNamer{}, inherited: collection.Auth}
	imp.items(collection.Item, "")
	return doc, nil
}

type postmanImport struct {
	doc       *config.Document
	names     stepNamer
	inherited *PostmanAuth
}

func (p *postmanImport) items(items []PostmanItem, prefix string) {
	for _, item := range items {
		name := item.Name
		if prefix != "" {
			name = prefix + " / " + name
		}
		if len(item.Item) > 0 {
			p.items(item.Item, name)
			continue
		}
		if item.Request != nil {
			p.doc.Steps = append(p.doc.Steps, p.step(item, name))
		}
	}
}

func (p *postmanImport) step(item PostmanItem, name string) config.StepDoc {
	req := item.Request
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "GET"
	}

	target, query := p.url(req.URL)
	step := config.StepDoc{
		Name:        p.names.next(name),
		Description: strings.TrimSpace(string(item.Description)),
		Request: config.RequestDoc{
			Method: method,
			URL:    target,
			Query:  query,
		},
	}

	for _, h := range req.Header {
		if h.Disabled || h.Key == "" {
			continue
		}
		if step.Request.Headers == nil {
			step.Request.Headers = make(map[string]string)
		}
		step.Request.Headers[h.Key] = h.Value
	}
	if req.Auth != nil && req.Auth.Type != "inherit" {
		p.requestAuth(req.Auth, &step)
	}
	if req.Body != nil {
		p.body(req.Body, &step)
	}

	script := testScript(item.Event)
	for _, code := range scriptStatuses(script) {
		step.Assertions = append(step.Assertions, statusAssertion(code))
	}
	if len(step.Assertions) == 0 {
		if len(item.Response) > 0 && item.Response[0].Code > 0 {
			step.Assertions = append(step.Assertions, statusAssertion(item.Response[0].Code))
		} else {
			step.Assertions = append(step.Assertions, config.AssertionDoc{Shorthand: "status < 400"})
		}
	}
	step.Extract = scriptExtractions(script)
	return step
}

// url returns the request URL with path variables templated and the query
// moved into a map.
func (p *postmanImport) url(u PostmanURL) (string, map[string]string) {
	raw := u.Raw
	if raw == "" {
		raw = strings.Join(u.Host, ".")
		if u.Protocol != "" {
			raw = u.Protocol + "://" + raw
		}
		if len(u.Path) > 0 {
			raw += "/" + strings.Join(u.Path, "/")
		}
	}

	var query map[string]string
	if base, rawQuery, ok := strings.Cut(raw, "?"); ok {
		raw = base
		if len(u.Query) == 0 {
			for _, pair := range strings.Split(rawQuery, "&") {
				k, v, _ := strings.Cut(pair, "=")
				u.Query = append(u.Query, PostmanQuery{Key: k, Value: v})
			}
		}
	}
	for _, q := range u.Query {
		if q.Disabled || q.Key == "" {
			continue
		}
		if query == nil {
			query = make(map[string]string)
		}
		query[q.Key] = q.Value
	}

	for _, v := range u.Variable {
		if v.Key == "" {
			continue
		}
		raw = replaceSegment(raw, ":"+v.Key, "{{"+v.Key+"}}")
		if _, ok := p.doc.Variables[v.Key]; !ok {
			if p.doc.Variables == nil {
				p.doc.Variables = make(map[string]any)
			}
			p.doc.Variables[v.Key] = v.Value
		}
	}
	return raw, query
}

// replaceSegment replaces a whole path segment.
func replaceSegment(raw, old, repl string) string {
	parts := strings.Split(raw, "/")
	for i, part := range parts {
		if part == old {
			parts[i] = repl
		}
	}
	return strings.Join(parts, "/")
}

func (p *postmanImport) body(b *PostmanBody, step *config.StepDoc) {
	switch b.Mode {
	case "raw":
		if b.Raw == "" {
			return
		}
		ct := headerValue(step.Request.Headers, "Content-Type")
		if ct == "" && b.Options != nil && b.Options.Raw.Language == "json" {
			ct = "application/json"
			if step.Request.Headers == nil {
				step.Request.Headers = make(map[string]string)
			}
			step.Request.Headers["Content-Type"] = ct
		}
		step.Request.Body = structuredBody(b.Raw, ct)
	case "urlencoded":
		values := url.Values{}
		for _, q := range b.URLEncoded {
			if !q.Disabled {
				values.Add(q.Key, q.Value)
			}
		}
		if len(values) == 0 {
			return
		}
		if step.Request.Headers == nil {
			step.Request.Headers = make(map[string]string)
		}
		if headerValue(step.Request.Headers, "Content-Type") == "" {
			step.Request.Headers["Content-Type"] = "application/x-www-form-urlencoded"
		}
		step.Request.Body = values.Encode()
	}
}

// requestAuth applies an auth block that overrides the collection's.
func (p *postmanImport) requestAuth(a *PostmanAuth, step *config.StepDoc) {
	if p.inherited != nil && a.Type == p.inherited.Type {
		return
	}
	set := func(name, value string) {
		if step.Request.Headers == nil {
			step.Request.Headers = make(map[string]string)
		}
		step.Request.Headers[name] = value
	}
	switch a.Type {
	case "bearer":
		set("Authorization", "Bearer "+authParam(a.Bearer, "token"))
	case "basic":
		user, pass := authParam(a.Basic, "username"), authParam(a.Basic, "password")
		if !strings.Contains(user+pass, "{{") {
			set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+pass)))
		}
	case "apikey":
		if authParam(a.APIKey, "in") != "query" {
			set(authParam(a.APIKey, "key"), authParam(a.APIKey, "value"))
		}
	}
}

func postmanCredential(a *PostmanAuth) *auth.Credential {
	if a == nil {
		return nil
	}
	switch a.Type {
	case "bearer":
		return &auth.Credential{Kind: auth.KindBearer, Bearer: &auth.Bearer{Token: authParam(a.Bearer, "token")}}
	case "basic":
		return &auth.Credential{Kind: auth.KindBasic, Basic: &auth.Basic{
			Username: authParam(a.Basic, "username"),
			Password: authParam(a.Basic, "password"),
		}}
	case "apikey":
		in := authParam(a.APIKey, "in")
		if in == "" {
			in = "header"
		}
		return &auth.Credential{Kind: auth.KindAPIKey, APIKey: &auth.APIKey{
			Name:  authParam(a.APIKey, "key"),
			Value: authParam(a.APIKey, "value"),
			In:    in,
		}}
	}
	return nil
}

func testScript(events []PostmanEvent) string {
	var b strings.Builder
	for _, e := range events {
		if e.Listen == "test" {
			b.WriteString(strings.Join(e.Script.Exec, "\n"))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

var (
	statusCheckRe = regexp.MustCompile(`pm\.response\.to\.have\.status\(\s*(\d{3})\s*\)|pm\.expect\(\s*pm\.response\.code\s*\)\.to\.(?:eql|equal)\(\s*(\d{3})\s*\)`)
	setFromJSONRe = regexp.MustCompile(`pm\.(?:environment|collectionVariables|globals|variables)\.set\(\s*["']([\w.-]+)["']\s*,\s*pm\.response\.json\(\)((?:\.\w+|\[\d+\])*)\s*\)`)
)

func scriptStatuses(script string) []int {
	var codes []int
	seen := map[int]bool{}
	for _, m := range statusCheckRe.FindAllStringSubmatch(script, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		code, _ := strconv.Atoi(raw)
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}

func scriptExtractions(script string) config.ExtractList {
	var out config.ExtractList
	for _, m := range setFromJSONRe.FindAllStringSubmatch(script, -1) {
		out = append(out, config.ExtractDoc{Name: m[1], Path: "$" + m[2]})
	}
	return out
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func init() {
	RegisterImporter(&PostmanImporter{})
}
