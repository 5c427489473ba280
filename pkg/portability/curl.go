package portability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/getmockd/reqchain/pkg/auth"
	"github.com/getmockd/reqchain/pkg/config"
)

// CURLImporter imports one or more cURL commands, one step per command.
// Commands are separated by newlines; a trailing backslash continues a
// command on the next line and lines starting with # are ignored.
//
// The origin of the first URL becomes the baseUrl variable. Steps assert a
// status below 400 since a command carries no expected response.
type CURLImporter struct{}

// Format returns FormatCURL.
func (i *CURLImporter) Format() Format {
	return FormatCURL
}

// Import parses the commands in data.
func (i *CURLImporter) Import(data []byte, _ *Options) (*config.Document, error) {
	commands := splitCommands(string(data))
	if len(commands) == 0 {
		return nil, &ImportError{Format: FormatCURL, Message: "not a valid cURL command"}
	}

	doc := &config.Document{Name: "Imported from cURL"}
	names := stepNamer{}
	var base string

	for n, cmd := range commands {
		parsed, err := parseCURL(cmd.text)
		if err != nil {
			return nil, &ImportError{Format: FormatCURL, Line: cmd.line, Message: "failed to parse cURL command", Cause: err}
		}

		origin, rest := originOf(parsed.url)
		if n == 0 && origin != "" {
			base = origin
			doc.Variables = map[string]any{BaseURLVar: base}
		}
		target := parsed.url
		if origin != "" && origin == base {
			target = "{{" + BaseURLVar + "}}" + rest
		}

		if parsed.user != "" {
			user, pass, _ := strings.Cut(parsed.user, ":")
			if doc.Auth == nil {
				doc.Auth = &auth.Credential{Kind: auth.KindBasic, Basic: &auth.Basic{Username: user, Password: pass}}
			} else if doc.Auth.Basic == nil || doc.Auth.Basic.Username != user || doc.Auth.Basic.Password != pass {
				return nil, &ImportError{Format: FormatCURL, Line: cmd.line, Message: "commands use different credentials; split them into separate imports"}
			}
		}

		step := config.StepDoc{
			Name: names.next(parsed.method + " " + pathOf(rest)),
			Request: config.RequestDoc{
				Method:  parsed.method,
				URL:     target,
				Headers: parsed.headers,
				Query:   parsed.query,
			},
			Assertions: []config.AssertionDoc{{Shorthand: "status < 400"}},
		}
		if parsed.body != "" {
			ct := parsed.contentType()
			if ct == "" {
				ct = "application/x-www-form-urlencoded"
				if step.Request.Headers == nil {
					step.Request.Headers = make(map[string]string)
				}
				step.Request.Headers["Content-Type"] = ct
			}
			step.Request.Body = structuredBody(parsed.body, ct)
		}
		doc.Steps = append(doc.Steps, step)
	}
	return doc, nil
}

type curlCommand struct {
	line int
	text string
}

// splitCommands joins continuation lines and returns one entry per command.
func splitCommands(src string) []curlCommand {
	var out []curlCommand
	var cur strings.Builder
	start := 0
	for n, line := range strings.Split(src, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if cur.Len() == 0 {
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			start = n + 1
		}
		if cont, ok := strings.CutSuffix(trimmed, "\\"); ok {
			cur.WriteString(cont)
			cur.WriteByte(' ')
			continue
		}
		cur.WriteString(trimmed)
		out = append(out, curlCommand{line: start, text: cur.String()})
		cur.Reset()
	}
	if cur.Len() > 0 {
		out = append(out, curlCommand{line: start, text: cur.String()})
	}
	return out
}

type curlParsed struct {
	method    string
	url       string
	headers   map[string]string
	query     map[string]string
	body      string
	user      string
	getData   bool
	jsonInput bool
}

func (p *curlParsed) contentType() string {
	for k, v := range p.headers {
		if strings.EqualFold(k, "Content-Type") {
			return v
		}
	}
	if p.jsonInput {
		return "application/json"
	}
	return ""
}

// curlFlagsWithArgs are skipped together with their argument.
var curlFlagsWithArgs = []string{
	"-o", "--output", "-A", "--user-agent", "-e", "--referer",
	"-b", "--cookie", "-c", "--cookie-jar", "-T", "--upload-file",
	"-m", "--max-time", "--connect-timeout", "-x", "--proxy", "--retry",
}

func parseCURL(cmd string) (*curlParsed, error) {
	tokens := tokenizeCURL(cmd)
	if len(tokens) == 0 || tokens[0] != "curl" {
		return nil, fmt.Errorf("command does not start with curl")
	}
	tokens = tokens[1:]

	p := &curlParsed{}
	explicitMethod := ""
	for idx := 0; idx < len(tokens); idx++ {
		token := tokens[idx]
		arg := func() string {
			if idx+1 < len(tokens) {
				idx++
				return tokens[idx]
			}
			return ""
		}

		switch {
		case token == "-X" || token == "--request":
			explicitMethod = strings.ToUpper(arg())
		case token == "-H" || token == "--header":
			name, value, ok := strings.Cut(arg(), ":")
			if ok {
				if p.headers == nil {
					p.headers = make(map[string]string)
				}
				p.headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
			}
		case token == "-d" || token == "--data" || token == "--data-raw" || token == "--data-binary" || token == "--data-urlencode":
			if p.body != "" {
				p.body += "&"
			}
			p.body += arg()
		case token == "--json":
			p.body = arg()
			p.jsonInput = true
		case token == "-u" || token == "--user":
			p.user = arg()
		case token == "-G" || token == "--get":
			p.getData = true
		case token == "-I" || token == "--head":
			explicitMethod = "HEAD"
		case token == "--url":
			p.url = arg()
		case strings.HasPrefix(token, "-"):
			if slices.Contains(curlFlagsWithArgs, token) {
				idx++
			}
		default:
			if p.url == "" {
				p.url = token
			}
		}
	}
	if p.url == "" {
		return nil, fmt.Errorf("no URL found in cURL command")
	}

	switch {
	case explicitMethod != "":
		p.method = explicitMethod
	case p.getData:
		p.method = "GET"
	case p.body != "":
		p.method = "POST"
	default:
		p.method = "GET"
	}

	if p.getData && p.body != "" {
		values, err := url.ParseQuery(p.body)
		if err != nil {
			return nil, fmt.Errorf("parse -G data: %w", err)
		}
		p.query = make(map[string]string, len(values))
		for k, v := range values {
			p.query[k] = v[0]
		}
		p.body = ""
	}
	return p, nil
}

// structuredBody keeps JSON payloads structured so the chain file stays readable.
func structuredBody(body, contentType string) any {
	if !strings.Contains(contentType, "json") {
		return body
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return body
	}
	return v
}

func pathOf(rest string) string {
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "/"
	}
	return rest
}

// tokenizeCURL splits a command line the way a POSIX shell would for the
// subset cURL snippets use: single and double quotes plus backslash escapes.
func tokenizeCURL(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inQuote := rune(0)
	escaped := false
	started := false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' && inQuote != '\'' {
			escaped = true
			started = true
			continue
		}
		if inQuote != 0 {
			if r == inQuote {
				inQuote = 0
			} else {
				current.WriteRune(r)
			}
			continue
		}

		switch r {
		case '"', '\'':
			inQuote = r
			started = true
		case ' ', '\t', '\n', '\r':
			if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if started {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func init() {
	RegisterImporter(&CURLImporter{})
}
