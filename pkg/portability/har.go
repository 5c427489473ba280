package portability

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/getmockd/reqchain/pkg/config"
)

// HAR is an HTTP Archive file. Only the fields needed to replay requests
// are decoded.
type HAR struct {
	Log struct {
		Version string     `json:"version"`
		Entries []HAREntry `json:"entries"`
	} `json:"log"`
}

// HAREntry is a single request/response pair.
type HAREntry struct {
	Request  HARRequest `json:"request"`
	Response struct {
		Status  int `json:"status"`
		Content struct {
			MimeType string `json:"mimeType"`
		} `json:"content"`
	} `json:"response"`
}

// HARRequest is a recorded request.
type HARRequest struct {
	Method      string       `json:"method"`
	URL         string       `json:"url"`
	Headers     []HARPair    `json:"headers"`
	QueryString []HARPair    `json:"queryString"`
	PostData    *HARPostData `json:"postData,omitempty"`
}

// HARPair is a header or query parameter.
type HARPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARPostData is a recorded request body.
type HARPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// HARImporter imports HAR (HTTP Archive) files. Entries keep their recorded
// order since a browser session is already a chain; each step asserts the
// recorded status.
type HARImporter struct{}

// Format returns FormatHAR.
func (i *HARImporter) Format() Format {
	return FormatHAR
}

// staticExtensions are file extensions for static assets to filter out by default.
var staticExtensions = map[string]bool{
	".js":    true,
	".css":   true,
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".gif":   true,
	".svg":   true,
	".ico":   true,
	".woff":  true,
	".woff2": true,
	".ttf":   true,
	".eot":   true,
	".map":   true,
}

var staticMimeTypes = []string{
	"text/javascript",
	"application/javascript",
	"text/css",
	"image/",
	"font/",
	"application/font",
}

// skippedHeaders are set by the client or tied to the recorded connection.
var skippedHeaders = map[string]bool{
	"content-length":    true,
	"host":              true,
	"connection":        true,
	"cookie":            true,
	"accept-encoding":   true,
	"transfer-encoding": true,
	"user-agent":        true,
	"referer":           true,
	"origin":            true,
}

// Import parses a HAR file.
func (i *HARImporter) Import(data []byte, opts *Options) (*config.Document, error) {
	var har HAR
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, &ImportError{Format: FormatHAR, Message: "failed to parse HAR file", Cause: err}
	}
	if har.Log.Version == "" {
		return nil, &ImportError{Format: FormatHAR, Message: "not a valid HAR file (missing log.version)"}
	}
	includeStatic := opts != nil && opts.IncludeStatic

	doc := &config.Document{Name: "Imported from HAR"}
	names := stepNamer{}
	var base string

	for _, entry := range har.Log.Entries {
		if !includeStatic && isStaticAsset(entry.Request.URL, entry.Response.Content.MimeType) {
			continue
		}
		parsed, err := url.Parse(entry.Request.URL)
		if err != nil || parsed.Host == "" {
			continue
		}

		origin := parsed.Scheme + "://" + parsed.Host
		if base == "" {
			base = origin
			doc.Variables = map[string]any{BaseURLVar: base}
		}
		path := parsed.EscapedPath()
		if path == "" {
			path = "/"
		}
		target := origin + path
		if origin == base {
			target = "{{" + BaseURLVar + "}}" + path
		}

		step := config.StepDoc{
			Name: names.next(entry.Request.Method + " " + path),
			Request: config.RequestDoc{
				Method: entry.Request.Method,
				URL:    target,
			},
		}
		for _, q := range entry.Request.QueryString {
			if step.Request.Query == nil {
				step.Request.Query = make(map[string]string)
			}
			step.Request.Query[q.Name] = q.Value
		}
		if len(entry.Request.QueryString) == 0 && parsed.RawQuery != "" {
			for k, v := range parsed.Query() {
				if step.Request.Query == nil {
					step.Request.Query = make(map[string]string)
				}
				step.Request.Query[k] = v[0]
			}
		}
		for _, h := range entry.Request.Headers {
			name := strings.ToLower(h.Name)
			if strings.HasPrefix(name, ":") || skippedHeaders[name] {
				continue
			}
			if step.Request.Headers == nil {
				step.Request.Headers = make(map[string]string)
			}
			step.Request.Headers[h.Name] = h.Value
		}
		if pd := entry.Request.PostData; pd != nil && pd.Text != "" {
			ct := headerValue(step.Request.Headers, "Content-Type")
			if ct == "" && pd.MimeType != "" {
				ct = pd.MimeType
				if step.Request.Headers == nil {
					step.Request.Headers = make(map[string]string)
				}
				step.Request.Headers["Content-Type"] = ct
			}
			step.Request.Body = structuredBody(pd.Text, ct)
		}
		if entry.Response.Status > 0 {
			step.Assertions = append(step.Assertions, statusAssertion(entry.Response.Status))
		}
		doc.Steps = append(doc.Steps, step)
	}
	return doc, nil
}

func isStaticAsset(requestURL, mimeType string) bool {
	if parsed, err := url.Parse(requestURL); err == nil {
		if staticExtensions[strings.ToLower(filepath.Ext(parsed.Path))] {
			return true
		}
	}
	mimeType = strings.ToLower(mimeType)
	for _, prefix := range staticMimeTypes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}

func init() {
	RegisterImporter(&HARImporter{})
}
