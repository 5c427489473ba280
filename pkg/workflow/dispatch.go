package workflow

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RequestSpec is a fully resolved request handed to a Dispatcher.
type RequestSpec struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    string            `json:"body,omitempty"`

	// Timeout bounds this request. Zero leaves the dispatcher default.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Clone returns a deep copy of r.
func (r *RequestSpec) Clone() *RequestSpec {
	if r == nil {
		return nil
	}
	out := *r
	out.Headers = cloneStrings(r.Headers)
	out.Query = cloneStrings(r.Query)
	return &out
}

// ResponseSpec is what a Dispatcher returns for a completed exchange.
type ResponseSpec struct {
	Status  int           `json:"status"`
	Headers http.Header   `json:"headers,omitempty"`
	Body    string        `json:"body,omitempty"`
	Elapsed time.Duration `json:"elapsed"`

	parseOnce sync.Once
	parsed    Value
	parseErr  error
}

// Header returns the first value of the named header, matching names
// case-insensitively.
func (r *ResponseSpec) Header(name string) (string, bool) {
	if r == nil || r.Headers == nil {
		return "", false
	}
	if vals, ok := r.Headers[http.CanonicalHeaderKey(name)]; ok && len(vals) > 0 {
		return vals[0], true
	}
	for k, vals := range r.Headers {
		if strings.EqualFold(k, name) && len(vals) > 0 {
			return vals[0], true
		}
	}
	return "", false
}

// JSON parses the body once and returns the cached document.
func (r *ResponseSpec) JSON() (Value, error) {
	r.parseOnce.Do(func() {
		r.parsed, r.parseErr = ParseJSON([]byte(r.Body))
	})
	return r.parsed, r.parseErr
}

// Dispatcher executes a request. A non-nil error is a transport failure;
// any HTTP status, including 5xx, is a successful dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *RequestSpec) (*ResponseSpec, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, req *RequestSpec) (*ResponseSpec, error)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, req *RequestSpec) (*ResponseSpec, error) {
	return f(ctx, req)
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
