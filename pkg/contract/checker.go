package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/getmockd/reqchain/pkg/logging"
	"github.com/getmockd/reqchain/pkg/workflow"
)

// TargetPath is the assertion path of contract results.
const TargetPath = "contract"

var (
	ErrInvalidSpec = errors.New("invalid OpenAPI document")
	ErrNoRoute     = errors.New("no matching operation")
)

// Checker validates responses against one OpenAPI document.
type Checker struct {
	doc    *openapi3.T
	router routers.Router
	log    *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Checker) {
		if log != nil {
			c.log = log
		}
	}
}

// LoadFile loads an OpenAPI document from disk and builds a checker.
func LoadFile(path string, opts ...Option) (*Checker, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSpec, path, err)
	}
	return New(doc, opts...)
}

// LoadData builds a checker from an in-memory document.
func LoadData(data []byte, opts ...Option) (*Checker, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}
	return New(doc, opts...)
}

// New builds a checker for doc. Server URLs are reduced to their path so
// the same contract applies whichever host a chain targets.
func New(doc *openapi3.T, opts ...Option) (*Checker, error) {
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}
	doc.Servers = pathOnlyServers(doc.Servers)

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	c := &Checker{doc: doc, router: router, log: logging.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func pathOnlyServers(servers openapi3.Servers) openapi3.Servers {
	if len(servers) == 0 {
		return nil
	}
	out := make(openapi3.Servers, 0, len(servers))
	seen := make(map[string]bool)
	for _, s := range servers {
		p := "/"
		if u, err := url.Parse(s.URL); err == nil && u.Path != "" {
			p = u.Path
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, &openapi3.Server{URL: p})
	}
	return out
}

// Check validates one exchange and returns a single result.
func (c *Checker) Check(ctx context.Context, req *workflow.RequestSpec, resp *workflow.ResponseSpec) []workflow.AssertionResult {
	a := workflow.Assertion{Path: TargetPath, Description: "response matches contract"}

	httpReq, err := toHTTPRequest(ctx, req)
	if err != nil {
		return []workflow.AssertionResult{errored(a, err)}
	}

	route, pathParams, err := c.router.FindRoute(httpReq)
	if err != nil {
		err = fmt.Errorf("%w: %s %s", ErrNoRoute, httpReq.Method, httpReq.URL.Path)
		return []workflow.AssertionResult{errored(a, err)}
	}
	a.Description = fmt.Sprintf("response matches contract for %s %s", route.Method, route.Path)

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    httpReq,
			PathParams: pathParams,
			Route:      route,
		},
		Status: resp.Status,
		Header: resp.Headers,
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	}
	if resp.Body != "" {
		input.SetBodyBytes([]byte(resp.Body))
	}

	if err := openapi3filter.ValidateResponse(ctx, input); err != nil {
		msgs := violations(err)
		c.log.Debug("contract violation", "operation", route.Path, "status", resp.Status, "violations", len(msgs))
		return []workflow.AssertionResult{{
			Assertion: a,
			Status:    workflow.StatusFailed,
			Actual:    workflow.Int(int64(resp.Status)),
			Error:     strings.Join(msgs, "; "),
		}}
	}
	return []workflow.AssertionResult{{
		Assertion: a,
		Status:    workflow.StatusPassed,
		Actual:    workflow.Int(int64(resp.Status)),
	}}
}

func errored(a workflow.Assertion, err error) workflow.AssertionResult {
	return workflow.AssertionResult{Assertion: a, Status: workflow.StatusErrored, Error: err.Error(), Err: err}
}

func toHTTPRequest(ctx context.Context, req *workflow.RequestSpec) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url: %w", err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// violations flattens kin-openapi errors into readable messages.
func violations(err error) []string {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		var out []string
		for _, e := range multi {
			out = append(out, violations(e)...)
		}
		return out
	}

	var respErr *openapi3filter.ResponseError
	if errors.As(err, &respErr) && respErr.Err != nil {
		var schemaErr *openapi3.SchemaError
		if errors.As(respErr.Err, &schemaErr) {
			field := strings.Join(schemaErr.JSONPointer(), ".")
			if field != "" {
				return []string{fmt.Sprintf("body.%s: %s", field, schemaErr.Reason)}
			}
			return []string{"body: " + schemaErr.Reason}
		}
		if errors.As(respErr.Err, &multi) {
			return violations(multi)
		}
		return []string{respErr.Err.Error()}
	}
	return []string{err.Error()}
}
