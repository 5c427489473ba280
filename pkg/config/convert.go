package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/getmockd/reqchain/pkg/workflow"
)

// ToChain converts a document into a runnable chain. The document should
// have passed ValidateDocument; the chain's own validation runs again here.
func ToChain(doc *Document) (*workflow.Chain, error) {
	chain := &workflow.Chain{
		Name:        doc.Name,
		Description: doc.Description,
		Config: workflow.ChainConfig{
			StopOnFailure: doc.Config.StopOnFailure,
			Delay:         time.Duration(doc.Config.Delay),
			MaxDuration:   time.Duration(doc.Config.MaxDuration),
			Iterations:    doc.Config.Iterations,
		},
	}

	if len(doc.Variables) > 0 {
		chain.Variables = make(map[string]workflow.Value, len(doc.Variables))
		for name, raw := range doc.Variables {
			v, err := workflow.FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("variables.%s: %w", name, err)
			}
			chain.Variables[name] = v
		}
	}

	chain.Steps = make([]workflow.Step, 0, len(doc.Steps))
	for i := range doc.Steps {
		step, err := doc.Steps[i].toStep()
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		chain.Steps = append(chain.Steps, step)
	}

	if err := chain.Validate(); err != nil {
		return nil, err
	}
	return chain, nil
}

func (s *StepDoc) toStep() (workflow.Step, error) {
	body, err := encodeBody(s.Request.Body)
	if err != nil {
		return workflow.Step{}, fmt.Errorf("request.body: %w", err)
	}

	headers := s.Request.Headers
	if _, isString := s.Request.Body.(string); s.Request.Body != nil && !isString && !hasHeader(headers, "Content-Type") {
		headers = cloneMap(headers)
		headers["Content-Type"] = "application/json"
	}

	step := workflow.Step{
		Name:        strings.TrimSpace(s.Name),
		Description: s.Description,
		Request: workflow.RequestTemplate{
			Method:  strings.ToUpper(s.Request.Method),
			URL:     s.Request.URL,
			Headers: headers,
			Query:   s.Request.Query,
			Body:    body,
		},
		OnFailure: workflow.FailurePolicy(s.OnFailure),
		Timeout:   time.Duration(s.Timeout),
		Enabled:   s.Enabled,
	}
	if s.Scripts != nil {
		step.Scripts = workflow.Scripts{Pre: s.Scripts.Pre, Post: s.Scripts.Post}
	}
	for _, rule := range s.Extract {
		step.Extract = append(step.Extract, workflow.ExtractRule{
			Name:     strings.TrimSpace(rule.Name),
			Path:     rule.Path,
			Optional: rule.Optional,
		})
	}
	for j := range s.Assertions {
		a, err := s.Assertions[j].toAssertion()
		if err != nil {
			return workflow.Step{}, fmt.Errorf("assertions[%d]: %w", j, err)
		}
		step.Assertions = append(step.Assertions, a)
	}
	return step, nil
}

func (a *AssertionDoc) toAssertion() (workflow.Assertion, error) {
	if a.Shorthand != "" {
		return ParseAssertion(a.Shorthand)
	}
	kind, err := workflow.ParseMatcherKind(a.Matcher)
	if err != nil {
		return workflow.Assertion{}, err
	}
	return workflow.Assertion{
		Path:        a.Path,
		Matcher:     workflow.Matcher{Kind: kind, Expected: a.Expected},
		Description: a.Description,
		Enabled:     a.Enabled,
	}, nil
}

// encodeBody renders a request body. Strings pass through untouched;
// structured values become canonical JSON with placeholders kept inside
// their string values.
func encodeBody(body any) (string, error) {
	switch b := body.(type) {
	case nil:
		return "", nil
	case string:
		return b, nil
	}
	v, err := workflow.FromAny(body)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
