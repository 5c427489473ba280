package workflow

import (
	"strings"
)

// Reserved target names. Anything else is a JSONPath into the response body.
const (
	TargetStatus       = "status"
	TargetBody         = "body"
	TargetDuration     = "duration"
	TargetResponseTime = "responseTime"
	TargetContract     = "contract"
)

// ResolveTarget selects the value an assertion or extraction rule refers to:
//
//	status            response status code (number)
//	body              raw response body (string)
//	duration          elapsed milliseconds (number); alias responseTime
//	header.<Name>     header value (string, empty when absent); alias headers.<Name>
//	$.a.b[0]          JSONPath into the parsed body
func ResolveTarget(resp *ResponseSpec, path string) (Value, error) {
	path = strings.TrimSpace(path)
	switch path {
	case TargetStatus:
		return Int(int64(resp.Status)), nil
	case TargetBody:
		return String(resp.Body), nil
	case TargetDuration, TargetResponseTime:
		return Number(float64(resp.Elapsed.Microseconds()) / 1000), nil
	}

	if name, ok := headerTarget(path); ok {
		v, _ := resp.Header(name)
		return String(v), nil
	}

	doc, err := resp.JSON()
	if err != nil {
		return Value{}, &ExtractionError{Path: path, Err: ErrTypeMismatch, Detail: "response body is not valid JSON"}
	}
	return Extract(doc, path)
}

func headerTarget(path string) (string, bool) {
	for _, prefix := range []string{"header.", "headers.", "header:"} {
		if name, ok := strings.CutPrefix(path, prefix); ok && name != "" {
			return name, true
		}
	}
	return "", false
}

// ValidateTarget checks that path is a reserved name, a header reference or
// a parseable JSONPath.
func ValidateTarget(path string) error {
	path = strings.TrimSpace(path)
	switch path {
	case TargetStatus, TargetBody, TargetDuration, TargetResponseTime:
		return nil
	}
	if _, ok := headerTarget(path); ok {
		return nil
	}
	_, err := ParsePath(path)
	return err
}
