package workflow

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// ExtractRule binds the value found at Path to the variable Name.
type ExtractRule struct {
	Name     string `json:"name" yaml:"name"`
	Path     string `json:"path" yaml:"path"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// ExtractedVar is one committed extraction.
type ExtractedVar struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// ExtractionFailure records a rule that did not produce a value.
type ExtractionFailure struct {
	Rule  ExtractRule `json:"rule"`
	Error string      `json:"error"`
}

// ParsePath parses a JSONPath expression such as $.a.b[1].
func ParsePath(path string) (jp.Expr, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: ErrInvalidPath, Detail: err.Error()}
	}
	return x, nil
}

// Extract returns the value addressed by path within doc.
//
// Plain member and index paths are walked segment by segment so the error
// distinguishes a missing segment (ErrPathNotFound) from a segment applied to
// the wrong shape (ErrTypeMismatch). Negative indexes count from the end.
// Wildcards, slices, filters and descent fall back to ojg evaluation and
// yield an array of every match.
func Extract(doc Value, path string) (Value, error) {
	x, err := ParsePath(path)
	if err != nil {
		return Value{}, err
	}

	cur := doc
	for i, frag := range x {
		switch f := frag.(type) {
		case jp.Root, jp.At, jp.Bracket:
			continue
		case jp.Child:
			if cur.Kind() != KindObject {
				return Value{}, &ExtractionError{
					Path:    path,
					Segment: x[:i+1].String(),
					Err:     ErrTypeMismatch,
					Detail:  fmt.Sprintf("expected object, got %s", cur.Kind()),
				}
			}
			next, ok := cur.Field(string(f))
			if !ok {
				return Value{}, &ExtractionError{
					Path:    path,
					Segment: x[:i+1].String(),
					Err:     ErrPathNotFound,
					Detail:  fmt.Sprintf("no member %q", string(f)),
				}
			}
			cur = next
		case jp.Nth:
			if cur.Kind() != KindArray {
				return Value{}, &ExtractionError{
					Path:    path,
					Segment: x[:i+1].String(),
					Err:     ErrTypeMismatch,
					Detail:  fmt.Sprintf("expected array, got %s", cur.Kind()),
				}
			}
			idx := int(f)
			if idx < 0 {
				idx += cur.Len()
			}
			next, ok := cur.Index(idx)
			if !ok {
				return Value{}, &ExtractionError{
					Path:    path,
					Segment: x[:i+1].String(),
					Err:     ErrPathNotFound,
					Detail:  fmt.Sprintf("index %d out of range (length %d)", int(f), cur.Len()),
				}
			}
			cur = next
		default:
			return extractGeneric(doc, x, path)
		}
	}
	return cur, nil
}

func extractGeneric(doc Value, x jp.Expr, path string) (Value, error) {
	results := x.Get(doc.Interface())
	if len(results) == 0 {
		return Value{}, &ExtractionError{Path: path, Err: ErrPathNotFound, Detail: "expression matched nothing"}
	}
	items := make([]Value, 0, len(results))
	for _, r := range results {
		v, err := FromAny(r)
		if err != nil {
			return Value{}, &ExtractionError{Path: path, Err: ErrTypeMismatch, Detail: err.Error()}
		}
		items = append(items, v)
	}
	return Array(items...), nil
}
