package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed chain.schema.json
var chainSchemaJSON []byte

var (
	chainSchema     *jsonschema.Schema
	chainSchemaErr  error
	chainSchemaOnce sync.Once
)

// ChainSchema returns the embedded JSON Schema source for chain documents.
func ChainSchema() []byte {
	return bytes.Clone(chainSchemaJSON)
}

func compiledSchema() (*jsonschema.Schema, error) {
	chainSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("chain.schema.json", bytes.NewReader(chainSchemaJSON)); err != nil {
			chainSchemaErr = fmt.Errorf("failed to add chain schema: %w", err)
			return
		}
		chainSchema, chainSchemaErr = compiler.Compile("chain.schema.json")
	})
	return chainSchema, chainSchemaErr
}

// validateSchema checks a decoded document against the chain schema. root,
// when non-nil, is used to attach line numbers to violations.
func validateSchema(doc any, root *yaml.Node) (*SchemaValidationResult, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	result := &SchemaValidationResult{}
	err = schema.Validate(doc)
	if err == nil {
		return result, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}
	collectSchemaErrors(verr, root, result)
	return result, nil
}

// collectSchemaErrors flattens the cause tree to its leaves, skipping
// duplicates that oneOf branches tend to produce.
func collectSchemaErrors(err *jsonschema.ValidationError, root *yaml.Node, result *SchemaValidationResult) {
	seen := make(map[string]bool)
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		path := pointerToPath(e.InstanceLocation)
		key := path + "\x00" + e.Message
		if seen[key] {
			return
		}
		seen[key] = true
		line, col := locate(root, e.InstanceLocation)
		result.Errors = append(result.Errors, SchemaValidationError{
			Path:    path,
			Message: e.Message,
			Line:    line,
			Column:  col,
		})
	}
	walk(err)
}

// pointerToPath renders a JSON pointer as steps[0].request.url.
func pointerToPath(ptr string) string {
	if ptr == "" || ptr == "/" {
		return ""
	}
	var b strings.Builder
	for _, tok := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(tok); err == nil {
			b.WriteString("[" + tok + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(tok)
	}
	return b.String()
}

// locate finds the node a JSON pointer refers to and returns its position.
// Unknown locations resolve to the deepest node found.
func locate(root *yaml.Node, ptr string) (line, col int) {
	if root == nil {
		return 0, 0
	}
	node := root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if ptr == "" || ptr == "/" {
		return node.Line, node.Column
	}
	for _, tok := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		next := child(node, tok)
		if next == nil {
			break
		}
		node = next
	}
	return node.Line, node.Column
}

func child(node *yaml.Node, tok string) *yaml.Node {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == tok {
				return node.Content[i+1]
			}
		}
	case yaml.SequenceNode:
		i, err := strconv.Atoi(tok)
		if err == nil && i >= 0 && i < len(node.Content) {
			return node.Content[i]
		}
	}
	return nil
}
