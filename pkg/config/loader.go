package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/reqchain/pkg/auth"
	"github.com/getmockd/reqchain/pkg/workflow"
)

// Common errors for chain loading and saving.
var (
	ErrFileNotFound     = errors.New("chain file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("chain file is empty")
	ErrSchemaViolation  = errors.New("chain does not match schema")
	ErrInvalidChain     = errors.New("invalid chain")
	ErrNoMatches        = errors.New("no chain files matched")
)

// ConfigError locates a loading failure in a file. Err is one of the
// package sentinels.
type ConfigError struct {
	Path     string
	Line     int
	Column   int
	Message  string
	Problems []SchemaValidationError
	Err      error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
			if e.Column > 0 {
				fmt.Fprintf(&b, ":%d", e.Column)
			}
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Format is a document encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadedChain is a chain file ready to run.
type LoadedChain struct {
	Path     string
	Document *Document
	Chain    *workflow.Chain

	// Auth is still templated; it is resolved per run.
	Auth *auth.Credential

	// Contract is the OpenAPI document path resolved against the chain
	// file's directory. Empty when the chain has no contract.
	Contract string
}

// LoadFile reads, validates and converts one chain file. A chain without a
// name is named after its file.
func LoadFile(path string) (*LoadedChain, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return Load(path, data)
}

// Load parses data as the chain file at path.
func Load(path string, data []byte) (*LoadedChain, error) {
	doc, err := ParseDocument(data, FormatFor(path))
	if err != nil {
		var cerr *ConfigError
		if errors.As(err, &cerr) {
			cerr.Path = path
		}
		return nil, err
	}
	if doc.Name == "" {
		base := filepath.Base(path)
		doc.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if result := ValidateDocument(doc); !result.IsValid() {
		return nil, &ConfigError{Path: path, Err: ErrInvalidChain, Message: result.Error(), Problems: result.Errors}
	}

	chain, err := ToChain(doc)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: ErrInvalidChain, Message: err.Error()}
	}

	loaded := &LoadedChain{Path: path, Document: doc, Chain: chain}
	if doc.Auth != nil && !doc.Auth.IsZero() {
		loaded.Auth = doc.Auth
	}
	if doc.Contract != "" {
		loaded.Contract = doc.Contract
		if !filepath.IsAbs(doc.Contract) {
			loaded.Contract = filepath.Join(filepath.Dir(path), doc.Contract)
		}
	}
	return loaded, nil
}

// ParseDocument checks syntax and schema, then decodes the document.
// Errors are *ConfigError without a Path.
func ParseDocument(data []byte, format Format) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ConfigError{Err: ErrEmptyFile}
	}

	var (
		root       yaml.Node
		normalized any
		positions  *yaml.Node
	)
	if format == FormatJSON {
		if !json.Valid(data) {
			return nil, jsonSyntaxError(data)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&normalized); err != nil {
			return nil, &ConfigError{Err: ErrInvalidJSON, Message: err.Error()}
		}
		// JSON goes through the YAML decoder too, which needs plain numbers.
		if err := root.Encode(plainNumbers(normalized)); err != nil {
			return nil, &ConfigError{Err: ErrInvalidJSON, Message: err.Error()}
		}
	} else {
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, yamlError(err)
		}
		var raw any
		if err := root.Decode(&raw); err != nil {
			return nil, yamlError(err)
		}
		var err error
		if normalized, err = normalize(raw); err != nil {
			return nil, &ConfigError{Err: ErrInvalidYAML, Message: err.Error()}
		}
		positions = &root
	}

	result, err := validateSchema(normalized, positions)
	if err != nil {
		return nil, err
	}
	if !result.IsValid() {
		first := result.Errors[0]
		return nil, &ConfigError{
			Line:     first.Line,
			Column:   first.Column,
			Err:      ErrSchemaViolation,
			Message:  result.Error(),
			Problems: result.Errors,
		}
	}

	var doc Document
	if err := root.Decode(&doc); err != nil {
		return nil, yamlError(err)
	}
	return &doc, nil
}

// normalize turns YAML-decoded data into the shapes encoding/json
// produces, which is what the schema validator expects.
func normalize(raw any) (any, error) {
	data, err := json.Marshal(stringKeys(raw))
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// plainNumbers replaces json.Number with int64 or float64.
func plainNumbers(x any) any {
	switch t := x.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = plainNumbers(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = plainNumbers(v)
		}
		return out
	default:
		return x
	}
}

func stringKeys(x any) any {
	switch t := x.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = stringKeys(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[fmt.Sprint(k)] = stringKeys(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = stringKeys(v)
		}
		return out
	default:
		return x
	}
}

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

func yamlError(err error) *ConfigError {
	cerr := &ConfigError{Err: ErrInvalidYAML, Message: strings.TrimPrefix(err.Error(), "yaml: ")}
	if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
		cerr.Line, _ = strconv.Atoi(m[1])
	}
	return cerr
}

func jsonSyntaxError(data []byte) *ConfigError {
	cerr := &ConfigError{Err: ErrInvalidJSON}
	var v any
	err := json.Unmarshal(data, &v)
	var serr *json.SyntaxError
	if errors.As(err, &serr) {
		cerr.Message = serr.Error()
		cerr.Line, cerr.Column = position(data, serr.Offset)
	} else if err != nil {
		cerr.Message = err.Error()
	}
	return cerr
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	before := data[:offset]
	line = bytes.Count(before, []byte("\n")) + 1
	col = int(offset) - bytes.LastIndexByte(before, '\n')
	return line, col
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, &ConfigError{Path: path, Err: ErrEmptyFile}
	}
	return data, nil
}

// ExpandPatterns resolves file paths, directories and doublestar globs into
// a de-duplicated file list. Directories expand to every chain file below
// them. Matches of one pattern are sorted; pattern order is kept.
func ExpandPatterns(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		clean := filepath.Clean(p)
		if !seen[clean] {
			seen[clean] = true
			files = append(files, clean)
		}
	}

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil {
			if !info.IsDir() {
				add(pattern)
				continue
			}
			pattern = filepath.Join(pattern, "**", "*.{yaml,yml,json}")
		} else if !hasMeta(pattern) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, pattern)
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoMatches, pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return files, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// LoadChains expands patterns and loads every matched file. Files that
// fail to load are reported together; the rest are still returned.
func LoadChains(patterns []string) ([]*LoadedChain, error) {
	files, err := ExpandPatterns(patterns)
	if err != nil {
		return nil, err
	}
	chains := make([]*LoadedChain, 0, len(files))
	var errs []error
	for _, f := range files {
		loaded, err := LoadFile(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chains = append(chains, loaded)
	}
	return chains, errors.Join(errs...)
}

// Marshal encodes a document in the given format.
func Marshal(doc *Document, format Format) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("document cannot be nil")
	}
	if format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// SaveDocument writes doc to path using atomic rename. The format follows
// the file extension. Parent directories are created.
func SaveDocument(path string, doc *Document) error {
	data, err := Marshal(doc, FormatFor(path))
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
