package portability

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/getmockd/reqchain/pkg/config"
)

// Importer converts one source format into a chain document.
type Importer interface {
	Import(data []byte, opts *Options) (*config.Document, error)
	Format() Format
}

// Options adjusts an import.
type Options struct {
	// Name overrides the chain name taken from the source.
	Name string
	// BaseURL overrides the baseUrl variable taken from the source.
	BaseURL string
	// Contract is written to the contract field of OpenAPI imports: the
	// source document path relative to where the chain will be saved.
	Contract string
	// IncludeStatic keeps static assets when importing HAR files.
	IncludeStatic bool
}

// BaseURLVar is the chain variable importers route request URLs through.
const BaseURLVar = "baseUrl"

// Import detects the format of data when format is FormatUnknown, runs the
// matching importer and checks that the result is a loadable chain.
func Import(data []byte, filename string, format Format, opts *Options) (*config.Document, error) {
	if opts == nil {
		opts = &Options{}
	}
	if format == FormatUnknown {
		format = DetectFormat(data, filename)
		if format == FormatUnknown {
			return nil, &ImportError{Message: "unable to detect format; pass one of " + formatList()}
		}
	}

	importer := GetImporter(format)
	if importer == nil {
		return nil, &ImportError{Format: format, Message: "no importer available for format"}
	}

	doc, err := importer.Import(data, opts)
	if err != nil {
		return nil, err
	}
	if opts.Name != "" {
		doc.Name = opts.Name
	}
	if opts.BaseURL != "" {
		if doc.Variables == nil {
			doc.Variables = make(map[string]any)
		}
		doc.Variables[BaseURLVar] = strings.TrimRight(opts.BaseURL, "/")
	}
	if len(doc.Steps) == 0 {
		return nil, &ImportError{Format: format, Message: "source contains no requests"}
	}
	if result := config.ValidateDocument(doc); !result.IsValid() {
		return nil, &ImportError{Format: format, Message: "imported chain is invalid", Cause: result}
	}
	return doc, nil
}

func formatList() string {
	names := make([]string, 0, 4)
	for _, f := range AllFormats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// ImportError represents an error during import.
type ImportError struct {
	Format  Format
	Line    int
	Message string
	Cause   error
}

func (e *ImportError) Error() string {
	msg := e.Message
	if e.Format != FormatUnknown {
		msg = string(e.Format) + ": " + msg
	}
	if e.Line > 0 {
		msg = msg + " (line " + strconv.Itoa(e.Line) + ")"
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ImportError) Unwrap() error {
	return e.Cause
}

// stepNamer hands out unique step names.
type stepNamer map[string]int

func (n stepNamer) next(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "step"
	}
	n[name]++
	if c := n[name]; c > 1 {
		return fmt.Sprintf("%s (%d)", name, c)
	}
	return name
}

func statusAssertion(code int) config.AssertionDoc {
	return config.AssertionDoc{Shorthand: "status equals " + strconv.Itoa(code)}
}

// originOf splits an absolute URL into its scheme://host origin and the rest.
func originOf(raw string) (origin, rest string) {
	scheme, after, ok := strings.Cut(raw, "://")
	if !ok {
		return "", raw
	}
	i := strings.IndexAny(after, "/?#")
	if i < 0 {
		return scheme + "://" + after, ""
	}
	return scheme + "://" + after[:i], after[i:]
}
