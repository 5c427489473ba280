package portability

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies a source format.
type Format string

// Supported formats.
const (
	FormatUnknown Format = ""
	FormatOpenAPI Format = "openapi"
	FormatPostman Format = "postman"
	FormatHAR     Format = "har"
	FormatCURL    Format = "curl"
)

// String returns the format name.
func (f Format) String() string {
	if f == FormatUnknown {
		return "unknown"
	}
	return string(f)
}

// DetectFormat guesses the format of data. The filename extension is a hint
// only; the content decides.
func DetectFormat(data []byte, filename string) Format {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return FormatUnknown
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".har" {
		return FormatHAR
	}
	if strings.HasPrefix(trimmed, "curl ") || strings.HasPrefix(trimmed, "curl\t") {
		return FormatCURL
	}
	if ext == ".sh" || ext == ".curl" {
		return FormatCURL
	}

	var raw map[string]any
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return FormatUnknown
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return FormatUnknown
	}
	return detectFromKeys(raw)
}

func detectFromKeys(raw map[string]any) Format {
	if _, ok := raw["openapi"]; ok {
		return FormatOpenAPI
	}
	if _, ok := raw["swagger"]; ok {
		return FormatOpenAPI
	}
	if log, ok := raw["log"].(map[string]any); ok {
		if _, ok := log["entries"]; ok {
			return FormatHAR
		}
	}
	if _, ok := raw["info"]; ok {
		if _, ok := raw["item"]; ok {
			return FormatPostman
		}
	}
	return FormatUnknown
}

// ParseFormat parses a format name. Unrecognized names return FormatUnknown.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openapi", "swagger", "oas":
		return FormatOpenAPI
	case "postman":
		return FormatPostman
	case "har":
		return FormatHAR
	case "curl":
		return FormatCURL
	default:
		return FormatUnknown
	}
}

// AllFormats returns every importable format.
func AllFormats() []Format {
	return []Format{FormatOpenAPI, FormatPostman, FormatHAR, FormatCURL}
}
