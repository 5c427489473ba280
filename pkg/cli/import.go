package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqchain/pkg/config"
	"github.com/getmockd/reqchain/pkg/portability"
)

var (
	importFormat        string
	importOutput        string
	importName          string
	importBaseURL       string
	importContract      string
	importIncludeStatic bool
	importForce         bool
)

var importCmd = &cobra.Command{
	Use:   "import <source>",
	Short: "Create a chain from OpenAPI, Postman, HAR or cURL",
	Long: `Convert an API description or recording into a chain file.

The source is a file path, '-' for stdin, or a quoted cURL command. The
format is detected from the content unless --format is given. Without -o
the chain is written to stdout as YAML.

Imported chains call {{baseUrl}} and take credentials from placeholders
such as {{token}}, so the values can live in an environment file.`,
	Example: `  # OpenAPI document to a chain file
  reqchain import openapi.yaml -o chains/api.yaml

  # Postman collection, overriding the base URL
  reqchain import collection.json --format postman --base-url https://staging.example.com -o chains/postman.yaml

  # Browser recording including static assets
  reqchain import session.har --include-static -o chains/session.yaml

  # A single cURL command
  reqchain import "curl -X POST https://api.example.com/users -d '{\"name\":\"a\"}'"`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	f := importCmd.Flags()
	f.StringVarP(&importFormat, "format", "F", "", "Source format: "+formatList()+" (auto-detected if omitted)")
	f.StringVarP(&importOutput, "output", "o", "", "Chain file to write (.yaml, .yml or .json)")
	f.StringVar(&importName, "name", "", "Chain name (default: taken from the source)")
	f.StringVar(&importBaseURL, "base-url", "", "Value of the baseUrl variable")
	f.StringVar(&importContract, "contract", "", "Record this OpenAPI document as the chain's contract")
	f.BoolVar(&importIncludeStatic, "include-static", false, "Include static assets (HAR imports)")
	f.BoolVarP(&importForce, "force", "f", false, "Overwrite an existing output file")
}

func formatList() string {
	names := make([]string, 0, 4)
	for _, f := range portability.AllFormats() {
		names = append(names, f.String())
	}
	return strings.Join(names, ", ")
}

func runImport(cmd *cobra.Command, args []string) error {
	data, filename, err := readImportSource(cmd, args[0])
	if err != nil {
		return err
	}

	format := portability.FormatUnknown
	if importFormat != "" {
		format = portability.ParseFormat(importFormat)
		if format == portability.FormatUnknown {
			return fmt.Errorf("unknown format %q (supported: %s)", importFormat, formatList())
		}
	}

	doc, err := portability.Import(data, filename, format, &portability.Options{
		Name:          importName,
		BaseURL:       importBaseURL,
		Contract:      importContract,
		IncludeStatic: importIncludeStatic,
	})
	if err != nil {
		return err
	}
	log.Debug("source imported", "source", filename, "steps", len(doc.Steps))

	if importOutput == "" {
		out, err := config.Marshal(doc, config.FormatYAML)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}

	if _, err := os.Stat(importOutput); err == nil && !importForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", importOutput)
	}
	if err := config.SaveDocument(importOutput, doc); err != nil {
		return err
	}
	return printResult(cmd, map[string]any{"path": importOutput, "chain": doc.Name, "steps": len(doc.Steps)}, func(w io.Writer) {
		fmt.Fprintf(w, "Imported %d step(s) into %s\n", len(doc.Steps), importOutput)
	})
}

// readImportSource returns the raw source and the name used for format
// detection.
func readImportSource(cmd *cobra.Command, source string) ([]byte, string, error) {
	switch {
	case source == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}
		return data, "stdin", nil
	case strings.HasPrefix(strings.TrimSpace(source), "curl "):
		return []byte(source), "command.curl", nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("file not found: %s", source)
		}
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	return data, filepath.Base(source), nil
}
