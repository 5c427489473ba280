package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/getmockd/reqchain/pkg/config"
)

var (
	newName   string
	newMethod string
	newURL    string
	newStatus int
	newForce  bool
)

var newCmd = &cobra.Command{
	Use:   "new <file>",
	Short: "Create a chain file with one step",
	Long: `Create a chain file with a single request step and a status assertion.

Without --url, and when stdin is a terminal, an interactive form asks for
the missing fields. The file format follows the extension (.yaml, .yml or
.json).`,
	Example: `  # Interactive
  reqchain new chains/login.yaml

  # Non-interactive
  reqchain new chains/health.yaml --url '{{baseUrl}}/health' --status 200`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err == nil && !newForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if !cmd.Flags().Changed("url") {
			if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
				return errors.New("--url is required when stdin is not a terminal")
			}
			if err := promptNewChain(path); err != nil {
				return err
			}
		}

		doc := newChainDocument(path, newName, newMethod, newURL, newStatus)
		if result := config.ValidateDocument(doc); !result.IsValid() {
			return fmt.Errorf("generated chain is invalid:\n%s", result.Error())
		}
		if err := config.SaveDocument(path, doc); err != nil {
			return err
		}

		return printResult(cmd, map[string]any{"path": path, "chain": doc.Name}, func(w io.Writer) {
			fmt.Fprintf(w, "Created %s\n", path)
		})
	},
}

// promptNewChain fills the unset fields through an interactive form.
func promptNewChain(path string) error {
	statusStr := strconv.Itoa(newStatus)
	if newName == "" {
		base := filepath.Base(path)
		newName = strings.TrimSuffix(base, filepath.Ext(base))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Chain name").
				Value(&newName),
			huh.NewSelect[string]().
				Title("Which HTTP method does the first step use?").
				Options(
					huh.NewOption("GET", "GET"),
					huh.NewOption("POST", "POST"),
					huh.NewOption("PUT", "PUT"),
					huh.NewOption("PATCH", "PATCH"),
					huh.NewOption("DELETE", "DELETE"),
				).
				Value(&newMethod),
			huh.NewInput().
				Title("Request URL").
				Placeholder("{{baseUrl}}/health").
				Value(&newURL).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("url is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Expected status code").
				Value(&statusStr).
				Validate(func(s string) error {
					if n, err := strconv.Atoi(s); err != nil || n < 100 || n > 599 {
						return errors.New("enter a status between 100 and 599")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	newStatus, _ = strconv.Atoi(statusStr)
	return nil
}

func newChainDocument(path, name, method, url string, status int) *config.Document {
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if method == "" {
		method = "GET"
	}
	return &config.Document{
		Name: name,
		Steps: []config.StepDoc{{
			Name: "request",
			Request: config.RequestDoc{
				Method: strings.ToUpper(method),
				URL:    url,
			},
			Assertions: []config.AssertionDoc{{Shorthand: fmt.Sprintf("status equals %d", status)}},
		}},
	}
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringVar(&newName, "name", "", "Chain name (default: file name)")
	newCmd.Flags().StringVar(&newMethod, "method", "GET", "HTTP method of the step")
	newCmd.Flags().StringVar(&newURL, "url", "", "Request URL, may contain {{placeholders}}")
	newCmd.Flags().IntVar(&newStatus, "status", 200, "Expected response status")
	newCmd.Flags().BoolVarP(&newForce, "force", "f", false, "Overwrite an existing file")
}
