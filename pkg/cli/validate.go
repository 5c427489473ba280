package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqchain/pkg/config"
	"github.com/getmockd/reqchain/pkg/workflow"
)

// ValidateOutput is one file's entry in the --json output.
type ValidateOutput struct {
	Path   string   `json:"path"`
	Valid  bool     `json:"valid"`
	Chain  string   `json:"chain,omitempty"`
	Steps  int      `json:"steps,omitempty"`
	Errors []string `json:"errors,omitempty"`

	// Warnings name placeholders the file does not bind itself.
	Warnings []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate <files|dirs|globs...>",
	Short: "Check chain files without sending requests",
	Long: `Check chain files against the chain schema and the configuration rules
(unique step names, known matchers, valid paths and credentials) without
sending any request.

Placeholders that no chain variable or earlier extraction defines are
reported as warnings: they must come from the environment, --var or a
script. Unknown dynamic variables such as {{$faker.nope}} are reported too.

The exit status is 1 when any file is invalid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := config.ExpandPatterns(args)
		if err != nil {
			return err
		}

		results := make([]ValidateOutput, 0, len(files))
		valid := true
		for _, path := range files {
			res := ValidateOutput{Path: path, Valid: true}
			loaded, err := config.LoadFile(path)
			if err != nil {
				res.Valid = false
				res.Errors = validationMessages(err)
				valid = false
			} else {
				res.Chain = loaded.Chain.Name
				res.Steps = len(loaded.Chain.Steps)
				res.Warnings = undefinedWarnings(loaded.Chain)
			}
			results = append(results, res)
		}

		if err := printResult(cmd, results, func(w io.Writer) {
			for _, r := range results {
				if r.Valid {
					fmt.Fprintf(w, "ok       %s (%s, %d steps)\n", r.Path, r.Chain, r.Steps)
					for _, msg := range r.Warnings {
						fmt.Fprintf(w, "         warning: %s\n", msg)
					}
					continue
				}
				fmt.Fprintf(w, "invalid  %s\n", r.Path)
				for _, msg := range r.Errors {
					fmt.Fprintf(w, "         %s\n", msg)
				}
			}
		}); err != nil {
			return err
		}
		if !valid {
			return ErrInvalidChains
		}
		return nil
	},
}

// undefinedWarnings describes every placeholder the chain leaves unbound.
func undefinedWarnings(chain *workflow.Chain) []string {
	refs := chain.UndefinedVariables(workflow.NewGenerators(1))
	if len(refs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(refs))
	for _, ref := range refs {
		switch {
		case strings.HasPrefix(ref.Name, "$faker."):
			msgs = append(msgs, fmt.Sprintf("step %q %s: unknown dynamic variable {{%s}} (faker kinds: %s)",
				ref.Step, ref.Field, ref.Name, strings.Join(workflow.FakerKinds(), ", ")))
		case strings.HasPrefix(ref.Name, "$"):
			msgs = append(msgs, fmt.Sprintf("step %q %s: unknown dynamic variable {{%s}}", ref.Step, ref.Field, ref.Name))
		default:
			msgs = append(msgs, fmt.Sprintf("step %q %s: {{%s}} is not defined in this file", ref.Step, ref.Field, ref.Name))
		}
	}
	return msgs
}

// validationMessages flattens a load error into one message per problem.
func validationMessages(err error) []string {
	var cerr *config.ConfigError
	if errors.As(err, &cerr) && len(cerr.Problems) > 0 {
		msgs := make([]string, 0, len(cerr.Problems))
		for _, p := range cerr.Problems {
			msgs = append(msgs, p.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
