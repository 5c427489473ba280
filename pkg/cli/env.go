package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqchain/pkg/cli/internal/output"
	"github.com/getmockd/reqchain/pkg/environment"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Inspect environments",
	Long: `Inspect the environment files in the environment directory.

An environment is a YAML or JSON file with a name and a set of variables.
Select one for a run with 'reqchain run --env <name>'. Secret variables are
always shown masked.`,
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available environments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := loadEnvironments()
		if err != nil {
			return err
		}
		envs := m.List()

		type envSummary struct {
			Name        string `json:"name"`
			Description string `json:"description,omitempty"`
			Variables   int    `json:"variables"`
			Secrets     int    `json:"secrets"`
			Path        string `json:"path,omitempty"`
		}
		rows := make([]envSummary, 0, len(envs))
		for _, e := range envs {
			rows = append(rows, envSummary{
				Name:        e.Name,
				Description: e.Description,
				Variables:   len(e.Variables),
				Secrets:     len(e.SecretNames()),
				Path:        e.Path,
			})
		}

		return printResult(cmd, rows, func(w io.Writer) {
			if len(rows) == 0 {
				fmt.Fprintf(w, "No environments found in %s\n", cfg.EnvDir)
				return
			}
			tw := output.Table(w)
			fmt.Fprintln(tw, "NAME\tVARIABLES\tSECRETS\tDESCRIPTION")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", r.Name, r.Variables, r.Secrets, output.Truncate(r.Description, 50))
			}
			_ = tw.Flush()
		})
	},
}

var envShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show an environment's variables with secrets masked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadEnvironments()
		if err != nil {
			return err
		}
		env, err := m.Get(args[0])
		if err != nil {
			return fmt.Errorf("%w (looked in %s)", err, cfg.EnvDir)
		}
		vars := env.Masked()
		names := make([]string, 0, len(vars))
		for name := range vars {
			names = append(names, name)
		}
		sort.Strings(names)

		data := map[string]any{
			"name":        env.Name,
			"description": env.Description,
			"path":        env.Path,
			"variables":   vars,
		}
		return printResult(cmd, data, func(w io.Writer) {
			fmt.Fprintf(w, "Environment: %s\n", env.Name)
			if env.Description != "" {
				fmt.Fprintf(w, "Description: %s\n", env.Description)
			}
			if env.Path != "" {
				fmt.Fprintf(w, "File:        %s\n", env.Path)
			}
			fmt.Fprintf(w, "Variables:   %d\n\n", len(names))
			tw := output.Table(w)
			for _, name := range names {
				fmt.Fprintf(tw, "  %s\t%s\n", name, output.Truncate(vars[name], 60))
			}
			_ = tw.Flush()
		})
	},
}

func loadEnvironments() (*environment.Manager, error) {
	m := environment.NewManager(cfg.EnvDir)
	m.SetLogger(log)
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.AddCommand(envListCmd)
	envCmd.AddCommand(envShowCmd)
}
