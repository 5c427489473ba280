package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqchain/pkg/cli/internal/output"
	"github.com/getmockd/reqchain/pkg/cliconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective CLI configuration",
	Long: `Show the effective configuration and where each value came from.

Values are resolved in this order, later sources winning:
  default, global file, local file (.reqchain.yaml), REQCHAIN_* variables, flags`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

type configValue struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

func runConfig(cmd *cobra.Command, _ []string) error {
	values := configValues(cfg)

	data := struct {
		Values     []configValue `json:"values"`
		LocalFile  string        `json:"localFile,omitempty"`
		GlobalFile string        `json:"globalFile,omitempty"`
	}{Values: values}
	data.LocalFile, _ = cliconfig.FindLocalConfig()
	data.GlobalFile, _ = cliconfig.FindGlobalConfig()

	return printResult(cmd, data, func(w io.Writer) {
		tw := output.Table(w)
		fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
		for _, v := range values {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Key, v.Value, v.Source)
		}
		_ = tw.Flush()
		if data.LocalFile != "" {
			fmt.Fprintf(w, "\nLocal config:  %s\n", data.LocalFile)
		}
		if data.GlobalFile != "" {
			fmt.Fprintf(w, "Global config: %s\n", data.GlobalFile)
		}
	})
}

func configValues(c *cliconfig.CLIConfig) []configValue {
	source := func(key string) string {
		if s, ok := c.Sources[key]; ok {
			return s
		}
		return cliconfig.SourceDefault
	}
	row := func(key, value string) configValue {
		if value == "" {
			value = "-"
		}
		return configValue{Key: key, Value: value, Source: source(key)}
	}
	return []configValue{
		row("envDir", c.EnvDir),
		row("environment", c.Environment),
		row("historyFile", c.HistoryFile),
		row("historyLimit", strconv.Itoa(c.HistoryLimit)),
		row("noHistory", strconv.FormatBool(c.NoHistory)),
		row("timeout", c.Timeout.String()),
		row("parallel", strconv.Itoa(c.Parallel)),
		row("metricsFile", c.MetricsFile),
		row("logLevel", c.LogLevel),
		row("logFormat", c.LogFormat),
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
}
