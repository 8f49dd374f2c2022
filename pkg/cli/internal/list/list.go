package list

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/plugins"
)

// Command is the list command to embed in a root cobra command.
var Command = &cobra.Command{
	Use:   "list",
	Short: "List all available appender plugins",
	Long: `List all available appender plugins and a short description.

Use this utility to explore the plugins. Drill into each plugin to get a
sample configuration.

Example:
  wbtelemetry list appenders opensearch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printAll(cmd.OutOrStdout())
		return nil
	},
	// Silence errors because our logger will catch and print any errors
	SilenceErrors: true,
}

func makeDetailsCommand(pluginType plugins.PluginType, data func() []plugins.Metadata) *cobra.Command {
	return &cobra.Command{
		Use:     string(pluginType) + "s",
		Aliases: []string{string(pluginType)},
		Short:   fmt.Sprintf("Usage details for %s plugins.", pluginType),
		Long:    fmt.Sprintf(`Usage details for %s plugins. Pass in a specific plugin as a positional argument for a sample configuration file.`, pluginType),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				printMetadata(cmd.OutOrStdout(), data(), 0)
				return nil
			}
			return printDetails(cmd.OutOrStdout(), args[0], data())
		},
	}
}

func init() {
	Command.AddCommand(makeDetailsCommand(plugins.Appender, appenders.AppenderMetadata))
}

func printDetails(w io.Writer, name string, plugins []plugins.Metadata) error {
	for _, data := range plugins {
		if data.Name == name {
			fmt.Fprintln(w, data.SampleConfig)
			return nil
		}
	}

	return fmt.Errorf("plugin not found: %s", name)
}

// printMetadata keeps the order of plugins, which is the selection order.
func printMetadata(w io.Writer, plugins []plugins.Metadata, leftIndent int) {
	largestPluginNameSize := 0
	for _, data := range plugins {
		if len(data.Name) > largestPluginNameSize {
			largestPluginNameSize = len(data.Name)
		}
	}

	for _, data := range plugins {
		depthStr := strings.Repeat(" ", leftIndent)
		// pad with right with spaces
		fmtString := fmt.Sprintf("%s%%-%ds - %%s\n", depthStr, largestPluginNameSize)

		if data.Deprecated {
			fmtString = "[DEPRECATED] " + fmtString
		}

		fmt.Fprintf(w, fmtString, data.Name, data.Description)
	}
}

func printAll(w io.Writer) {
	fmt.Fprint(w, "appenders:\n")
	printMetadata(w, appenders.AppenderMetadata(), 2)
}
