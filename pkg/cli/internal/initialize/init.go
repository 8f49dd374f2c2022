package initialize

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gitpod-io/workbench-telemetry/telemetry/appenders"
	"github.com/gitpod-io/workbench-telemetry/telemetry/data"
)

// InitCommand is the init subcommand.
var InitCommand = makeInitCmd()

const defaultDataDirectory = "data"

var errNoWriter = errors.New("configWriter is required")

//go:embed wbtelemetry.yml.example
var sampleConfig string

// indent shifts every non-empty line of obj right by two spaces.
func indent(obj string) string {
	var ret string
	for _, line := range strings.Split(strings.TrimRight(obj, "\n"), "\n") {
		if line != "" {
			ret += "  " + line
		}
		ret += "\n"
	}
	return ret
}

func runInit(path string, appenderFlags []string) error {
	var location string
	if path == "" {
		path = defaultDataDirectory
		location = "in the current working directory"
	} else {
		location = fmt.Sprintf("at '%s'", path)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return err
	}

	configFilePath := filepath.Join(path, data.DefaultConfigName)
	f, err := os.Create(configFilePath)
	if err != nil {
		return fmt.Errorf("runInit(): failed to create %s", configFilePath)
	}
	defer f.Close()

	err = writeConfigFile(f, appenderFlags)
	if err != nil {
		return err
	}

	fmt.Printf("A data directory has been created %s.\n", location)
	fmt.Printf("\nBefore it can be used, the config file needs to be updated with\n")
	fmt.Printf("the product details and ingestion keys, and the settings of the\n")
	fmt.Printf("selected appenders.\n")
	fmt.Printf("\nOnce the config file is updated, pipe events into wbtelemetry with:\n")
	fmt.Printf("  ./wbtelemetry -d %s\n", path)

	return nil
}

func writeConfigFile(configWriter io.Writer, appenderFlags []string) error {
	if configWriter == nil {
		return errNoWriter
	}

	if len(appenderFlags) == 0 {
		for _, kind := range appenders.AllKinds {
			appenderFlags = append(appenderFlags, string(kind))
		}
	}

	var sections string
	for _, name := range appenderFlags {
		found := false
		for _, metadata := range appenders.AppenderMetadata() {
			if metadata.Name == name {
				sections += indent(metadata.SampleConfig)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("runInit(): unknown appender name: %v", name)
		}
	}

	config := fmt.Sprintf(sampleConfig, sections)

	_, err := configWriter.Write([]byte(config))
	if err != nil {
		return fmt.Errorf("runInit(): failed to write sample config: %w", err)
	}
	return nil
}

// makeInitCmd creates a sample data directory.
func makeInitCmd() *cobra.Command {
	var dataDir string
	var appenderNames []string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "initializes a wbtelemetry data directory",
		Long: `Initializes a wbtelemetry.yml file and writes it to stdout. By default
the config file contains a section for every appender. The sections can be
restricted with the appenders option.

Once initialized the wbtelemetry.yml file needs to be modified. Refer to the
file comments for details.

If the 'data' option is used, the file will be written to that
directory and additional help is written to stdout.`,
		Example: "wbtelemetry init -d /path/to/data -a log,insights",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataDir == "" {
				return writeConfigFile(cmd.OutOrStdout(), appenderNames)
			}
			return runInit(dataDir, appenderNames)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "Full path to new data directory to initialize. If not set, the configuration YAML is written to stdout.")
	cmd.Flags().StringSliceVarP(&appenderNames, "appenders", "a", []string{}, "comma-separated list of appender sections to include.")
	return cmd
}
