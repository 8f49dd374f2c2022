package info

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitpod-io/workbench-telemetry/telemetry/data"
	"github.com/gitpod-io/workbench-telemetry/telemetry/service"
	"github.com/gitpod-io/workbench-telemetry/telemetry/storage"
)

const dataDirEnvVar = "WBTELEMETRY_DATA_DIR"

// Command is the info subcommand.
var Command = makeInfoCmd()

// writeInfo prints the persisted telemetry identifiers of dataDir as JSON.
func writeInfo(w io.Writer, dataDir string) error {
	if dataDir == "" {
		dataDir = os.Getenv(dataDirEnvVar)
	}
	if dataDir == "" {
		return fmt.Errorf("the data directory is required and must be provided with a command line option or the '%s' environment variable", dataDirEnvVar)
	}

	cfg, err := data.MakeServiceConfig(&data.Args{DataDir: dataDir})
	if err != nil {
		return err
	}
	store, err := storage.OpenFileStorage(dataDir)
	if err != nil {
		return fmt.Errorf("writeInfo(): %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(service.LoadInfo(store, cfg.Product.Product))
}

func makeInfoCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "print the telemetry identifiers of a data directory",
		Long: `Prints the machine id and first session date stored in the data
directory as JSON. The session id is only known while events are relayed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeInfo(cmd.OutOrStdout(), dataDir)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", fmt.Sprintf("Set the data directory. If not set the %s environment variable is used.", dataDirEnvVar))
	return cmd
}
