package cli

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitpod-io/workbench-telemetry/api"
	"github.com/gitpod-io/workbench-telemetry/pkg/cli/internal/info"
	"github.com/gitpod-io/workbench-telemetry/pkg/cli/internal/initialize"
	"github.com/gitpod-io/workbench-telemetry/pkg/cli/internal/list"
	"github.com/gitpod-io/workbench-telemetry/telemetry"
	"github.com/gitpod-io/workbench-telemetry/telemetry/data"
	"github.com/gitpod-io/workbench-telemetry/telemetry/loggers"
	"github.com/gitpod-io/workbench-telemetry/telemetry/metrics"
	"github.com/gitpod-io/workbench-telemetry/telemetry/remote"
	"github.com/gitpod-io/workbench-telemetry/telemetry/service"
	"github.com/gitpod-io/workbench-telemetry/telemetry/storage"
	"github.com/gitpod-io/workbench-telemetry/version"
)

var (
	logger *log.Logger

	//Banner is printed when the relay starts
	//go:embed banner.txt
	Banner string
)

// DataDirEnvVar is read when no data directory flag is given.
const DataDirEnvVar = "WBTELEMETRY_DATA_DIR"

// HandlePanic function to log panics in a common way
func HandlePanic(logger *log.Logger) {
	if r := recover(); r != nil {
		logger.Panicf("wbtelemetry experienced a panic: %v", r)
	}
}

// runWithConfig relays events read from in until EOF using the
// configuration found in the data directory.
func runWithConfig(args *data.Args, in io.Reader) error {
	if args.DataDir == "" {
		args.DataDir = os.Getenv(DataDirEnvVar)
	}

	if args.DataDir == "" {
		return fmt.Errorf("the data directory is required and must be provided with a command line option or the '%s' environment variable", DataDirEnvVar)
	}

	cfg, err := data.MakeServiceConfig(args)
	if err != nil {
		return err
	}

	// Initialize logger
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		var levels []string
		for _, l := range log.AllLevels {
			levels = append(levels, l.String())
		}
		return fmt.Errorf("invalid configuration: '%s' is not a valid log level, valid levels: %s", cfg.LogLevel, strings.Join(levels, ", "))
	}

	logger, err = loggers.MakeThreadSafeLogger(level, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer HandlePanic(logger)

	logger.Infof("Starting wbtelemetry %s", version.LongVersion())
	logger.Infof("Using data directory: %s", args.DataDir)

	if !cfg.HideBanner {
		fmt.Print(Banner)
	}

	if cfg.LogFile != "" {
		fmt.Printf("Writing logs to file: %s\n", cfg.LogFile)
	} else {
		fmt.Println("Writing logs to console.")
	}

	store, err := storage.OpenFileStorage(args.DataDir)
	if err != nil {
		return fmt.Errorf("storage error: %w", err)
	}

	appenderConfigs, err := cfg.AppenderConfigs()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

	// An untyped nil tells the selector no remote is connected.
	var conn telemetry.RemoteConnection
	if cfg.Remote.URL != "" {
		rc, err := remote.Dial(cfg.Remote, logger)
		if err != nil {
			logger.WithError(err).Warn("remote server unavailable, continuing without remote forwarding")
		} else {
			defer rc.Close()
			conn = rc
		}
	}

	if cfg.MetricsEnabled() {
		metrics.RegisterPrometheusMetrics(cfg.Metrics.Prefix)
		shutdown := api.StartMetricsServer(logger, cfg.Metrics.Addr)
		defer shutdown(ctx)
	}

	svc, err := service.New(ctx, service.Options{
		Level:              cfg.TelemetryLevel(),
		SendErrorTelemetry: cfg.Telemetry.SendErrorTelemetry,
		Disabled:           cfg.TelemetryDisabled(),
		InternalTesting:    cfg.Telemetry.InternalTesting,
		Product:            cfg.Product.Product,
		AIConfig:           cfg.Product.AIConfig,
		Remote:             conn,
		Storage:            store,
		AppenderConfigs:    appenderConfigs,
		DataDir:            args.DataDir,
		MetricsPrefix:      cfg.Metrics.Prefix,
		Logger:             logger,
	})
	if err != nil {
		err = fmt.Errorf("telemetry service creation error: %w", err)
		// Suppress log, it is about to be printed to stderr.
		if cfg.LogFile != "" {
			logger.Error(err)
		}
		return err
	}

	if cfg.API.Address != "" {
		shutdown, err := api.StartServer(logger, svc, cfg.API.Address)
		if err != nil {
			logger.Errorf("failed to start API server: %s", err)
		} else {
			defer shutdown(ctx)
		}
	}

	n, err := relay(ctx, in, svc, logger)
	svc.FlushAll(ctx)
	svc.Dispose()
	logger.Infof("Relayed %d events", n)
	return err
}

// MakeRootCmdWithUtilities creates the main cobra command with all utilities
func MakeRootCmdWithUtilities() *cobra.Command {
	cmd := MakeRootCmd()
	cmd.AddCommand(initialize.InitCommand)
	cmd.AddCommand(list.Command)
	cmd.AddCommand(info.Command)
	return cmd
}

// MakeRootCmd creates the main cobra command, initializes flags
func MakeRootCmd() *cobra.Command {
	cfg := &data.Args{}
	var vFlag bool
	cmd := &cobra.Command{
		Use:   "wbtelemetry",
		Short: "Relay workbench telemetry events.",
		Long: `wbtelemetry reads workbench telemetry events from stdin, one JSON
object per line, and hands them to the configured telemetry appenders.

  {"name": "editor/opened", "data": {"languageId": "go"}}
  {"name": "extension/crashed", "error": true}
  {"experiment": {"name": "exp.layout", "value": "compact"}}
  {"flush": true}

Pending events are flushed when stdin is closed.

You must provide a data directory containing a file named wbtelemetry.yml.
The file configures the product, the telemetry level and the appenders.

See other subcommands for further built in utilities and information.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			err := runWithConfig(cfg, cmd.InOrStdin())
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nExiting with error:\n%s.\n", err)
				os.Exit(1)
			}
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if vFlag {
				fmt.Printf("%s\n", version.LongVersion())
				os.Exit(0)
			}
		},
	}
	cmd.Flags().StringVarP(&cfg.DataDir, "data-dir", "d", "", fmt.Sprintf("Set the data directory. If not set the %s environment variable is used.", DataDirEnvVar))
	cmd.Flags().BoolVar(&cfg.DisableTelemetry, "disable-telemetry", false, "Disable telemetry regardless of the configured level.")
	cmd.PersistentFlags().BoolVarP(&vFlag, "version", "v", false, "Print the wbtelemetry version.")
	// No need for shell completions.
	cmd.CompletionOptions.DisableDefaultCmd = true

	return cmd
}
