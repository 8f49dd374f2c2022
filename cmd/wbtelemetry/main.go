package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/gitpod-io/workbench-telemetry/pkg/cli"
	_ "github.com/gitpod-io/workbench-telemetry/telemetry/appenders/all"
)

func main() {
	rootCmd := cli.MakeRootCmdWithUtilities()

	// Hidden command to generate docs in a given directory
	// wbtelemetry generate-docs [path]
	if len(os.Args) == 3 && os.Args[1] == "generate-docs" {
		err := doc.GenMarkdownTree(rootCmd, os.Args[2])
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	os.Exit(0)
}
