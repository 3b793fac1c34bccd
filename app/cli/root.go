// Package cli implements the docsum commands.
package cli

import (
	"fmt"
	"os"

	"docsum/config"

	"github.com/spf13/cobra"
)

var (
	envFile string
	dataDir string
)

// RootCmd is the top-level command. Without a subcommand it serves.
var RootCmd = &cobra.Command{
	Use:          "docsum",
	Short:        "Summarise PDFs and web pages with Gemini and mirror them to Google Drive",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file (default: .env when present)")
	RootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (default: $DATA_DIR or ./data)")
}

// loadConfig resolves configuration after flags are parsed.
func loadConfig() config.Config {
	if envFile != "" {
		config.LoadEnv(envFile)
	} else {
		config.LoadEnv()
	}
	cfg := config.FromEnv()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
