package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull new files from the Drive folder, process them and exit",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := newApplication(ctx, loadConfig())
		if err != nil {
			exitErr("init", err)
		}
		defer a.Close()

		if err := os.MkdirAll(a.cfg.DataDir, 0755); err != nil {
			exitErr("create data dir", err)
		}
		report, err := a.service.Resync(ctx)
		if err != nil {
			exitErr("sync", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)
}
