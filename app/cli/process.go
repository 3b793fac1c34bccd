package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"docsum/types"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process <file.pdf|url>...",
	Short: "Process PDFs or web pages once and print their records as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApplication(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		records := make([]types.DocumentRecord, 0, len(args))
		failed := 0
		for _, arg := range args {
			var rec types.DocumentRecord
			if isURL(arg) {
				rec, err = a.service.ProcessURL(ctx, arg)
			} else {
				rec, _, err = a.service.ProcessFile(ctx, arg)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %s: %v\n", arg, err)
				failed++
				continue
			}
			records = append(records, rec)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d inputs failed", failed, len(args))
		}
		return nil
	},
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func init() {
	RootCmd.AddCommand(processCmd)
}
