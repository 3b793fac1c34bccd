package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"docsum/app/api"
	"docsum/app/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with background sync and processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApplication(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		deps := server.Deps{
			Docs:  a.service,
			State: a.state,
			Debug: api.DebugInfo{
				Mode:         a.cfg.Mode,
				DataDir:      a.cfg.DataDir,
				FolderID:     a.cfg.Remote.FolderID,
				AIConfigured: a.aiEnabled,
				Credentials:  a.credentials,
			},
		}
		// development syncs at startup; production waits for the first request
		if !a.cfg.IsDevelopment() {
			deps.SyncOnFirstRequest = func() { go a.service.InitialSync(ctx) }
		}
		s := server.NewServer(a.cfg.ListenAddr(), deps)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.service.Run(ctx); err != nil {
				a.logger.Error("loader service failed", "error", err)
			}
		}()

		serveErr := make(chan error, 1)
		go func() { serveErr <- s.Run() }()

		a.logger.Info("docsum started", "mode", a.cfg.Mode, "addr", a.cfg.ListenAddr(), "dataDir", a.cfg.DataDir)

		select {
		case <-ctx.Done():
			a.logger.Info("Received shutdown signal, shutting down server...")
		case err = <-serveErr:
			stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if stopErr := s.Stop(shutdownCtx); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		wg.Wait()
		return err
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
