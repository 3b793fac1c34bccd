package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"docsum/app/agent"
	"docsum/app/state"
	"docsum/config"
	"docsum/loader/service"
	"docsum/model"
	"docsum/remote"
	"docsum/store"
)

const logLines = 100

// application is everything a command needs, built from one Config.
type application struct {
	cfg         config.Config
	logger      *slog.Logger
	state       *state.State
	service     *service.Service
	credentials remote.CredentialStatus
	aiEnabled   bool
	mirror      *store.PostgresStore
}

func newApplication(ctx context.Context, cfg config.Config) (*application, error) {
	st := state.New(logLines)
	logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, st.Logs()), nil))
	slog.SetDefault(logger)

	analyzer := agent.NewAnalyzer(newGenerator(cfg.LLM, logger))

	client, creds, err := remote.NewDriveClient(ctx, cfg.Remote.CredentialsJSON, cfg.Remote.CredentialsFile)
	if err != nil {
		return nil, err
	}

	ledgerPath := cfg.Remote.LedgerFile
	if !filepath.IsAbs(ledgerPath) {
		ledgerPath = filepath.Join(cfg.DataDir, ledgerPath)
	}
	syncer := remote.NewSyncer(client, store.NewLedgerFile(ledgerPath),
		remote.WithReplaceExisting(cfg.Remote.ReplaceExisting),
		remote.WithLogger(logger),
	)

	a := &application{
		cfg:         cfg,
		logger:      logger,
		state:       st,
		credentials: creds,
		aiEnabled:   analyzer.Enabled(),
	}

	var mirror store.RecordMirror
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("error to connect to Postgres database, mirror disabled", "error", err)
		} else if err := pg.Init(ctx); err != nil {
			logger.Error("error to create tables, mirror disabled", "error", err)
			pg.Close()
		} else {
			a.mirror = pg
			mirror = pg
		}
	}

	extractor := service.NewExtractor(cfg.Loader.CropTop, cfg.Loader.CropBottom, logger)
	a.service = service.New(st, extractor, analyzer, syncer, service.Config{
		DataDir:      cfg.DataDir,
		FolderID:     cfg.Remote.FolderID,
		Concurrency:  cfg.Loader.Concurrency,
		SyncInterval: cfg.Loader.SyncInterval,
		Watch:        cfg.IsDevelopment(),
		Mirror:       mirror,
		Logger:       logger,
	})
	return a, nil
}

// newGenerator returns nil when no usable backend is configured.
func newGenerator(cfg config.LLMConfig, logger *slog.Logger) model.TextGenerator {
	switch {
	case cfg.Provider == config.ProviderOllama:
		logger.Info("using local Ollama for analysis", "model", cfg.OllamaModel)
		return model.NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout)
	case cfg.APIKey != "":
		return model.NewGemini(cfg.BaseURL, cfg.Model, cfg.APIKey, cfg.Timeout)
	default:
		logger.Warn("GEMINI_API_KEY is not set, analyses will use a placeholder")
		return nil
	}
}

func (a *application) Close() {
	if a.mirror != nil {
		a.mirror.Close()
	}
}
