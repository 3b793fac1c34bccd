package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"docsum/app/agent"
	"docsum/app/state"
	"docsum/loader/internal"
	"docsum/remote"
	"docsum/store"
	"docsum/types"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownDocument is returned for names with no record in memory.
	ErrUnknownDocument = errors.New("unknown document")

	// ErrInProgress is returned when the same file is already being processed.
	ErrInProgress = errors.New("document is already being processed")

	ErrInvalidName = errors.New("invalid document name")
)

// Outcome says whether ProcessFile did the work or reused the sidecar cache.
type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeCached
)

func (o Outcome) String() string {
	if o == OutcomeCached {
		return "cached"
	}
	return "processed"
}

type Extractor interface {
	ExtractPDF(ctx context.Context, path string) (string, error)
	ExtractURL(ctx context.Context, rawURL string) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, text, label string) agent.Result
}

// Remote is the slice of remote.Syncer the service depends on.
type Remote interface {
	Sync(ctx context.Context, folderID, localDir string) (remote.SyncReport, error)
	UploadArtifact(ctx context.Context, folderID, localPath, mimeType string) (remote.File, error)
	UploadSummary(ctx context.Context, folderID, originalName, text string) (remote.File, error)
	DeleteByName(ctx context.Context, folderID, name string) (bool, error)
}

type Config struct {
	DataDir      string
	FolderID     string
	Concurrency  int
	SyncInterval time.Duration
	// Watch enables the filesystem watcher and the immediate startup sync.
	Watch  bool
	Mirror store.RecordMirror
	Logger *slog.Logger
}

type Service struct {
	cfg       Config
	logger    *slog.Logger
	state     *state.State
	extractor Extractor
	analyzer  Analyzer
	remote    Remote
	mirror    store.RecordMirror

	FileMutex       sync.Mutex
	FilesProcessing map[string]bool
}

func New(st *state.State, extractor Extractor, analyzer Analyzer, rm Remote, cfg Config) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:             cfg,
		logger:          logger,
		state:           st,
		extractor:       extractor,
		analyzer:        analyzer,
		remote:          rm,
		mirror:          cfg.Mirror,
		FilesProcessing: make(map[string]bool),
	}
}

// NewExtractor returns the PDF and web page extractor used in production.
func NewExtractor(cropTop, cropBottom float64, logger *slog.Logger) Extractor {
	return internal.NewExtractor(
		internal.WithCrop(cropTop, cropBottom),
		internal.WithExtractorLogger(logger),
	)
}

func (s *Service) State() *state.State {
	return s.state
}

func (s *Service) DataDir() string {
	return s.cfg.DataDir
}

func (s *Service) FolderID() string {
	return s.cfg.FolderID
}

func (s *Service) begin(path string) bool {
	s.FileMutex.Lock()
	defer s.FileMutex.Unlock()
	if s.FilesProcessing[path] {
		return false
	}
	s.FilesProcessing[path] = true
	return true
}

func (s *Service) finish(path string) {
	s.FileMutex.Lock()
	delete(s.FilesProcessing, path)
	s.FileMutex.Unlock()
}

// ProcessFile produces the record for the source file at path. A readable
// sidecar short-circuits extraction and analysis; an unreadable one is
// treated as missing.
func (s *Service) ProcessFile(ctx context.Context, path string) (types.DocumentRecord, Outcome, error) {
	name := filepath.Base(path)
	log := s.logger.With("file", name)

	if !s.begin(path) {
		log.Info("[PROCESS] already in progress, skipping")
		return types.DocumentRecord{}, OutcomeProcessed, ErrInProgress
	}
	defer s.finish(path)

	rec, err := store.LoadSidecar(path)
	switch {
	case err == nil:
		s.state.Set(rec)
		log.Info("[CACHE] loaded cached result")
		return rec, OutcomeCached, nil
	case errors.Is(err, store.ErrCacheMiss):
	default:
		log.Warn("[CACHE] unreadable cache file, reprocessing", "error", err)
	}

	log.Info("[PROCESS] extracting text")
	text, err := s.extractor.ExtractPDF(ctx, path)
	if err != nil {
		log.Error("[PROCESS] extraction failed", "error", err)
		return types.DocumentRecord{}, OutcomeProcessed, fmt.Errorf("extract %s: %w", name, err)
	}

	res := s.analyzer.Analyze(ctx, text, name)
	if res.Failed() {
		log.Warn("[PROCESS] analysis failed, storing placeholder", "error", res.Err)
	}

	rec = types.NewDocumentRecord(name, text, res.Text, types.RecordFile)
	s.state.Set(rec)

	sidecar, err := store.SaveSidecar(path, rec)
	if err != nil {
		log.Error("[CACHE] writing cache file failed", "error", err)
	} else {
		log.Info("[CACHE] saved", "path", sidecar)
		s.uploadSidecar(ctx, log, sidecar)
	}

	s.mirrorSave(ctx, rec)
	log.Info("[PROCESS] done")
	return rec, OutcomeProcessed, nil
}

func (s *Service) uploadSidecar(ctx context.Context, log *slog.Logger, sidecar string) {
	if s.cfg.FolderID == "" {
		return
	}
	f, err := s.remote.UploadArtifact(ctx, s.cfg.FolderID, sidecar, remote.MimeTypeJSON)
	if err != nil {
		log.Error("[UPLOAD] cache upload failed, keeping local copy", "error", err)
		return
	}
	log.Info("[UPLOAD] cache uploaded", "id", f.ID)
}

// ProcessURL extracts and analyzes a web page. URL results are kept in memory
// only and recomputed on every call.
func (s *Service) ProcessURL(ctx context.Context, rawURL string) (types.DocumentRecord, error) {
	log := s.logger.With("url", rawURL)
	log.Info("[PROCESS] fetching url")

	text, err := s.extractor.ExtractURL(ctx, rawURL)
	if err != nil {
		log.Error("[PROCESS] url extraction failed", "error", err)
		return types.DocumentRecord{}, fmt.Errorf("extract %s: %w", rawURL, err)
	}

	res := s.analyzer.Analyze(ctx, text, rawURL)
	if res.Failed() {
		log.Warn("[PROCESS] analysis failed, storing placeholder", "error", res.Err)
	}

	rec := types.NewDocumentRecord(rawURL, text, res.Text, types.RecordURL)
	s.state.Set(rec)
	s.mirrorSave(ctx, rec)
	return rec, nil
}

// Delete removes name from memory, the data directory and the remote folder,
// both the source and its sidecar. Every step is attempted; failures are joined.
// URL records only live in memory.
func (s *Service) Delete(ctx context.Context, name string) error {
	if rec, ok := s.state.Get(name); ok && rec.Type == types.RecordURL {
		s.state.Delete(name)
		s.mirrorDelete(ctx, name)
		return nil
	}
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	log := s.logger.With("file", name)

	if !s.state.Delete(name) {
		log.Info("[DELETE] no result in memory")
	}

	var errs []error
	src := filepath.Join(s.cfg.DataDir, name)
	for _, p := range []string{src, store.SidecarPath(src)} {
		if err := store.RemoveIfExists(p); err != nil {
			log.Error("[DELETE] removing local file failed", "path", p, "error", err)
			errs = append(errs, err)
		}
	}

	if s.cfg.FolderID != "" {
		for _, remoteName := range []string{name, types.SidecarName(name)} {
			found, err := s.remote.DeleteByName(ctx, s.cfg.FolderID, remoteName)
			if err != nil {
				log.Error("[DELETE] removing remote file failed", "remote", remoteName, "error", err)
				errs = append(errs, err)
				continue
			}
			if !found {
				log.Info("[DELETE] nothing to remove remotely", "remote", remoteName)
			}
		}
	}

	s.mirrorDelete(ctx, name)
	return errors.Join(errs...)
}

// SaveToDrive uploads the analysis of name as a plain-text summary.
func (s *Service) SaveToDrive(ctx context.Context, name string) (remote.File, error) {
	rec, ok := s.state.Get(name)
	if !ok {
		return remote.File{}, fmt.Errorf("%w: %s", ErrUnknownDocument, name)
	}
	if s.cfg.FolderID == "" {
		return remote.File{}, remote.ErrNoFolder
	}
	f, err := s.remote.UploadSummary(ctx, s.cfg.FolderID, rec.Name, rec.Analysis)
	if err != nil {
		s.logger.Error("[UPLOAD] summary upload failed", "file", name, "error", err)
		return remote.File{}, err
	}
	return f, nil
}

func (s *Service) mirrorSave(ctx context.Context, rec types.DocumentRecord) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.SaveRecord(ctx, rec); err != nil {
		s.logger.Error("[MIRROR] save failed", "name", rec.Name, "error", err)
	}
}

func (s *Service) mirrorDelete(ctx context.Context, name string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.DeleteRecord(ctx, name); err != nil {
		s.logger.Error("[MIRROR] delete failed", "name", name, "error", err)
	}
}

// ScanSummary counts what one Scan pass did.
type ScanSummary struct {
	Seen      int `json:"seen"`
	Processed int `json:"processed"`
	Cached    int `json:"cached"`
	Failed    int `json:"failed"`
}

// Scan runs ProcessFile for every source file in the data directory, at most
// Concurrency at a time. Per-file failures are counted, not returned.
func (s *Service) Scan(ctx context.Context) (ScanSummary, error) {
	var summary ScanSummary

	entries, err := os.ReadDir(s.cfg.DataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return summary, nil
		}
		return summary, fmt.Errorf("read data dir: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !types.IsSource(e.Name()) {
			continue
		}
		path := filepath.Join(s.cfg.DataDir, e.Name())
		summary.Seen++

		g.Go(func() error {
			_, outcome, err := s.ProcessFile(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrInProgress):
			case err != nil:
				summary.Failed++
			case outcome == OutcomeCached:
				summary.Cached++
			default:
				summary.Processed++
			}
			return nil
		})
	}

	_ = g.Wait()
	s.logger.Info("[SCAN] finished", "seen", summary.Seen, "processed", summary.Processed,
		"cached", summary.Cached, "failed", summary.Failed)
	return summary, ctx.Err()
}

// Resync pulls new remote files and then scans the data directory. A missing
// folder configuration skips the pull but still scans.
func (s *Service) Resync(ctx context.Context) (remote.SyncReport, error) {
	report, err := s.remote.Sync(ctx, s.cfg.FolderID, s.cfg.DataDir)
	s.state.RecordSync(report, err)
	if err != nil && !errors.Is(err, remote.ErrNoFolder) {
		s.logger.Error("[SYNC] sync failed", "error", err)
	}

	if _, scanErr := s.Scan(ctx); scanErr != nil {
		return report, scanErr
	}
	if errors.Is(err, remote.ErrNoFolder) {
		return report, nil
	}
	return report, err
}

// InitialSync runs the first sync and scan exactly once per process. Callers
// that lose the race return immediately.
func (s *Service) InitialSync(ctx context.Context) {
	if !s.state.BeginInitialSync() {
		return
	}
	s.logger.Info("[SYNC] initial sync started")
	report, err := s.remote.Sync(ctx, s.cfg.FolderID, s.cfg.DataDir)
	s.state.FinishInitialSync(report, err)
	if err != nil && !errors.Is(err, remote.ErrNoFolder) {
		s.logger.Error("[SYNC] initial sync failed", "error", err)
	}
	if _, err := s.Scan(ctx); err != nil {
		s.logger.Error("[SCAN] scan after initial sync failed", "error", err)
	}
}

func (s *Service) Stop() {
	s.logger.Info("Loader Service stopped")
}

// Run starts the background triggers and blocks until ctx is cancelled:
// the startup scan (with an immediate sync when watching), the filesystem
// watcher and the periodic resync.
func (s *Service) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if s.cfg.Watch {
			s.InitialSync(ctx)
			return
		}
		if _, err := s.Scan(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("[SCAN] startup scan failed", "error", err)
		}
	}()

	if s.cfg.Watch {
		fileChan := make(chan string, 10)
		watcher := internal.NewWatcher(s.cfg.DataDir, internal.DefaultSettle, s.logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(fileChan)
			if err := watcher.Watch(ctx, fileChan); err != nil {
				s.logger.Error("[WATCH] watcher failed", "error", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileChan {
				if _, _, err := s.ProcessFile(ctx, path); err != nil && !errors.Is(err, ErrInProgress) {
					s.logger.Error("[WATCH] processing failed", "file", path, "error", err)
				}
			}
		}()
	}

	if s.cfg.SyncInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(s.cfg.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.logger.Info("[SYNC] periodic resync")
					if _, err := s.Resync(ctx); err != nil && ctx.Err() == nil {
						s.logger.Error("[SYNC] periodic resync failed", "error", err)
					}
				}
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All goroutines stopped successfully")
	case <-shutdownCtx.Done():
		s.logger.Warn("Timeout waiting for goroutines to stop, forcing shutdown")
	}

	s.Stop()
	return nil
}
