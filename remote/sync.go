package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docsum/store"
	"docsum/types"

	"github.com/google/uuid"
)

// SummarySuffix replaces the source extension in uploaded summary names.
const SummarySuffix = "_summary.txt"

const diagnosticLimit = 20

// SyncReport describes one Sync pass.
type SyncReport struct {
	RunID      string    `json:"runId"`
	FolderID   string    `json:"folderId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Listed     int       `json:"listed"`
	Skipped    int       `json:"skipped"`
	Downloaded []string  `json:"downloaded"`
	Failed     []string  `json:"failed,omitempty"`
}

// Syncer pulls remote files into a local directory and pushes artifacts back.
type Syncer struct {
	drive           Drive
	ledger          *store.LedgerFile
	replaceExisting bool
	logger          *slog.Logger
}

type SyncerOption func(*Syncer)

// WithReplaceExisting makes uploads overwrite a same-name remote entry
// instead of creating another one.
func WithReplaceExisting(replace bool) SyncerOption {
	return func(s *Syncer) { s.replaceExisting = replace }
}

func WithLogger(logger *slog.Logger) SyncerOption {
	return func(s *Syncer) { s.logger = logger }
}

func NewSyncer(drive Drive, ledger *store.LedgerFile, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		drive:  drive,
		ledger: ledger,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync downloads every allow-listed file in folderID that the ledger has not
// seen yet. A file is pulled at most once per remote ID; later remote edits are
// not re-pulled. Per-file download failures are logged and skipped.
func (s *Syncer) Sync(ctx context.Context, folderID, localDir string) (report SyncReport, err error) {
	report = SyncReport{
		RunID:     uuid.NewString(),
		FolderID:  folderID,
		StartedAt: time.Now(),
	}
	defer func() { report.FinishedAt = time.Now() }()

	if folderID == "" {
		s.logger.Warn("[SYNC] no remote folder configured, skipping sync")
		return report, ErrNoFolder
	}

	log := s.logger.With("run", report.RunID, "folder", folderID)
	log.Info("[SYNC] starting")

	files, err := s.drive.List(ctx, Query{FolderID: folderID, MimeTypes: SyncMimeTypes})
	if err != nil {
		switch {
		case IsUnauthorized(err):
			log.Error("[SYNC] credentials rejected by drive", "error", err)
		case IsForbidden(err), IsNotFound(err):
			log.Error("[SYNC] no access to folder; share it with the credential account", "error", err)
		default:
			log.Error("[SYNC] listing remote folder failed", "error", err)
		}
		return report, fmt.Errorf("list folder %s: %w", folderID, err)
	}
	report.Listed = len(files)

	if len(files) == 0 {
		s.diagnose(ctx, log, folderID)
		return report, nil
	}

	if err := os.MkdirAll(localDir, 0755); err != nil {
		return report, fmt.Errorf("create data dir: %w", err)
	}

	ledger := s.ledger.Load()
	added := 0
	for _, f := range files {
		if _, seen := ledger[f.ID]; seen {
			report.Skipped++
			continue
		}

		if err := s.download(ctx, f, localDir); err != nil {
			log.Error("[SYNC] download failed", "file", f.Name, "id", f.ID, "error", err)
			report.Failed = append(report.Failed, f.Name)
			continue
		}

		ledger[f.ID] = types.LedgerEntry{
			Name:              f.Name,
			DownloadedAt:      time.Now(),
			DriveModifiedTime: f.ModifiedTime,
		}
		report.Downloaded = append(report.Downloaded, f.Name)
		added++
		log.Info("[SYNC] downloaded", "file", f.Name, "id", f.ID)
	}

	if added > 0 {
		if err := s.ledger.Save(ledger); err != nil {
			log.Error("[SYNC] saving ledger failed", "error", err)
			return report, err
		}
	}

	log.Info("[SYNC] finished", "listed", report.Listed, "downloaded", added,
		"skipped", report.Skipped, "failed", len(report.Failed))
	return report, nil
}

func (s *Syncer) download(ctx context.Context, f File, localDir string) error {
	name := filepath.Base(f.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return fmt.Errorf("invalid remote file name %q", f.Name)
	}

	tmp, err := os.CreateTemp(localDir, ".download-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := s.drive.Download(ctx, f.ID, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(localDir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// diagnose logs why a folder listing came back empty. It never changes the
// outcome of Sync.
func (s *Syncer) diagnose(ctx context.Context, log *slog.Logger, folderID string) {
	log.Warn("[SYNC] no matching files in folder", "mimeTypes", strings.Join(SyncMimeTypes, ","))

	all, err := s.drive.List(ctx, Query{FolderID: folderID, Limit: diagnosticLimit})
	if err != nil {
		log.Warn("[SYNC][DIAG] listing folder without type filter failed", "error", err)
		return
	}
	if len(all) > 0 {
		found := make([]string, 0, len(all))
		for _, f := range all {
			found = append(found, f.Name+" ("+f.MimeType+")")
		}
		log.Warn("[SYNC][DIAG] folder has files but none of a synced type", "files", strings.Join(found, ", "))
		return
	}

	visible, err := s.drive.List(ctx, Query{Limit: diagnosticLimit})
	if err != nil {
		log.Warn("[SYNC][DIAG] listing files visible to the account failed", "error", err)
		return
	}
	if len(visible) == 0 {
		log.Warn("[SYNC][DIAG] the credential account sees no files at all; share the folder with it")
		return
	}
	log.Warn("[SYNC][DIAG] folder is empty or not shared, but the account can see other files",
		"visible", len(visible))
}

// UploadArtifact stores the local file at localPath in folderID under its base name.
func (s *Syncer) UploadArtifact(ctx context.Context, folderID, localPath, mimeType string) (File, error) {
	if folderID == "" {
		return File{}, ErrNoFolder
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return File{}, fmt.Errorf("read artifact: %w", err)
	}
	return s.put(ctx, folderID, filepath.Base(localPath), mimeType, data)
}

// UploadSummary stores text as a plain-text file named after originalName.
func (s *Syncer) UploadSummary(ctx context.Context, folderID, originalName, text string) (File, error) {
	if folderID == "" {
		return File{}, ErrNoFolder
	}
	return s.put(ctx, folderID, SummaryName(originalName), MimeTypeText, []byte(text))
}

func (s *Syncer) put(ctx context.Context, folderID, name, mimeType string, data []byte) (File, error) {
	if s.replaceExisting {
		existing, err := s.drive.List(ctx, Query{FolderID: folderID, Name: name})
		if err != nil {
			return File{}, fmt.Errorf("look up %s: %w", name, err)
		}
		if len(existing) > 0 {
			f, err := s.drive.Update(ctx, existing[0].ID, mimeType, bytes.NewReader(data))
			if err != nil {
				return File{}, err
			}
			s.logger.Info("[UPLOAD] replaced remote file", "file", name, "id", f.ID)
			return f, nil
		}
	}

	f, err := s.drive.Create(ctx, folderID, name, mimeType, bytes.NewReader(data))
	if err != nil {
		return File{}, err
	}
	s.logger.Info("[UPLOAD] created remote file", "file", name, "id", f.ID)
	return f, nil
}

// DeleteByName deletes every entry in folderID named exactly name and reports
// whether any existed.
func (s *Syncer) DeleteByName(ctx context.Context, folderID, name string) (bool, error) {
	if folderID == "" {
		return false, ErrNoFolder
	}

	files, err := s.drive.List(ctx, Query{FolderID: folderID, Name: name})
	if err != nil {
		return false, fmt.Errorf("look up %s: %w", name, err)
	}

	var errs []error
	for _, f := range files {
		if err := s.drive.Delete(ctx, f.ID); err != nil {
			if IsNotFound(err) {
				s.logger.Info("[DELETE] remote file already gone", "file", name, "id", f.ID)
				continue
			}
			errs = append(errs, err)
			continue
		}
		s.logger.Info("[DELETE] removed remote file", "file", name, "id", f.ID)
	}
	return len(files) > 0, errors.Join(errs...)
}

// SummaryName derives the remote summary file name from a document name.
func SummaryName(originalName string) string {
	return strings.TrimSuffix(originalName, filepath.Ext(originalName)) + SummarySuffix
}
