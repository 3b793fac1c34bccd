package remote

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docsum/store"
	"docsum/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

const folder = "folder-1"

func newTestSyncer(t *testing.T, d Drive, opts ...SyncerOption) (*Syncer, *store.LedgerFile, string) {
	t.Helper()
	dir := t.TempDir()
	ledger := store.NewLedgerFile(filepath.Join(dir, "downloaded_files.json"))
	return NewSyncer(d, ledger, opts...), ledger, dir
}

func TestSync_EmptyFolderIDIsNoop(t *testing.T) {
	d := newFakeDrive()
	s, _, dir := newTestSyncer(t, d)

	report, err := s.Sync(context.Background(), "", dir)

	assert.ErrorIs(t, err, ErrNoFolder)
	assert.Empty(t, report.Downloaded)
	assert.Empty(t, d.queries)
}

func TestSync_DownloadsNewFilesOnce(t *testing.T) {
	d := newFakeDrive(
		File{ID: "X", Name: "a.pdf", MimeType: MimeTypePDF, Parents: []string{folder}, ModifiedTime: "2026-01-01T00:00:00Z"},
		File{ID: "S", Name: "a.pdf.json", MimeType: MimeTypeJSON, Parents: []string{folder}},
		File{ID: "T", Name: "notes.txt", MimeType: MimeTypeText, Parents: []string{folder}},
		File{ID: "Z", Name: "gone.pdf", MimeType: MimeTypePDF, Parents: []string{folder}, Trashed: true},
	)
	s, ledger, dir := newTestSyncer(t, d)

	report, err := s.Sync(context.Background(), folder, dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.pdf", "a.pdf.json"}, report.Downloaded)
	assert.FileExists(t, filepath.Join(dir, "a.pdf"))
	assert.FileExists(t, filepath.Join(dir, "a.pdf.json"))
	assert.NoFileExists(t, filepath.Join(dir, "notes.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "gone.pdf"))

	entries := ledger.Load()
	require.Len(t, entries, 2)
	assert.Equal(t, "2026-01-01T00:00:00Z", entries["X"].DriveModifiedTime)

	report, err = s.Sync(context.Background(), folder, dir)
	require.NoError(t, err)
	assert.Empty(t, report.Downloaded)
	assert.Equal(t, 2, report.Skipped)
	assert.Len(t, d.downs, 2)
}

func TestSync_LedgerDedup(t *testing.T) {
	d := newFakeDrive(File{ID: "X", Name: "old.pdf", MimeType: MimeTypePDF, Parents: []string{folder}})
	s, ledger, dir := newTestSyncer(t, d)
	require.NoError(t, ledger.Save(types.Ledger{"X": {Name: "old.pdf", DownloadedAt: time.Now()}}))
	before, err := os.ReadFile(ledger.Path())
	require.NoError(t, err)

	report, err := s.Sync(context.Background(), folder, dir)
	require.NoError(t, err)
	assert.Empty(t, d.downs)
	assert.Empty(t, report.Downloaded)

	after, err := os.ReadFile(ledger.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after, "ledger is not rewritten when nothing was downloaded")

	d.files = append(d.files, File{ID: "Y", Name: "new.pdf", MimeType: MimeTypePDF, Parents: []string{folder}})
	d.content["Y"] = []byte("%PDF")

	report, err = s.Sync(context.Background(), folder, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Y"}, d.downs)
	assert.Equal(t, []string{"new.pdf"}, report.Downloaded)
	entries := ledger.Load()
	assert.Len(t, entries, 2)
	assert.Contains(t, entries, "Y")
}

func TestSync_RemoteEditIsNotRepulled(t *testing.T) {
	d := newFakeDrive(File{ID: "X", Name: "a.pdf", MimeType: MimeTypePDF, Parents: []string{folder}, ModifiedTime: "t1"})
	s, _, dir := newTestSyncer(t, d)

	_, err := s.Sync(context.Background(), folder, dir)
	require.NoError(t, err)

	d.files[0].ModifiedTime = "t2"
	d.content["X"] = []byte("edited")

	report, err := s.Sync(context.Background(), folder, dir)
	require.NoError(t, err)
	assert.Empty(t, report.Downloaded)
	assert.Len(t, d.downs, 1)
}

func TestSync_DownloadFailureContinues(t *testing.T) {
	d := newFakeDrive(
		File{ID: "bad", Name: "bad.pdf", MimeType: MimeTypePDF, Parents: []string{folder}},
		File{ID: "good", Name: "good.pdf", MimeType: MimeTypePDF, Parents: []string{folder}},
	)
	d.failIDs["bad"] = true
	s, ledger, dir := newTestSyncer(t, d)

	report, err := s.Sync(context.Background(), folder, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"good.pdf"}, report.Downloaded)
	assert.Equal(t, []string{"bad.pdf"}, report.Failed)
	assert.NotContains(t, ledger.Load(), "bad")
	assert.NoFileExists(t, filepath.Join(dir, "bad.pdf"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".download-")
	}
}

func TestSync_ListErrorIsReturned(t *testing.T) {
	d := newFakeDrive()
	d.listErr = errors.New("boom")
	s, _, dir := newTestSyncer(t, d)

	_, err := s.Sync(context.Background(), folder, dir)
	assert.Error(t, err)
}

func TestSync_NullLedgerStillDownloads(t *testing.T) {
	d := newFakeDrive(File{ID: "X", Name: "a.pdf", MimeType: MimeTypePDF, Parents: []string{folder}})
	s, ledger, dir := newTestSyncer(t, d)
	require.NoError(t, os.WriteFile(ledger.Path(), []byte("null"), 0o644))

	report, err := s.Sync(context.Background(), folder, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, report.Downloaded)
	assert.Contains(t, ledger.Load(), "X")
}

func TestSync_ListAccessErrorsAreLogged(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog string
	}{
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, "credentials rejected"},
		{"forbidden", WrapError(&googleapi.Error{Code: http.StatusForbidden}), "no access to folder"},
		{"not found", ErrNotFound, "no access to folder"},
		{"other", errors.New("boom"), "listing remote folder failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDrive()
			d.listErr = tt.err
			var buf bytes.Buffer
			s, _, dir := newTestSyncer(t, d, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

			_, err := s.Sync(context.Background(), folder, dir)
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, buf.String(), tt.wantLog)
		})
	}
}

func TestSync_EmptyFolderRunsDiagnostics(t *testing.T) {
	d := newFakeDrive(File{ID: "o", Name: "elsewhere.pdf", MimeType: MimeTypePDF, Parents: []string{"other"}})
	var buf bytes.Buffer
	s, _, dir := newTestSyncer(t, d, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	report, err := s.Sync(context.Background(), folder, dir)
	require.NoError(t, err)
	assert.Empty(t, report.Downloaded)

	require.Len(t, d.queries, 3)
	assert.Equal(t, folder, d.queries[1].FolderID)
	assert.Empty(t, d.queries[1].MimeTypes)
	assert.Empty(t, d.queries[2].FolderID)
	assert.Contains(t, buf.String(), "account can see other files")
}

func TestUploadArtifact_CreateOnly(t *testing.T) {
	d := newFakeDrive()
	s, _, dir := newTestSyncer(t, d, WithReplaceExisting(false))
	path := filepath.Join(dir, "a.pdf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"a.pdf"}`), 0o644))

	_, err := s.UploadArtifact(context.Background(), folder, path, MimeTypeJSON)
	require.NoError(t, err)
	_, err = s.UploadArtifact(context.Background(), folder, path, MimeTypeJSON)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.pdf.json", "a.pdf.json"}, d.creates)
}

func TestUploadArtifact_ReplaceExisting(t *testing.T) {
	d := newFakeDrive()
	s, _, dir := newTestSyncer(t, d, WithReplaceExisting(true))
	path := filepath.Join(dir, "a.pdf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"a.pdf"}`), 0o644))

	first, err := s.UploadArtifact(context.Background(), folder, path, MimeTypeJSON)
	require.NoError(t, err)
	second, err := s.UploadArtifact(context.Background(), folder, path, MimeTypeJSON)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, d.creates, 1)
	assert.Equal(t, []string{first.ID}, d.updates)
}

func TestUploadSummary(t *testing.T) {
	d := newFakeDrive()
	s, _, _ := newTestSyncer(t, d)

	f, err := s.UploadSummary(context.Background(), folder, "report.pdf", "the summary")
	require.NoError(t, err)
	assert.Equal(t, "report_summary.txt", f.Name)
	assert.Equal(t, MimeTypeText, f.MimeType)
	assert.Equal(t, "the summary", string(d.content[f.ID]))

	_, err = s.UploadSummary(context.Background(), "", "report.pdf", "x")
	assert.ErrorIs(t, err, ErrNoFolder)
}

func TestDeleteByName(t *testing.T) {
	d := newFakeDrive(
		File{ID: "1", Name: "a.pdf", MimeType: MimeTypePDF, Parents: []string{folder}},
		File{ID: "2", Name: "a.pdf", MimeType: MimeTypePDF, Parents: []string{folder}},
		File{ID: "3", Name: "b.pdf", MimeType: MimeTypePDF, Parents: []string{folder}},
	)
	s, _, _ := newTestSyncer(t, d)

	found, err := s.DeleteByName(context.Background(), folder, "a.pdf")
	require.NoError(t, err)
	assert.True(t, found)
	assert.ElementsMatch(t, []string{"1", "2"}, d.deletes)

	found, err = s.DeleteByName(context.Background(), folder, "missing.pdf")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteByName_AlreadyGoneIsNotAnError(t *testing.T) {
	d := newFakeDrive(File{ID: "1", Name: "a.pdf", MimeType: MimeTypePDF, Parents: []string{folder}})
	s, _, _ := newTestSyncer(t, d)

	d.delErr = WrapError(&googleapi.Error{Code: http.StatusNotFound})
	found, err := s.DeleteByName(context.Background(), folder, "a.pdf")
	require.NoError(t, err)
	assert.True(t, found)

	d.delErr = errors.New("quota")
	_, err = s.DeleteByName(context.Background(), folder, "a.pdf")
	assert.Error(t, err)
}

func TestSummaryName(t *testing.T) {
	assert.Equal(t, "report_summary.txt", SummaryName("report.pdf"))
	assert.Equal(t, "archive.tar_summary.txt", SummaryName("archive.tar.gz"))
	assert.Equal(t, "README_summary.txt", SummaryName("README"))
}

func TestQueryString(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{
			name: "folder with allow-list",
			q:    Query{FolderID: "f1", MimeTypes: SyncMimeTypes},
			want: "'f1' in parents and (mimeType = 'application/pdf' or mimeType = 'application/json') and trashed = false",
		},
		{
			name: "name lookup escapes quotes",
			q:    Query{FolderID: "f1", Name: "it's.pdf"},
			want: `'f1' in parents and name = 'it\'s.pdf' and trashed = false`,
		},
		{
			name: "everything visible",
			q:    Query{},
			want: "trashed = false",
		},
		{
			name: "single type including trash",
			q:    Query{MimeTypes: []string{MimeTypePDF}, IncludeTrashed: true},
			want: "mimeType = 'application/pdf'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.String())
		})
	}
}
