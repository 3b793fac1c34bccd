package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docsum/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSidecarRoundTrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "report.pdf")
	rec := types.DocumentRecord{
		Name:        "report.pdf",
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		TextPreview: "hello...",
		Analysis:    "summary",
	}

	path, err := SaveSidecar(src, rec)
	require.NoError(t, err)
	assert.Equal(t, src+".json", path)

	got, err := LoadSidecar(src)
	require.NoError(t, err)
	assert.Equal(t, rec.Name, got.Name)
	assert.True(t, rec.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, rec.Analysis, got.Analysis)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields, "textPreview")
	assert.NotContains(t, fields, "type")
}

func TestLoadSidecar_Missing(t *testing.T) {
	_, err := LoadSidecar(filepath.Join(t.TempDir(), "nothing.pdf"))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLoadSidecar_Corrupt(t *testing.T) {
	src := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(src+".json", []byte("{not json"), 0o644))

	_, err := LoadSidecar(src)
	var corrupt *CorruptCacheError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, src+".json", corrupt.Path)
}

func TestLoadSidecar_EmptyObjectIsCorrupt(t *testing.T) {
	src := filepath.Join(t.TempDir(), "empty.pdf")
	require.NoError(t, os.WriteFile(src+".json", []byte("{}"), 0o644))

	_, err := LoadSidecar(src)
	var corrupt *CorruptCacheError
	assert.ErrorAs(t, err, &corrupt)
}

func TestRemoveIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	assert.NoError(t, RemoveIfExists(path))
	assert.NoFileExists(t, path)
	assert.NoError(t, RemoveIfExists(path))
}
