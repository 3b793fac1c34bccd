package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"docsum/types"
)

// ErrCacheMiss is returned when no sidecar exists for a document.
var ErrCacheMiss = errors.New("cache miss")

// CorruptCacheError means a sidecar exists but could not be decoded.
type CorruptCacheError struct {
	Path string
	Err  error
}

func (e *CorruptCacheError) Error() string {
	return fmt.Sprintf("corrupt cache file %s: %v", e.Path, e.Err)
}

func (e *CorruptCacheError) Unwrap() error { return e.Err }

// SidecarPath returns the cache file path for a source document path.
func SidecarPath(sourcePath string) string {
	return sourcePath + types.SidecarExt
}

// LoadSidecar reads the cached record for sourcePath. It returns ErrCacheMiss
// when the sidecar does not exist and *CorruptCacheError when it does not parse.
func LoadSidecar(sourcePath string) (types.DocumentRecord, error) {
	var rec types.DocumentRecord

	path := SidecarPath(sourcePath)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return rec, ErrCacheMiss
	}
	if err != nil {
		return rec, fmt.Errorf("read cache file: %w", err)
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, &CorruptCacheError{Path: path, Err: err}
	}
	if rec.Name == "" {
		return rec, &CorruptCacheError{Path: path, Err: errors.New("record has no name")}
	}
	return rec, nil
}

// SaveSidecar writes rec next to sourcePath and returns the sidecar path.
func SaveSidecar(sourcePath string, rec types.DocumentRecord) (string, error) {
	path := SidecarPath(sourcePath)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("write cache file: %w", err)
	}
	return path, nil
}

// writeFileAtomic writes through a temp file in the same directory and renames
// it into place so readers never observe a half-written sidecar.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// RemoveIfExists deletes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
