package types

import (
	"strings"
	"time"
)

// RecordType discriminates how a record was produced. Empty means a local file.
type RecordType string

const (
	RecordFile RecordType = ""
	RecordURL  RecordType = "url"
)

const (
	PreviewLength = 200
	PreviewSuffix = "..."
)

// DocumentRecord is the processed result for one local file or URL. It is the
// body of the sidecar cache file and of the /api/results payload.
type DocumentRecord struct {
	Name        string     `json:"name"`
	Timestamp   time.Time  `json:"timestamp"`
	TextPreview string     `json:"textPreview"`
	Analysis    string     `json:"analysis"`
	Type        RecordType `json:"type,omitempty"`
}

func NewDocumentRecord(name, text, analysis string, kind RecordType) DocumentRecord {
	return DocumentRecord{
		Name:        name,
		Timestamp:   time.Now(),
		TextPreview: Preview(text),
		Analysis:    analysis,
		Type:        kind,
	}
}

// Preview returns the first PreviewLength characters of text followed by PreviewSuffix.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) > PreviewLength {
		runes = runes[:PreviewLength]
	}
	return string(runes) + PreviewSuffix
}

// LedgerEntry records one remote file pulled into the data directory.
type LedgerEntry struct {
	Name              string    `json:"name"`
	DownloadedAt      time.Time `json:"downloadedAt"`
	DriveModifiedTime string    `json:"driveModifiedTime"`
}

// Ledger maps a remote file identifier to its download entry.
type Ledger map[string]LedgerEntry

const (
	SourceExt  = ".pdf"
	SidecarExt = ".json"
)

// SidecarName returns the cache file name for a source document.
func SidecarName(name string) string {
	return name + SidecarExt
}

// IsSource reports whether name has a recognized source extension.
func IsSource(name string) bool {
	return strings.EqualFold(extOf(name), SourceExt)
}

// IsSidecar reports whether name is a sidecar cache file.
func IsSidecar(name string) bool {
	return strings.EqualFold(extOf(name), SidecarExt)
}

func extOf(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return name[i:]
}
