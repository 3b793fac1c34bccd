package api

import (
	"os"
	"sort"

	"docsum/app/state"
	"docsum/remote"

	"github.com/gofiber/fiber/v2"
)

// DebugInfo is the static part of the debug snapshot.
type DebugInfo struct {
	Mode         string
	DataDir      string
	FolderID     string
	AIConfigured bool
	Credentials  remote.CredentialStatus
}

type DebugHandler struct {
	docs  Documents
	state *state.State
	info  DebugInfo
}

func NewDebugHandler(docs Documents, st *state.State, info DebugInfo) *DebugHandler {
	return &DebugHandler{
		docs:  docs,
		state: st,
		info:  info,
	}
}

type SyncSnapshot struct {
	Phase  string             `json:"phase"`
	Last   *remote.SyncReport `json:"last,omitempty"`
	Error  string             `json:"error,omitempty"`
	Forced bool               `json:"forced"`
}

type DebugSnapshot struct {
	Mode           string                  `json:"mode"`
	DataDir        string                  `json:"dataDir"`
	DataDirFiles   []string                `json:"dataDirFiles"`
	DataDirError   string                  `json:"dataDirError,omitempty"`
	FolderID       string                  `json:"folderId"`
	AIConfigured   bool                    `json:"aiConfigured"`
	Credentials    remote.CredentialStatus `json:"credentials"`
	ProcessedCount int                     `json:"processedCount"`
	ProcessedFiles []string                `json:"processedFiles"`
	Sync           SyncSnapshot            `json:"sync"`
	Logs           []string                `json:"logs"`
}

// HandleDebug reports the service state. With forceSync=true it runs a full
// resync before answering.
func (h *DebugHandler) HandleDebug(c *fiber.Ctx) error {
	forced := c.QueryBool("forceSync", false)
	var syncErr error
	if forced {
		_, syncErr = h.docs.Resync(c.UserContext())
	}

	snap := DebugSnapshot{
		Mode:           h.info.Mode,
		DataDir:        h.info.DataDir,
		DataDirFiles:   []string{},
		FolderID:       h.info.FolderID,
		AIConfigured:   h.info.AIConfigured,
		Credentials:    h.info.Credentials,
		ProcessedCount: h.state.Count(),
		ProcessedFiles: h.state.Names(),
		Sync: SyncSnapshot{
			Phase:  h.state.Phase().String(),
			Forced: forced,
		},
		Logs: h.state.Logs().Lines(),
	}

	entries, err := os.ReadDir(h.info.DataDir)
	if err != nil {
		snap.DataDirError = err.Error()
	}
	for _, e := range entries {
		snap.DataDirFiles = append(snap.DataDirFiles, e.Name())
	}
	sort.Strings(snap.DataDirFiles)

	if last, ok := h.state.LastSync(); ok {
		snap.Sync.Last = &last.Report
		if last.Err != nil {
			snap.Sync.Error = last.Err.Error()
		}
	}
	if syncErr != nil {
		snap.Sync.Error = syncErr.Error()
	}

	return c.JSON(snap)
}
