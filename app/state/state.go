// Package state holds the application state shared by request handlers and
// background tasks: processed records, the initial-sync phase and recent logs.
package state

import (
	"sort"
	"sync"

	"docsum/remote"
	"docsum/types"
)

// SyncPhase tracks the one-time initial sync.
type SyncPhase int

const (
	SyncNotStarted SyncPhase = iota
	SyncInProgress
	SyncDone
)

func (p SyncPhase) String() string {
	switch p {
	case SyncNotStarted:
		return "not_started"
	case SyncInProgress:
		return "in_progress"
	case SyncDone:
		return "done"
	default:
		return "unknown"
	}
}

// SyncOutcome is the result of one sync run.
type SyncOutcome struct {
	Report remote.SyncReport
	Err    error
}

type State struct {
	mu      sync.RWMutex
	results map[string]types.DocumentRecord

	syncMu   sync.Mutex
	phase    SyncPhase
	lastSync *SyncOutcome

	logs *LogBuffer
}

// New returns an empty State whose log buffer keeps the last logLines lines.
func New(logLines int) *State {
	return &State{
		results: make(map[string]types.DocumentRecord),
		logs:    NewLogBuffer(logLines),
	}
}

func (s *State) Logs() *LogBuffer {
	return s.logs
}

// Set stores rec under rec.Name, replacing any previous record.
func (s *State) Set(rec types.DocumentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[rec.Name] = rec
}

func (s *State) Get(name string) (types.DocumentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.results[name]
	return rec, ok
}

// Delete removes name and reports whether it was present.
func (s *State) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.results[name]
	delete(s.results, name)
	return ok
}

// List returns all records, newest first.
func (s *State) List() []types.DocumentRecord {
	s.mu.RLock()
	out := make([]types.DocumentRecord, 0, len(s.results))
	for _, rec := range s.results {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *State) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.results))
	for name := range s.results {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (s *State) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// BeginInitialSync moves the phase from NotStarted to InProgress. Only the
// caller that gets true may run the initial sync.
func (s *State) BeginInitialSync() bool {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	if s.phase != SyncNotStarted {
		return false
	}
	s.phase = SyncInProgress
	return true
}

// FinishInitialSync marks the initial sync done, whatever its outcome.
func (s *State) FinishInitialSync(report remote.SyncReport, err error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.phase = SyncDone
	s.lastSync = &SyncOutcome{Report: report, Err: err}
}

func (s *State) Phase() SyncPhase {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	return s.phase
}

// RecordSync stores the outcome of any later sync run.
func (s *State) RecordSync(report remote.SyncReport, err error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.lastSync = &SyncOutcome{Report: report, Err: err}
}

// LastSync returns the most recent sync report, if any sync has run.
func (s *State) LastSync() (SyncOutcome, bool) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	if s.lastSync == nil {
		return SyncOutcome{}, false
	}
	return *s.lastSync, true
}
