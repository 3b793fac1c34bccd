package state

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"docsum/remote"
	"docsum/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResults(t *testing.T) {
	s := New(10)
	now := time.Now()
	s.Set(types.DocumentRecord{Name: "old.pdf", Timestamp: now.Add(-time.Hour)})
	s.Set(types.DocumentRecord{Name: "new.pdf", Timestamp: now})

	rec, ok := s.Get("old.pdf")
	require.True(t, ok)
	assert.Equal(t, "old.pdf", rec.Name)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "new.pdf", list[0].Name)
	assert.Equal(t, []string{"new.pdf", "old.pdf"}, s.Names())

	assert.True(t, s.Delete("old.pdf"))
	assert.False(t, s.Delete("old.pdf"))
	_, ok = s.Get("old.pdf")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Count())
}

func TestInitialSyncRunsOnce(t *testing.T) {
	s := New(10)
	assert.Equal(t, SyncNotStarted, s.Phase())

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.BeginInitialSync() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, SyncInProgress, s.Phase())

	_, ok := s.LastSync()
	assert.False(t, ok)

	boom := errors.New("boom")
	s.FinishInitialSync(remote.SyncReport{FolderID: "f"}, boom)
	assert.Equal(t, SyncDone, s.Phase())
	assert.False(t, s.BeginInitialSync())

	last, ok := s.LastSync()
	require.True(t, ok)
	assert.Equal(t, "f", last.Report.FolderID)
	assert.ErrorIs(t, last.Err, boom)

	s.RecordSync(remote.SyncReport{FolderID: "g"}, nil)
	last, _ = s.LastSync()
	assert.Equal(t, "g", last.Report.FolderID)
	assert.NoError(t, last.Err)
	assert.Equal(t, "done", s.Phase().String())
}

func TestLogBufferKeepsLastLines(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(b, "line %d\n", i)
	}
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, b.Lines())
}

func TestLogBufferJoinsPartialWrites(t *testing.T) {
	b := NewLogBuffer(5)
	_, _ = b.Write([]byte("hel"))
	assert.Empty(t, b.Lines())
	_, _ = b.Write([]byte("lo\r\nworld\nrest"))
	assert.Equal(t, []string{"hello", "world"}, b.Lines())
}
