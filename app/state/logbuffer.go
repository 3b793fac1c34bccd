package state

import (
	"bytes"
	"strings"
	"sync"
)

// LogBuffer is an io.Writer that keeps the last N complete lines written to it.
type LogBuffer struct {
	mu      sync.Mutex
	lines   []string
	next    int
	full    bool
	partial []byte
}

func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = 100
	}
	return &LogBuffer{lines: make([]string, size)}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := p
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			b.partial = append(b.partial, data...)
			break
		}
		b.partial = append(b.partial, data[:i]...)
		b.push(strings.TrimRight(string(b.partial), "\r"))
		b.partial = b.partial[:0]
		data = data[i+1:]
	}
	return len(p), nil
}

func (b *LogBuffer) push(line string) {
	b.lines[b.next] = line
	b.next = (b.next + 1) % len(b.lines)
	if b.next == 0 {
		b.full = true
	}
}

// Lines returns the buffered lines, oldest first.
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		return append([]string(nil), b.lines[:b.next]...)
	}
	out := make([]string, 0, len(b.lines))
	out = append(out, b.lines[b.next:]...)
	return append(out, b.lines[:b.next]...)
}
