package logger

import (
	"strings"
	"sync"
)

const defaultBufferLines = 1000

// LogBuffer keeps the most recent log lines in memory for the /logs endpoint.
// It is an io.Writer so it can sit behind a ConsoleLogger.
type LogBuffer struct {
	lines []string
	limit int
	mu    sync.Mutex
}

// NewLogBuffer creates a buffer holding at most limit lines (1000 if limit <= 0).
func NewLogBuffer(limit int) *LogBuffer {
	if limit <= 0 {
		limit = defaultBufferLines
	}
	return &LogBuffer{lines: make([]string, 0, limit), limit: limit}
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, strings.TrimRight(string(p), "\n"))
	if len(lb.lines) > lb.limit {
		lb.lines = lb.lines[len(lb.lines)-lb.limit:]
	}
	return len(p), nil
}

// Lines returns a copy of the buffered lines, oldest first.
func (lb *LogBuffer) Lines() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}
