package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultLogFile is the file FileLogger appends to when no path is given.
const DefaultLogFile = "perfkit.log"

// FileLogger is an ExecutionLogger that appends comma separated lines of
// the form
//
//	<id>,<latency or elapsed ms>,<invocation count>,<start epoch ms>
//
// For invocation lines the count is the running count of the id; the
// summary line written at completion carries the elapsed time and total.
type FileLogger struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	counts map[string]int64
}

// NewFileLogger opens path for appending, creating it when needed.
func NewFileLogger(path string) (*FileLogger, error) {
	if path == "" {
		path = DefaultLogFile
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open execution log: %w", err)
	}
	l := NewWriterLogger(f)
	l.closer = f
	return l, nil
}

// NewWriterLogger creates a FileLogger that writes to w.
func NewWriterLogger(w io.Writer) *FileLogger {
	return &FileLogger{
		w:      bufio.NewWriter(w),
		counts: make(map[string]int64),
	}
}

// LogInvocation implements ExecutionLogger.
func (l *FileLogger) LogInvocation(id string, latency int, startMillis int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[id]++
	fmt.Fprintf(l.w, "%s,%d,%d,%d\n", id, latency, l.counts[id], startMillis)
}

// LogSummary implements ExecutionLogger. Buffered lines are flushed.
func (l *FileLogger) LogSummary(id string, elapsedMillis, invocations, startMillis int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.w, "%s,%d,%d,%d\n", id, elapsedMillis, invocations, startMillis)
	_ = l.w.Flush()
}

// Flush writes buffered lines.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Flush()
}

// Close flushes and closes the underlying file.
func (l *FileLogger) Close() error {
	if err := l.Flush(); err != nil {
		return err
	}
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

var _ ExecutionLogger = (*FileLogger)(nil)
