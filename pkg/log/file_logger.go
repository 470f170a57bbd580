package log

import (
	"bufio"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends events to a capture file. It is safe for concurrent
// use.
type FileLogger struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	buf     *bufio.Writer
	encoder *cbor.Encoder
	written int
	closed  bool
}

// NewFileLogger opens path for appending, creating it with mode 0644.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &FileLogger{
		path:    path,
		file:    f,
		buf:     buf,
		encoder: NewEncoder(buf),
	}, nil
}

// Path returns the capture file path.
func (l *FileLogger) Path() string {
	return l.path
}

// Log buffers an event. Encoding errors are dropped so capture never
// disturbs the channel.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if l.encoder.Encode(event) == nil {
		l.written++
	}
}

// Written returns the number of events logged.
func (l *FileLogger) Written() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Flush writes buffered events to the file.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.buf.Flush()
}

// Close flushes and closes the file. Further events are ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	flushErr := l.buf.Flush()
	if err := l.file.Close(); err != nil {
		return err
	}
	return flushErr
}

var _ Logger = (*FileLogger)(nil)
