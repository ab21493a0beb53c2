// Package store persists verdict records as append-only JSON lines.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ppiankov/claimprobe/internal/model"
)

// ErrClosed is returned when appending to a closed sink
var ErrClosed = errors.New("sink closed")

// Sink receives finished verdict records
type Sink interface {
	Append(record *model.VerdictRecord) error
}

// JSONLSink appends one JSON object per line to a file. Each record is
// marshalled up front and written with a single Write call under a mutex,
// so concurrent appends never interleave within a line.
type JSONLSink struct {
	path string
	sync bool

	mu     sync.Mutex
	file   *os.File
	closed bool
}

// OpenJSONL opens (or creates) the store at path in append mode
func OpenJSONL(path string, syncEach bool) (*JSONLSink, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is empty")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := terminateLastLine(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &JSONLSink{
		path: path,
		sync: syncEach,
		file: f,
	}, nil
}

// Path returns the store location
func (s *JSONLSink) Path() string {
	return s.path
}

// Append writes one complete record line
func (s *JSONLSink) Append(record *model.VerdictRecord) error {
	if record == nil {
		return fmt.Errorf("nil record")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("append record: %w", err)
	}

	if s.sync {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("sync store: %w", err)
		}
	}

	return nil
}

// Close flushes and closes the store
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("sync store: %w", err)
	}
	return s.file.Close()
}

// terminateLastLine appends a newline when an interrupted write left the
// store ending mid-line, so the next record starts on its own line
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat store: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("read store tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("terminate torn line: %w", err)
	}
	return nil
}
