// Package store owns the controller's on-disk configuration file.
//
// The store treats the file contents as an opaque byte blob. Its one
// non-obvious duty is the write-then-verify discipline: a write is not
// reported successful until a readback returns byte-identical content,
// because the reload protocol built on top of the store compares content
// hashes and must never race against a partial or interfered-with write.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrStorage marks any failure to read or durably write the configuration
// file, including a readback that differs from the written bytes.
var ErrStorage = errors.New("configuration storage failure")

// Store reads and writes a single shared configuration file.
//
// Reads take the shared lock and writes the exclusive lock, so a reader can
// never observe a torn write even on filesystems without read-after-write
// ordering guarantees.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
}

// New creates a store for the configuration file at path. The path is
// resolved to an absolute path once, up front, so it can be compared against
// the config file path the controller reports in its status metrics.
func New(path string, logger *slog.Logger) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %q: %w", path, err)
	}
	return &Store{path: abs, logger: logger}, nil
}

// Path returns the absolute path of the configuration file.
func (s *Store) Path() string {
	return s.path
}

// Read returns the current file contents and a nanosecond wall-clock
// timestamp captured at read time.
func (s *Store) Read() ([]byte, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UnixNano()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read %s: %v", ErrStorage, s.path, err)
	}
	return data, now, nil
}

// Write persists data and then re-reads the file, failing if the readback is
// not byte-identical. There are no retries; a failed write is fatal to the
// enclosing operation.
func (s *Store) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, s.path, err)
	}
	readback, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: readback %s: %v", ErrStorage, s.path, err)
	}
	if !bytes.Equal(readback, data) {
		return fmt.Errorf("%w: %s not written properly: readback differs from written content", ErrStorage, s.path)
	}
	s.logger.Debug("configuration written", "path", s.path, "bytes", len(data))
	return nil
}
