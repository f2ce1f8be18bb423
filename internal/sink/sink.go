// Package sink implements the append-only JSON log sink the
// Telemetry Scheduler writes through.
package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink is a telemetry.Sink backed by an append-mode file.
type FileSink struct {
	f *os.File
	w *bufio.Writer
}

// Open opens (creating directories as needed) a session log file named
// by id under dir, in append mode. A failed Open should be treated by
// the caller as a storage error: disable JSON logging for the
// session, but keep polling.
func Open(dir string, id uint64) (*FileSink, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sink: mkdir %s: %w", dir, err)
		}
	}
	path := filepath.Join(dir, fmt.Sprintf("ABRP-%d.json", id))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	return &FileSink{f: f, w: bufio.NewWriter(f)}, nil
}

func (s *FileSink) WriteLine(line string) error {
	if _, err := s.w.WriteString(line); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *FileSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.f.Sync()
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	if err := s.Flush(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
