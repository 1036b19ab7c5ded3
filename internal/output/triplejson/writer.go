// Package triplejson writes emitted triples to a JSON lines sink.
package triplejson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"labelstream/internal/logger"
	"labelstream/pkg/models"
)

// Writer outputs triples as JSON lines.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	closeFn func() error
	mu      sync.Mutex
}

// NewWriter creates a JSONL writer backed by a file.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	logger.Infof("Triple JSON writer initialized: %s", path)
	return &Writer{file: f, encoder: json.NewEncoder(f), closeFn: f.Close}, nil
}

// NewConsoleWriter creates a JSONL writer on stdout. Close is a no-op.
func NewConsoleWriter() *Writer {
	return &Writer{
		encoder: json.NewEncoder(os.Stdout),
		closeFn: func() error { return nil },
	}
}

// Write appends one triple.
func (w *Writer) Write(t models.Triple) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.encoder.Encode(t); err != nil {
		return fmt.Errorf("failed to encode triple: %w", err)
	}
	return nil
}

// Close closes the underlying sink.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeFn()
}
