// Package jsonldb provides a concurrent-safe, JSONL-backed table with full
// in-memory caching, plus atomic whole-file JSON documents.
package jsonldb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sync"
)

// maxLineSize bounds a single row; pages with large block content exceed the
// scanner default.
const maxLineSize = 16 << 20

// Cloner is implemented by types that can clone themselves.
type Cloner[T any] interface {
	Clone() T
}

// Table is the cached content of one JSONL file. Writes replace the whole
// file.
type Table[T Cloner[T]] struct {
	path string

	mu   sync.RWMutex
	rows []T
}

// NewTable loads the table stored at path. A missing file is an empty table.
func NewTable[T Cloner[T]](path string) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	t := &Table[T]{path: path}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload discards the cache and reads the file again.
func (t *Table[T]) Reload() error {
	rows, err := readRows[T](t.path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.rows = rows
	t.mu.Unlock()
	return nil
}

// All returns an iterator over clones of all rows, in file order.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Replace persists rows as the new content of the table. The file is swapped
// in atomically so a crash leaves either the old or the new rows.
func (t *Table[T]) Replace(rows []T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to marshal row of %s: %w", t.path, err)
		}
	}
	cached := make([]T, len(rows))
	for i, row := range rows {
		cached[i] = row.Clone()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := writeFileAtomic(t.path, buf.Bytes()); err != nil {
		return err
	}
	t.rows = cached
	return nil
}

func readRows[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open table file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	rows, err := decodeRows[T](f)
	if err != nil {
		return nil, fmt.Errorf("failed to read table file %s: %w", path, err)
	}
	return rows, nil
}

// decodeRows parses one JSON value per line, skipping blank lines.
func decodeRows[T any](r io.Reader) ([]T, error) {
	var rows []T
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for n := 1; scanner.Scan(); n++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}
