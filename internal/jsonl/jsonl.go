// Package jsonl reads and writes the intermediate JSONL files passed between
// pipeline stages.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MaxLineCapacity is the maximum buffer size for reading one JSONL line.
// Person pages with many homepages can exceed the scanner default.
const MaxLineCapacity = 8 * 1024 * 1024

// Writer appends values of one type to a JSONL file.
type Writer[T any] struct {
	f   *os.File
	buf *bufio.Writer
	enc *json.Encoder
	n   int
}

// Create creates (or truncates) path and its parent directory.
func Create[T any](path string) (*Writer[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer[T]{f: f, buf: buf, enc: enc}, nil
}

// Write encodes one value as a line.
func (w *Writer[T]) Write(v T) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encoding line %d: %w", w.n+1, err)
	}
	w.n++
	return nil
}

// Count returns the number of lines written so far.
func (w *Writer[T]) Count() int {
	return w.n
}

// Close flushes and closes the file.
func (w *Writer[T]) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flushing %s: %w", w.f.Name(), err)
	}
	return w.f.Close()
}

// Each decodes path line by line and calls fn for every value.
// A missing file is an error: every stage's input must have been produced.
func Each[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, MaxLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return fmt.Errorf("parsing %s line %d: %w", path, lineNum, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}
