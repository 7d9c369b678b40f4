// Package persist writes and reads the line-delimited record streams the
// pipeline emits: one JSON object per line, optionally LZ4-framed.
package persist

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// File extensions for record streams.
const (
	jsonlExtension = ".jsonl"
	lz4Extension   = ".jsonl.lz4"
)

// StreamWriter appends records of type T to a line-delimited JSON stream.
// Records are written in arrival order and never revised; re-running the
// producing stage yields an identical stream.
type StreamWriter[T any] struct {
	file    *os.File
	lz4w    *lz4.Writer
	buf     *bufio.Writer
	encoder *json.Encoder
	count   int
}

// Extension returns the file extension used for a stream with the given
// compression setting.
func Extension(compress bool) string {
	if compress {
		return lz4Extension
	}

	return jsonlExtension
}

// NewStreamWriter creates dir/basename with the appropriate extension and
// returns a writer for it.
func NewStreamWriter[T any](dir, basename string, compress bool) (*StreamWriter[T], error) {
	path := filepath.Join(dir, basename+Extension(compress))

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create stream file: %w", err)
	}

	w := &StreamWriter[T]{file: file}

	var sink io.Writer = file

	if compress {
		w.lz4w = lz4.NewWriter(file)
		sink = w.lz4w
	}

	w.buf = bufio.NewWriter(sink)
	w.encoder = json.NewEncoder(w.buf)

	return w, nil
}

// Write appends one record.
func (w *StreamWriter[T]) Write(record T) error {
	err := w.encoder.Encode(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	w.count++

	return nil
}

// Count returns the number of records written so far.
func (w *StreamWriter[T]) Count() int {
	return w.count
}

// Close flushes and closes the underlying writers.
func (w *StreamWriter[T]) Close() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush stream: %w", err)
	}

	if w.lz4w != nil {
		if err := w.lz4w.Close(); err != nil {
			return fmt.Errorf("close lz4 writer: %w", err)
		}
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close stream file: %w", err)
	}

	return nil
}

// ReadStream decodes every record of a stream previously written by
// StreamWriter, detecting LZ4 framing from the file extension.
func ReadStream[T any](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stream file: %w", err)
	}
	defer file.Close()

	var src io.Reader = file

	if filepath.Ext(path) == ".lz4" {
		src = lz4.NewReader(file)
	}

	var records []T

	decoder := json.NewDecoder(src)

	for {
		var record T

		decodeErr := decoder.Decode(&record)
		if decodeErr == io.EOF {
			break
		}

		if decodeErr != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(records), decodeErr)
		}

		records = append(records, record)
	}

	return records, nil
}
