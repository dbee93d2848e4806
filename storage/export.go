package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"olx-car-scraper/models"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// OpenRecordWriter creates the writer for format. An empty path or "-"
// writes to stdout; otherwise the file is created (or truncated) along with
// any missing directories.
func OpenRecordWriter(format, path string) (RecordWriter, error) {
	var out io.Writer = nopCloser{os.Stdout}
	if path != "" && path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("export: create output dir: %w", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("export: create file %q: %w", path, err)
		}
		out = f
	}
	return NewRecordWriter(format, out)
}

// NewRecordWriter wraps w in the writer for format.
func NewRecordWriter(format string, w io.Writer) (RecordWriter, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return NewCSVWriter(w)
	case FormatJSON:
		return NewJSONWriter(w), nil
	case FormatYAML, "yml":
		return NewYAMLWriter(w), nil
	}
	if c, ok := w.(io.Closer); ok {
		_ = c.Close()
	}
	return nil, fmt.Errorf("export: unknown format %q (want csv, json or yaml)", format)
}

// documentWriter buffers records and encodes them as one document on Close.
// Both JSON and YAML need the whole list to emit a single valid document.
type documentWriter struct {
	mu      sync.Mutex
	out     io.Writer
	records []*models.ListingRecord
	encode  func(io.Writer, []*models.ListingRecord) error
}

func (d *documentWriter) Write(records []*models.ListingRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, records...)
	return nil
}

func (d *documentWriter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	records := d.records
	if records == nil {
		records = make([]*models.ListingRecord, 0)
	}
	err := d.encode(d.out, records)
	if c, ok := d.out.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// NewJSONWriter writes records as an indented JSON array. Missing fields
// are encoded as null.
func NewJSONWriter(w io.Writer) RecordWriter {
	return &documentWriter{out: w, encode: func(w io.Writer, records []*models.ListingRecord) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("json: encode: %w", err)
		}
		return nil
	}}
}

// NewYAMLWriter writes records as a YAML sequence. Missing fields are
// encoded as null.
func NewYAMLWriter(w io.Writer) RecordWriter {
	return &documentWriter{out: w, encode: func(w io.Writer, records []*models.ListingRecord) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("yaml: encode: %w", err)
		}
		return enc.Close()
	}}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
