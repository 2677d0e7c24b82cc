// Package output writes the joined dataset.
package output

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/jobsweep/pkg/listing"
)

// Format represents output format types.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Formats lists the file formats NewWriter accepts.
var Formats = []Format{FormatCSV, FormatJSON, FormatJSONL, FormatYAML}

// FormatFromPath picks a format from a file extension, or "" when the
// extension is not recognised.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return ""
	}
}

// Record is a value the file writers can encode: JSON and YAML through its
// struct tags, CSV through Row.
type Record interface {
	Row() []string
}

// RecordWriter handles output serialization of one record type.
type RecordWriter[T Record] interface {
	// Write outputs a single record.
	Write(rec T) error

	// WriteAll outputs multiple records.
	WriteAll(recs []T) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// Writer handles output serialization of the joined dataset.
type Writer = RecordWriter[listing.Joined]

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// NewWriter creates a joined-dataset writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	return NewRecordWriter[listing.Joined](w, format, listing.Header, opts...)
}

// NewRecordWriter creates a writer for records of type T. columns is the CSV
// header.
func NewRecordWriter[T Record](w io.Writer, format Format, columns []string, opts ...WriterOption) (RecordWriter[T], error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatCSV, "":
		return NewCSVWriter[T](w, columns), nil
	case FormatJSON:
		return NewJSONWriter[T](w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter[T](w), nil
	case FormatYAML:
		return NewYAMLWriter[T](w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// MultiWriter fans records out to several writers.
type MultiWriter []Writer

func (m MultiWriter) Write(rec listing.Joined) error {
	for _, w := range m {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiWriter) WriteAll(recs []listing.Joined) error {
	for _, w := range m {
		if err := w.WriteAll(recs); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiWriter) Flush() error {
	for _, w := range m {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer and returns the first error.
func (m MultiWriter) Close() error {
	var first error
	for _, w := range m {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
