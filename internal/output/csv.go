package output

import (
	"encoding/csv"
	"io"
)

// CSVWriter writes records as CSV rows under a header. The header is
// written even for an empty dataset.
type CSVWriter[T Record] struct {
	w       *csv.Writer
	columns []string
	header  bool
}

// NewCSVWriter creates a CSV writer with the given header columns.
func NewCSVWriter[T Record](w io.Writer, columns []string) *CSVWriter[T] {
	return &CSVWriter[T]{w: csv.NewWriter(w), columns: columns}
}

func (w *CSVWriter[T]) writeHeader() error {
	if w.header {
		return nil
	}
	w.header = true
	return w.w.Write(w.columns)
}

// Write writes a single row.
func (w *CSVWriter[T]) Write(rec T) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	return w.w.Write(rec.Row())
}

// WriteAll writes multiple rows.
func (w *CSVWriter[T]) WriteAll(recs []T) error {
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Flush flushes buffered rows.
func (w *CSVWriter[T]) Flush() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes the writer.
func (w *CSVWriter[T]) Close() error {
	return w.Flush()
}
