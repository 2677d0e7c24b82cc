package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes records as a YAML sequence.
type YAMLWriter[T Record] struct {
	w     *bufio.Writer
	items []T
	dirty bool
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter[T Record](w io.Writer) *YAMLWriter[T] {
	return &YAMLWriter[T]{
		w:     bufio.NewWriter(w),
		items: make([]T, 0),
		dirty: true,
	}
}

// Write buffers a single record.
func (w *YAMLWriter[T]) Write(rec T) error {
	w.items = append(w.items, rec)
	w.dirty = true
	return nil
}

// WriteAll buffers multiple records.
func (w *YAMLWriter[T]) WriteAll(recs []T) error {
	w.items = append(w.items, recs...)
	w.dirty = true
	return nil
}

// Flush writes the buffered records as a sequence. Flushing again without
// new records writes nothing.
func (w *YAMLWriter[T]) Flush() error {
	if !w.dirty {
		return nil
	}
	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	if err := encoder.Encode(w.items); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	w.items = w.items[:0]
	w.dirty = false
	return w.w.Flush()
}

// Close flushes the writer.
func (w *YAMLWriter[T]) Close() error {
	return w.Flush()
}
