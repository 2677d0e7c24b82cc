package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter buffers records and writes them as one JSON array.
type JSONWriter[T Record] struct {
	w      *bufio.Writer
	pretty bool
	indent string
	items  []T
	dirty  bool
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter[T Record](w io.Writer, pretty bool, indent string) *JSONWriter[T] {
	return &JSONWriter[T]{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
		items:  make([]T, 0),
		dirty:  true,
	}
}

// Write buffers a single record.
func (w *JSONWriter[T]) Write(rec T) error {
	w.items = append(w.items, rec)
	w.dirty = true
	return nil
}

// WriteAll buffers multiple records.
func (w *JSONWriter[T]) WriteAll(recs []T) error {
	w.items = append(w.items, recs...)
	w.dirty = true
	return nil
}

// Flush writes the buffered records as a JSON array. An empty dataset is
// written as []. Flushing again without new records writes nothing.
func (w *JSONWriter[T]) Flush() error {
	if !w.dirty {
		return nil
	}
	var (
		output []byte
		err    error
	)
	if w.pretty {
		output, err = json.MarshalIndent(w.items, "", w.indent)
	} else {
		output, err = json.Marshal(w.items)
	}
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	w.items = w.items[:0]
	w.dirty = false
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONWriter[T]) Close() error {
	return w.Flush()
}

// JSONLWriter writes newline-delimited JSON (JSONL), one record per line.
type JSONLWriter[T Record] struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter[T Record](w io.Writer) *JSONLWriter[T] {
	bw := bufio.NewWriter(w)
	return &JSONLWriter[T]{w: bw, enc: json.NewEncoder(bw)}
}

// Write writes a single record as a JSON line.
func (w *JSONLWriter[T]) Write(rec T) error {
	return w.enc.Encode(rec)
}

// WriteAll writes multiple records as JSON lines.
func (w *JSONLWriter[T]) WriteAll(recs []T) error {
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Flush flushes the buffer.
func (w *JSONLWriter[T]) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter[T]) Close() error {
	return w.Flush()
}
