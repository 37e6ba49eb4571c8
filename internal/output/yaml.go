package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter buffers reports and writes them as one YAML document.
type YAMLWriter struct {
	w       *bufio.Writer
	reports []Report
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{
		w:       bufio.NewWriter(w),
		reports: make([]Report, 0),
	}
}

// Write buffers a single report.
func (w *YAMLWriter) Write(r Report) error {
	w.reports = append(w.reports, r)
	return nil
}

// WriteAll buffers reports.
func (w *YAMLWriter) WriteAll(rs []Report) error {
	w.reports = append(w.reports, rs...)
	return nil
}

// Flush writes the buffered reports and clears the buffer.
func (w *YAMLWriter) Flush() error {
	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	var v any = w.reports
	if len(w.reports) == 1 {
		v = w.reports[0]
	}
	if err := encoder.Encode(v); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	w.reports = w.reports[:0]
	return w.w.Flush()
}

// Close flushes the writer.
func (w *YAMLWriter) Close() error {
	return w.Flush()
}
