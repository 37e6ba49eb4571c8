package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dustin/go-humanize/english"
)

// TextWriter prints a short human-readable summary per report.
type TextWriter struct {
	w *bufio.Writer
}

// NewTextWriter creates a text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

// Write prints one report.
func (w *TextWriter) Write(r Report) error {
	name := r.Label
	if name == "" {
		name = r.URL
	}
	fmt.Fprintf(w.w, "%s [%s] %s, %s in %s\n",
		name, r.Status, english.Plural(len(r.Records), "record", "records"),
		english.Plural(r.Visited, "page", "pages"), r.Duration)

	switch {
	case r.Error != "":
		fmt.Fprintf(w.w, "  error:    %s\n", r.Error)
	case r.Reason != "":
		fmt.Fprintf(w.w, "  reason:   %s\n", r.Reason)
	}
	if r.AccountNumber != "" {
		fmt.Fprintf(w.w, "  account:  %s\n", r.AccountNumber)
	}
	if r.Strategy != "" {
		fmt.Fprintf(w.w, "  strategy: %s\n", r.Strategy)
	}
	if r.Current != nil {
		fmt.Fprintf(w.w, "  current:  %s on %s\n", r.Current.Amount, r.Current.Date)
	}
	if r.Previous != nil {
		fmt.Fprintf(w.w, "  previous: %s on %s\n", r.Previous.Amount, r.Previous.Date)
	}
	for _, e := range r.Records {
		fmt.Fprintf(w.w, "    %s  %10s  %-7s  %s\n", e.Date, e.Amount, e.Kind, e.Description)
	}
	return w.w.Flush()
}

// WriteAll prints each report.
func (w *TextWriter) WriteAll(rs []Report) error {
	for _, r := range rs {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *TextWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *TextWriter) Close() error {
	return w.Flush()
}
