package csvflow

import (
	"bufio"
	"errors"
	"io"
)

var (
	errNilWriter      = errors.New("csvflow: writer is nil")
	errWriterNoTarget = errors.New("csvflow: writer destination cannot be nil")
)

// Writer buffers encoded rows on their way to an io.Writer. The exported fields may
// change between rows. The first write, flush or configuration error is kept and
// returned by every later call until Reset.
type Writer struct {
	// Separator goes between fields; zero selects DefaultSeparator.
	Separator rune
	// Delimiter ends each row; empty selects DefaultDelimiter.
	Delimiter string
	// AlwaysQuote quotes every field instead of only those that need it.
	AlwaysQuote bool

	out  *bufio.Writer
	line []byte
	err  error

	// esc serves rows while the exported fields still resolve to cfg.
	cfg writerConfig
	esc *fieldEscaper
}

// writerConfig is the resolved form of the fields that shape escaping.
type writerConfig struct {
	sep       rune
	delimiter string
	always    bool
}

// NewWriter returns a Writer over w with the default separator and delimiter.
// It panics if w is nil.
func NewWriter(w io.Writer) *Writer {
	if w == nil {
		panic(errWriterNoTarget.Error())
	}
	return &Writer{
		Separator: DefaultSeparator,
		Delimiter: DefaultDelimiter,
		out:       bufio.NewWriterSize(w, defaultBufferSize),
	}
}

// Reset points the Writer at dst and clears the stored error. Unflushed output is
// dropped and the configuration is kept. A zero Writer is usable after Reset.
func (w *Writer) Reset(dst io.Writer) {
	switch {
	case w == nil:
		panic(errNilWriter.Error())
	case dst == nil:
		panic(errWriterNoTarget.Error())
	case w.out != nil:
		w.out.Reset(dst)
	default:
		w.out = bufio.NewWriterSize(dst, defaultBufferSize)
	}
	w.err = nil
}

// Write encodes row and appends it to the buffer.
func (w *Writer) Write(row []string) error {
	if err := w.ready(); err != nil {
		return err
	}
	esc, err := w.escaper()
	if err != nil {
		return w.fail(err)
	}
	w.line = esc.appendRow(w.line[:0], row, w.cfg.delimiter)
	if _, err := w.out.Write(w.line); err != nil {
		return w.fail(err)
	}
	return nil
}

// WriteAll writes rows in order and stops at the first error.
func (w *Writer) WriteAll(rows [][]string) error {
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.ready()
}

// Flush hands buffered rows to the destination.
func (w *Writer) Flush() error {
	if err := w.ready(); err != nil {
		return err
	}
	if err := w.out.Flush(); err != nil {
		return w.fail(err)
	}
	return nil
}

// Error returns the stored error.
func (w *Writer) Error() error {
	if w == nil {
		return errNilWriter
	}
	return w.err
}

// ready returns the error that blocks output, if any.
func (w *Writer) ready() error {
	switch {
	case w == nil:
		return errNilWriter
	case w.out == nil:
		return errWriterNoTarget
	}
	return w.err
}

func (w *Writer) fail(err error) error {
	w.err = err
	return err
}

// escaper returns the escaper for the current fields, rebuilding it only after
// Separator, Delimiter or AlwaysQuote changed.
func (w *Writer) escaper() (*fieldEscaper, error) {
	cfg := writerConfig{sep: w.Separator, delimiter: w.Delimiter, always: w.AlwaysQuote}
	if cfg.sep == 0 {
		cfg.sep = DefaultSeparator
	}
	if cfg.delimiter == "" {
		cfg.delimiter = DefaultDelimiter
	}
	if w.esc != nil && cfg == w.cfg {
		return w.esc, nil
	}

	if err := (Options{Separator: cfg.sep}).Validate(); err != nil {
		return nil, err
	}
	esc := newFieldEscaper(cfg.sep, cfg.delimiter, cfg.always)
	w.cfg, w.esc = cfg, &esc
	return w.esc, nil
}
