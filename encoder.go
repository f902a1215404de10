package csvflow

import (
	"iter"
	"strings"
)

// fieldEscaper decides which fields need quoting and appends escaped output.
type fieldEscaper struct {
	sep      string
	specials string
	always   bool
}

func newFieldEscaper(sep rune, delimiter string, always bool) fieldEscaper {
	s := string(sep)
	return fieldEscaper{
		sep:      s,
		specials: s + `"` + "\n" + delimiter,
		always:   always,
	}
}

func (e fieldEscaper) needsQuote(field string) bool {
	return e.always || strings.ContainsAny(field, e.specials)
}

func (e fieldEscaper) appendField(dst []byte, field string) []byte {
	if !e.needsQuote(field) {
		return append(dst, field...)
	}
	dst = append(dst, quote)
	start := 0
	for i := 0; i < len(field); i++ {
		if field[i] == quote {
			dst = append(dst, field[start:i+1]...)
			dst = append(dst, quote)
			start = i + 1
		}
	}
	dst = append(dst, field[start:]...)
	return append(dst, quote)
}

func (e fieldEscaper) appendRow(dst []byte, row []string, delimiter string) []byte {
	for i, field := range row {
		if i > 0 {
			dst = append(dst, e.sep...)
		}
		dst = e.appendField(dst, field)
	}
	return append(dst, delimiter...)
}

// Escape quotes field if it contains the separator, a quote, a newline or any
// character of the delimiter, doubling embedded quotes. Other fields are returned unchanged.
func Escape(field string, sep rune, delimiter string) string {
	e := newFieldEscaper(sep, delimiter, false)
	if !e.needsQuote(field) {
		return field
	}
	return string(e.appendField(make([]byte, 0, len(field)+2), field))
}

// Encoder turns rows into delimited lines. It is single pass and keeps input order.
type Encoder struct {
	esc       fieldEscaper
	delimiter string
}

// NewEncoder validates opts and returns an Encoder. Only Separator and Delimiter apply.
func NewEncoder(opts Options) (*Encoder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return &Encoder{
		esc:       newFieldEscaper(opts.Separator, opts.Delimiter, false),
		delimiter: opts.Delimiter,
	}, nil
}

// Line encodes one row, terminator included.
func (e *Encoder) Line(row []string) string {
	return string(e.esc.appendRow(make([]byte, 0, 64), row, e.delimiter))
}

// Lines encodes rows lazily, one line per row.
func (e *Encoder) Lines(rows iter.Seq[[]string]) iter.Seq[string] {
	return func(yield func(string) bool) {
		buf := make([]byte, 0, 256)
		for row := range rows {
			buf = e.esc.appendRow(buf[:0], row, e.delimiter)
			if !yield(string(buf)) {
				return
			}
		}
	}
}

// NamedLines emits the header line followed by one line per map, with values in
// header order. Missing keys encode as empty fields.
func (e *Encoder) NamedLines(header []string, rows iter.Seq[map[string]string]) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !yield(e.Line(header)) {
			return
		}
		values := make([]string, len(header))
		buf := make([]byte, 0, 256)
		for m := range rows {
			for i, name := range header {
				values[i] = m[name]
			}
			buf = e.esc.appendRow(buf[:0], values, e.delimiter)
			if !yield(string(buf)) {
				return
			}
		}
	}
}

// Encode validates opts and returns the lazy line sequence for rows.
func Encode(rows iter.Seq[[]string], opts Options) (iter.Seq[string], error) {
	enc, err := NewEncoder(opts)
	if err != nil {
		return nil, err
	}
	return enc.Lines(rows), nil
}

// EncodeNamed validates opts and returns the header line followed by one line
// per map, values in header order.
func EncodeNamed(header []string, rows iter.Seq[map[string]string], opts Options) (iter.Seq[string], error) {
	enc, err := NewEncoder(opts)
	if err != nil {
		return nil, err
	}
	return enc.NamedLines(header, rows), nil
}

// EncodeStrings encodes every row in memory.
func EncodeStrings(rows [][]string, opts Options) ([]string, error) {
	enc, err := NewEncoder(opts)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, enc.Line(row))
	}
	return out, nil
}
