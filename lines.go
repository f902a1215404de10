package csvflow

import (
	"bufio"
	"errors"
	"io"
	"iter"
)

const defaultBufferSize = 64 << 10

// Line is one physical input line. Text keeps its "\n" terminator; only the final
// line of a stream may lack one.
type Line struct {
	Index int
	Text  string
}

// LineReader splits a byte stream into Lines without loading the whole input.
type LineReader struct {
	src      *bufio.Reader
	buf      []byte
	line     int
	finished bool
}

// NewLineReader creates a LineReader over r, panicking if r is nil.
func NewLineReader(r io.Reader) *LineReader {
	if r == nil {
		panic("csvflow: line source cannot be nil")
	}
	return &LineReader{
		src: bufio.NewReaderSize(r, defaultBufferSize),
		buf: make([]byte, 0, 512),
	}
}

// Read returns the next line; io.EOF signals that no more lines remain.
func (r *LineReader) Read() (Line, error) {
	if r == nil || r.src == nil || r.finished {
		return Line{}, io.EOF
	}

	r.buf = r.buf[:0]
	for {
		chunk, err := r.src.ReadSlice('\n')
		r.buf = append(r.buf, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			// Line longer than the buffer; keep collecting.
			continue
		}
		if errors.Is(err, io.EOF) {
			r.finished = true
			if len(r.buf) == 0 {
				return Line{}, io.EOF
			}
			break
		}
		if err != nil {
			return Line{}, err
		}
		break
	}

	ln := Line{Index: r.line, Text: string(r.buf)}
	r.line++
	return ln, nil
}

// Lines yields the lines of r in order. A read error is yielded once and ends the sequence.
func Lines(r io.Reader) iter.Seq2[Line, error] {
	return func(yield func(Line, error) bool) {
		lr := NewLineReader(r)
		for {
			ln, err := lr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Line{}, err)
				return
			}
			if !yield(ln, nil) {
				return
			}
		}
	}
}

// StringLines indexes already split lines. Terminators are optional.
func StringLines(lines ...string) iter.Seq2[Line, error] {
	return func(yield func(Line, error) bool) {
		for i, text := range lines {
			if !yield(Line{Index: i, Text: text}, nil) {
				return
			}
		}
	}
}
