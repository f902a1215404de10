package csvflow

import (
	"errors"
	"fmt"
)

var (
	// ErrEscapeSequence is returned when a quoted field is not closed within EscapeMaxLines lines or before EOF.
	ErrEscapeSequence = errors.New("csvflow: escape sequence did not terminate")
	// ErrRowLength is returned when a row contains an unexpected number of fields.
	ErrRowLength = errors.New("csvflow: wrong number of fields")
	// ErrStrayQuote is returned when a quote appears inside an unquoted field or after a closing quote.
	ErrStrayQuote = errors.New("csvflow: stray quote")
	// ErrTrailingData is returned when a record continues past its line terminator.
	ErrTrailingData = errors.New("csvflow: data after record terminator")
	// ErrInvalidOptions is wrapped by every option validation failure.
	ErrInvalidOptions = errors.New("csvflow: invalid options")
	// ErrConsumed is reported by a Decoder whose input was already read.
	ErrConsumed = errors.New("csvflow: decoder input already consumed")
)

// EscapeSequenceError reports a quoted field that never closed. Line is the zero-based
// index of the line that opened the field; Sequence holds the text accumulated before
// lexing gave up.
type EscapeSequenceError struct {
	Line     int
	Sequence string
}

// Error formats the error with a one-based line number.
func (e *EscapeSequenceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("csvflow: escape sequence started on line %d did not terminate: %q", e.Line+1, e.Sequence)
}

// Unwrap returns ErrEscapeSequence.
func (e *EscapeSequenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return ErrEscapeSequence
}

// RowLengthError reports a row whose field count differs from the resolved expected length.
type RowLengthError struct {
	Line     int
	Actual   int
	Expected int
	Fields   []string
}

func (e *RowLengthError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("csvflow: row on line %d has length %d, expected %d", e.Line+1, e.Actual, e.Expected)
}

func (e *RowLengthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return ErrRowLength
}

// StrayQuoteError reports a quote in a position RFC 4180 does not allow.
// Column is the one-based byte offset within the record.
type StrayQuoteError struct {
	Line   int
	Column int
}

func (e *StrayQuoteError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("csvflow: stray quote on line %d, column %d", e.Line+1, e.Column)
}

func (e *StrayQuoteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return ErrStrayQuote
}

// TrailingDataError reports text after the terminator that ends a record, which
// happens when a line source hands over several records as one line. Column is the
// one-based byte offset of the first trailing byte.
type TrailingDataError struct {
	Line   int
	Column int
}

func (e *TrailingDataError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("csvflow: data after record terminator on line %d, column %d", e.Line+1, e.Column)
}

func (e *TrailingDataError) Unwrap() error {
	if e == nil {
		return nil
	}
	return ErrTrailingData
}

// StrictError is the fatal error produced by strict decoding. Line is one-based.
type StrictError struct {
	Line int
	Err  error
}

func (e *StrictError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("csvflow: decode failed on line %d: %v", e.Line, e.Err)
}

// Unwrap returns the row-scoped error that stopped decoding.
func (e *StrictError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorLine extracts the zero-based line index carried by a row-scoped error.
// It reports false for errors that carry no line.
func ErrorLine(err error) (int, bool) {
	var (
		escErr   *EscapeSequenceError
		lenErr   *RowLengthError
		quoteErr *StrayQuoteError
		tailErr  *TrailingDataError
	)
	switch {
	case errors.As(err, &escErr):
		return escErr.Line, true
	case errors.As(err, &lenErr):
		return lenErr.Line, true
	case errors.As(err, &quoteErr):
		return quoteErr.Line, true
	case errors.As(err, &tailErr):
		return tailErr.Line, true
	}
	return 0, false
}

func invalidOption(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, args...))
}
