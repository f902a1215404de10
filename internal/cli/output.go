package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oleg578/csvflow"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rows failed to decode or encode
	ExitCommandError = 2 // Bad flags, unreadable input, unknown charset
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// RowOutput is the JSON shape of one decoded result.
type RowOutput struct {
	Line   int               `json:"line"`
	Fields []string          `json:"fields,omitzero"`
	Row    map[string]string `json:"row,omitempty"`
	Error  *RowError         `json:"error,omitempty"`
}

// RowError describes a row-scoped decode failure.
type RowError struct {
	Kind     string   `json:"kind"`
	Message  string   `json:"message"`
	Expected *int     `json:"expected,omitempty"`
	Actual   *int     `json:"actual,omitempty"`
	Fields   []string `json:"fields,omitzero"`
}

// Error kinds reported in RowError.Kind.
const (
	KindEscapeSequence = "escape_sequence"
	KindRowLength      = "row_length"
	KindStrayQuote     = "stray_quote"
	KindTrailingData   = "trailing_data"
	KindOther          = "error"
)

func newRowError(err error) *RowError {
	out := &RowError{Kind: KindOther, Message: err.Error()}
	var (
		escErr   *csvflow.EscapeSequenceError
		lenErr   *csvflow.RowLengthError
		quoteErr *csvflow.StrayQuoteError
		tailErr  *csvflow.TrailingDataError
	)
	switch {
	case errors.As(err, &lenErr):
		out.Kind = KindRowLength
		out.Expected = &lenErr.Expected
		out.Actual = &lenErr.Actual
		out.Fields = lenErr.Fields
	case errors.As(err, &escErr):
		out.Kind = KindEscapeSequence
	case errors.As(err, &quoteErr):
		out.Kind = KindStrayQuote
	case errors.As(err, &tailErr):
		out.Kind = KindTrailingData
	}
	return out
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// Result writes one decode result. Line numbers are one-based. header orders
// named fields in text output.
func (f *OutputFormatter) Result(res csvflow.Result, header []string) error {
	line := res.Line + 1
	if f.Format == "json" {
		out := RowOutput{Line: line}
		switch {
		case res.Err != nil:
			out.Error = newRowError(res.Err)
		case res.Named != nil:
			out.Row = res.Named
		default:
			// Keep "fields" present for rows with no fields.
			out.Fields = res.Fields
			if out.Fields == nil {
				out.Fields = []string{}
			}
		}
		return json.NewEncoder(f.Writer).Encode(out)
	}

	var err error
	switch {
	case res.Err != nil:
		_, err = fmt.Fprintf(f.Writer, "%d: error: %v\n", line, res.Err)
	case res.Named != nil:
		pairs := make([]string, 0, len(header))
		for _, name := range header {
			pairs = append(pairs, fmt.Sprintf("%s=%q", name, res.Named[name]))
		}
		_, err = fmt.Fprintf(f.Writer, "%d: %s\n", line, strings.Join(pairs, " "))
	default:
		_, err = fmt.Fprintf(f.Writer, "%d: %q\n", line, res.Fields)
	}
	return err
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
