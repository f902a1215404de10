package csvflow

import (
	"log/slog"
	"runtime"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSeparator separates fields when Options.Separator is zero.
	DefaultSeparator = ','
	// DefaultEscapeMaxLines bounds multiline quoted fields when Options.EscapeMaxLines is zero.
	DefaultEscapeMaxLines = 1000
	// DefaultWorkerWorkRatio is the number of records handed to a worker at a time.
	DefaultWorkerWorkRatio = 5
	// DefaultDelimiter terminates encoded rows when Options.Delimiter is empty.
	DefaultDelimiter = "\r\n"
	// Unlimited disables the EscapeMaxLines bound.
	Unlimited = -1

	quote = '"'
)

// HeaderMode selects how the first record is interpreted.
type HeaderMode int

const (
	// HeadersNone treats every record as data.
	HeadersNone HeaderMode = iota
	// HeadersFirstRow promotes the first record to the header.
	HeadersFirstRow
	// HeadersLiteral uses a caller supplied list of names; the first record stays data.
	HeadersLiteral
)

func (m HeaderMode) String() string {
	switch m {
	case HeadersFirstRow:
		return "first-row"
	case HeadersLiteral:
		return "literal"
	default:
		return "none"
	}
}

// Headers is the header configuration. The zero value is NoHeaders.
type Headers struct {
	mode  HeaderMode
	names []string
}

// NoHeaders decodes every record as a plain list of fields.
func NoHeaders() Headers { return Headers{} }

// HeaderRow reads the header from the first record of the stream.
func HeaderRow() Headers { return Headers{mode: HeadersFirstRow} }

// HeaderNames attaches a fixed list of names to every row.
func HeaderNames(names ...string) Headers {
	return Headers{mode: HeadersLiteral, names: append([]string(nil), names...)}
}

// Mode reports the header mode.
func (h Headers) Mode() HeaderMode { return h.mode }

// Names returns a copy of the literal names, or nil for the other modes.
func (h Headers) Names() []string {
	if h.mode != HeadersLiteral {
		return nil
	}
	return append([]string(nil), h.names...)
}

func (h Headers) String() string {
	if h.mode == HeadersLiteral {
		return "[" + strings.Join(h.names, ",") + "]"
	}
	return h.mode.String()
}

// Options configures decoding and encoding. Zero values select the defaults.
type Options struct {
	// Separator delimits fields within a record. Default is ','.
	Separator rune
	// StripFields trims surrounding whitespace from unquoted fields.
	StripFields bool
	// EscapeMaxLines is the number of physical lines a quoted field may span.
	// Default is 1000; Unlimited disables the bound.
	EscapeMaxLines int
	// NumWorkers is the size of the decode worker pool. Default is twice GOMAXPROCS.
	// One worker decodes sequentially on the calling goroutine.
	NumWorkers int
	// WorkerWorkRatio is the number of records in one unit of worker work. Default is 5.
	WorkerWorkRatio int
	// Headers selects the header mode. Default is NoHeaders.
	Headers Headers
	// Delimiter terminates encoded rows. Default is CRLF. Ignored by the decoder.
	Delimiter string
	// Logger receives diagnostic events. Nil discards them.
	Logger *slog.Logger
}

// Validate reports the first invalid option, wrapped in ErrInvalidOptions.
func (o Options) Validate() error {
	if o.Separator != 0 {
		switch {
		case !utf8.ValidRune(o.Separator):
			return invalidOption("separator %U is not a valid rune", o.Separator)
		case o.Separator == quote || o.Separator == '\n' || o.Separator == '\r':
			return invalidOption("separator %q is reserved", o.Separator)
		}
	}
	if o.EscapeMaxLines < 0 && o.EscapeMaxLines != Unlimited {
		return invalidOption("escape max lines %d must be positive or Unlimited", o.EscapeMaxLines)
	}
	if o.NumWorkers < 0 {
		return invalidOption("num workers %d must not be negative", o.NumWorkers)
	}
	if o.WorkerWorkRatio < 0 {
		return invalidOption("worker work ratio %d must not be negative", o.WorkerWorkRatio)
	}
	if o.Headers.mode == HeadersLiteral && len(o.Headers.names) == 0 {
		return invalidOption("literal headers need at least one name")
	}
	return nil
}

// withDefaults resolves zero values. The result is shared read-only by all workers.
func (o Options) withDefaults() Options {
	if o.Separator == 0 {
		o.Separator = DefaultSeparator
	}
	if o.EscapeMaxLines == 0 {
		o.EscapeMaxLines = DefaultEscapeMaxLines
	}
	o.NumWorkers = sanitizeWorkers(o.NumWorkers)
	if o.WorkerWorkRatio == 0 {
		o.WorkerWorkRatio = DefaultWorkerWorkRatio
	}
	if o.Delimiter == "" {
		o.Delimiter = DefaultDelimiter
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// sanitizeWorkers maps a non-positive worker count to twice the usable CPUs.
func sanitizeWorkers(n int) int {
	if n <= 0 {
		return 2 * runtime.GOMAXPROCS(0)
	}
	return n
}
