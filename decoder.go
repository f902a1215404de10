package csvflow

import (
	"context"
	"io"
	"iter"
	"log/slog"
)

// Row is one decoded record. Line is the zero-based index of its first physical line.
// Named is populated only when a header is active.
type Row struct {
	Line   int
	Fields []string
	Named  map[string]string
}

// Result is either a decoded Row or a row-scoped error for the record at Row.Line.
type Result struct {
	Row
	Err error
}

// OK reports whether the result carries a row.
func (r Result) OK() bool { return r.Err == nil }

type shape int

const (
	shapeList shape = iota
	shapeNamed
)

// unconstrained disables row length validation.
const unconstrained = -1

// plan is the outcome of header and row length resolution. It is fixed before the
// first data record is decoded and shared read-only afterwards.
type plan struct {
	header   []string
	expected int
	shape    shape
}

// resolver folds the first record into a plan. Every later record passes through.
type resolver struct {
	opts  Options
	lexer *Lexer
	plan  *plan
}

// advance returns the plan for rec and whether rec is data.
func (r *resolver) advance(rec record) (*plan, bool) {
	if r.plan != nil {
		return r.plan, true
	}

	pl := &plan{expected: unconstrained}
	keep := true
	log := r.opts.Logger

	switch r.opts.Headers.mode {
	case HeadersLiteral:
		pl.header = r.opts.Headers.Names()
	case HeadersFirstRow:
		fields, err := r.parse(rec)
		if err != nil {
			log.Warn("header row failed to parse, decoding without header",
				slog.Int("line", rec.index+1), slog.Any("error", err))
			break
		}
		pl.header = fields
		keep = false
	}

	if pl.header != nil {
		pl.shape = shapeNamed
		pl.expected = len(pl.header)
	} else if fields, err := r.parse(rec); err == nil {
		pl.expected = len(fields)
	} else {
		log.Warn("first row failed to parse, row length unconstrained",
			slog.Int("line", rec.index+1), slog.Any("error", err))
	}

	log.Debug("decode plan resolved",
		slog.String("headers", r.opts.Headers.mode.String()),
		slog.Int("header_fields", len(pl.header)),
		slog.Int("expected_length", pl.expected))

	r.plan = pl
	return pl, keep
}

func (r *resolver) parse(rec record) ([]string, error) {
	if rec.err != nil {
		return nil, rec.err
	}
	tokens, err := r.lexer.Lex(rec.index, rec.text)
	if err != nil {
		return nil, err
	}
	return Parse(tokens, r.opts.StripFields), nil
}

// Decoder decodes a stream of lines into rows. A Decoder reads its input once.
type Decoder struct {
	lines  iter.Seq2[Line, error]
	opts   Options
	lexer  *Lexer
	header []string
	used   bool
	err    error
}

// NewDecoder returns a Decoder that reads CSV data from r.
func NewDecoder(r io.Reader, opts Options) (*Decoder, error) {
	if r == nil {
		return nil, invalidOption("reader cannot be nil")
	}
	return NewLineDecoder(Lines(r), opts)
}

// NewLineDecoder returns a Decoder over already split lines.
func NewLineDecoder(lines iter.Seq2[Line, error], opts Options) (*Decoder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return &Decoder{
		lines: lines,
		opts:  opts,
		lexer: NewLexer(opts.Separator),
	}, nil
}

// Header returns the resolved header, or nil when none is active. It is valid once the
// first result has been received or decoding has finished.
func (d *Decoder) Header() []string {
	return append([]string(nil), d.header...)
}

// Err returns the error that stopped decoding early: a read error from the line
// source, context cancellation, or ErrConsumed.
func (d *Decoder) Err() error {
	return d.err
}

// Results decodes lazily. Row-scoped errors are delivered as results and decoding
// continues with the next record. Results are in input order for any worker count.
// Stopping the range loop early, or cancelling ctx, stops all decoding work.
func (d *Decoder) Results(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		if d.used {
			d.err = ErrConsumed
			return
		}
		d.used = true

		records := frameRecords(d.lines, d.lexer, d.opts.EscapeMaxLines)
		res := &resolver{opts: d.opts, lexer: d.lexer}

		var st decodeStats
		counted := func(r Result) bool {
			st.observe(r)
			return yield(r)
		}
		if d.opts.NumWorkers == 1 {
			d.runSequential(ctx, records, res, counted)
		} else {
			d.runParallel(ctx, records, res, counted)
		}

		d.opts.Logger.Debug("decode finished",
			slog.Int("rows", st.rows),
			slog.Int("errors", st.errors),
			slog.Int("workers", d.opts.NumWorkers),
			slog.Any("stop", d.err))
	}
}

// Rows decodes in strict mode: the first row-scoped error ends the sequence with a
// *StrictError carrying the one-based line number.
func (d *Decoder) Rows(ctx context.Context) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for res := range d.Results(ctx) {
			if res.Err != nil {
				yield(Row{}, &StrictError{Line: res.Line + 1, Err: res.Err})
				return
			}
			if !yield(res.Row, nil) {
				return
			}
		}
		if d.err != nil {
			yield(Row{}, d.err)
		}
	}
}

// ReadAll decodes every row in strict mode.
func (d *Decoder) ReadAll(ctx context.Context) ([]Row, error) {
	var rows []Row
	for row, err := range d.Rows(ctx) {
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// runSequential decodes on the calling goroutine in strict input order.
func (d *Decoder) runSequential(ctx context.Context, records iter.Seq2[record, error], res *resolver, yield func(Result) bool) {
	for rec, err := range records {
		if err != nil {
			d.err = err
			return
		}
		pl, keep := res.advance(rec)
		d.header = pl.header
		if !keep {
			continue
		}
		if err := ctx.Err(); err != nil {
			d.err = err
			return
		}
		if !yield(d.decodeRecord(pl, rec)) {
			return
		}
	}
}

// decodeRecord runs lex, parse, length validation and shaping for one record.
// It touches no shared mutable state.
func (d *Decoder) decodeRecord(pl *plan, rec record) Result {
	row := Row{Line: rec.index}
	if rec.err != nil {
		return Result{Row: row, Err: rec.err}
	}

	tokens, err := d.lexer.Lex(rec.index, rec.text)
	if err != nil {
		return Result{Row: row, Err: err}
	}
	row.Fields = Parse(tokens, d.opts.StripFields)

	if pl.expected != unconstrained && len(row.Fields) != pl.expected {
		return Result{Row: row, Err: &RowLengthError{
			Line:     rec.index,
			Actual:   len(row.Fields),
			Expected: pl.expected,
			Fields:   row.Fields,
		}}
	}

	if pl.shape == shapeNamed {
		row.Named = make(map[string]string, len(pl.header))
		for i, name := range pl.header {
			if i < len(row.Fields) {
				row.Named[name] = row.Fields[i]
			}
		}
	}
	return Result{Row: row}
}

type decodeStats struct {
	rows   int
	errors int
}

func (s *decodeStats) observe(r Result) {
	if r.Err != nil {
		s.errors++
		return
	}
	s.rows++
}

// Decode collects every result of r.
func Decode(ctx context.Context, r io.Reader, opts Options) ([]Result, error) {
	d, err := NewDecoder(r, opts)
	if err != nil {
		return nil, err
	}
	return collect(ctx, d)
}

// DecodeStrings collects every result of already split lines.
func DecodeStrings(ctx context.Context, lines []string, opts Options) ([]Result, error) {
	d, err := NewLineDecoder(StringLines(lines...), opts)
	if err != nil {
		return nil, err
	}
	return collect(ctx, d)
}

func collect(ctx context.Context, d *Decoder) ([]Result, error) {
	var out []Result
	for res := range d.Results(ctx) {
		out = append(out, res)
	}
	return out, d.Err()
}
