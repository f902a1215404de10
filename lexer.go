package csvflow

import (
	"iter"
	"strings"
)

// Token is the raw text of one field. For quoted tokens Text is the content between
// the outer quotes, with escaped quotes still doubled.
type Token struct {
	Text   string
	Quoted bool
}

// record is one logical CSV record: one or more physical lines joined together.
type record struct {
	index int
	lines int
	text  string
	err   error
}

// frameRecords groups physical lines into logical records. A line that ends inside a
// quoted field pulls in the next line, up to maxLines lines per record (Unlimited
// disables the bound). Quote state follows the same rules as Lex, so a quote in the
// middle of an unquoted field never opens a multiline record. On overflow the
// accumulated text becomes an EscapeSequenceError record and framing restarts at the
// overflowing line.
func frameRecords(lines iter.Seq2[Line, error], lx *Lexer, maxLines int) iter.Seq2[record, error] {
	return func(yield func(record, error) bool) {
		var (
			pending  strings.Builder
			start    int
			count    int
			inQuotes bool
		)

		// begin starts a record at ln and reports whether it is already complete.
		begin := func(ln Line) (record, bool) {
			if !lx.endsQuoted(ln.Text, false) {
				return record{index: ln.Index, lines: 1, text: ln.Text}, true
			}
			inQuotes = true
			start = ln.Index
			count = 1
			pending.Reset()
			pending.WriteString(ln.Text)
			return record{}, false
		}

		for ln, err := range lines {
			if err != nil {
				yield(record{}, err)
				return
			}

			if inQuotes {
				if maxLines == Unlimited || count < maxLines {
					appendContinuation(&pending, ln.Text)
					count++
					if lx.endsQuoted(ln.Text, true) {
						continue
					}
					inQuotes = false
					if !yield(record{index: start, lines: count, text: pending.String()}, nil) {
						return
					}
					continue
				}

				inQuotes = false
				overflow := record{
					index: start,
					lines: count,
					err:   &EscapeSequenceError{Line: start, Sequence: pending.String()},
				}
				if !yield(overflow, nil) {
					return
				}
			}

			if rec, done := begin(ln); done {
				if !yield(rec, nil) {
					return
				}
			}
		}

		if inQuotes {
			yield(record{
				index: start,
				lines: count,
				err:   &EscapeSequenceError{Line: start, Sequence: pending.String()},
			}, nil)
		}
	}
}

// appendContinuation joins a continuation line, restoring the line break when the
// source delivered lines without terminators.
func appendContinuation(b *strings.Builder, text string) {
	if s := b.String(); len(s) > 0 && s[len(s)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(text)
}

// Lexer splits one logical record into raw field tokens.
type Lexer struct {
	sep string
}

// NewLexer returns a Lexer for the given separator (DefaultSeparator when zero).
func NewLexer(sep rune) *Lexer {
	if sep == 0 {
		sep = DefaultSeparator
	}
	return &Lexer{sep: string(sep)}
}

// Lex tokenizes text, one logical record that may contain quoted line breaks. line is
// the zero-based index used in errors. The record ends at the first line terminator
// outside quotes and anything after it is a TrailingDataError; an empty record yields
// no tokens.
func (l *Lexer) Lex(line int, text string) ([]Token, error) {
	if text == "" || terminatorLen(text) > 0 {
		return endRecord(line, text, 0, nil)
	}

	sep := l.sep
	tokens := make([]Token, 0, 8)
	i, n := 0, len(text)

	for {
		if i < n && text[i] == quote {
			// Quoted field: find the closing quote, skipping doubled quotes.
			j := i + 1
			for {
				k := strings.IndexByte(text[j:], quote)
				if k < 0 {
					return nil, &EscapeSequenceError{Line: line, Sequence: text}
				}
				j += k
				if j+1 < n && text[j+1] == quote {
					j += 2
					continue
				}
				break
			}
			tokens = append(tokens, Token{Text: text[i+1 : j], Quoted: true})
			i = j + 1

			switch {
			case i == n || terminatorLen(text[i:]) > 0:
				return endRecord(line, text, i, tokens)
			case strings.HasPrefix(text[i:], sep):
				i += len(sep)
				continue
			default:
				return nil, &StrayQuoteError{Line: line, Column: i + 1}
			}
		}

		// Unquoted field: runs to the next separator or terminator.
		j := i
		for j < n {
			c := text[j]
			if c == quote {
				return nil, &StrayQuoteError{Line: line, Column: j + 1}
			}
			if c == '\n' || (c == '\r' && j+1 < n && text[j+1] == '\n') {
				break
			}
			if c == sep[0] && strings.HasPrefix(text[j:], sep) {
				break
			}
			j++
		}
		tokens = append(tokens, Token{Text: text[i:j]})

		if j < n && terminatorLen(text[j:]) == 0 {
			i = j + len(sep)
			continue
		}
		return endRecord(line, text, j, tokens)
	}
}

// endsQuoted reports whether text leaves a quoted field open. inQuotes carries the
// state from the previous line. A quote opens a field only at the field's start, a
// doubled quote inside a field is literal, and scanning stops at the first terminator
// outside quotes.
func (l *Lexer) endsQuoted(text string, inQuotes bool) bool {
	fieldStart := !inQuotes
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inQuotes {
			if c != quote {
				continue
			}
			if i+1 < len(text) && text[i+1] == quote {
				i++
				continue
			}
			inQuotes = false
			continue
		}
		switch {
		case c == quote && fieldStart:
			inQuotes = true
			fieldStart = false
		case c == '\n':
			return false
		case c == l.sep[0] && strings.HasPrefix(text[i:], l.sep):
			fieldStart = true
			i += len(l.sep) - 1
		default:
			fieldStart = false
		}
	}
	return inQuotes
}

// endRecord accepts tokens when text[i:] is empty or a single terminator.
func endRecord(line int, text string, i int, tokens []Token) ([]Token, error) {
	rest := text[i:]
	if t := terminatorLen(rest); t < len(rest) {
		return nil, &TrailingDataError{Line: line, Column: i + t + 1}
	}
	return tokens, nil
}

// terminatorLen returns the length of the line terminator at the start of s, or 0.
func terminatorLen(s string) int {
	switch {
	case strings.HasPrefix(s, "\n"):
		return 1
	case strings.HasPrefix(s, "\r\n"):
		return 2
	}
	return 0
}
