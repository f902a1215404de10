// Package textenc converts CSV byte streams between UTF-8 and legacy charsets.
package textenc

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultCharset is used when no charset is named.
const DefaultCharset = "utf-8"

// Lookup resolves a WHATWG charset label such as "latin1", "windows-1252" or
// "shift_jis". The empty label selects UTF-8.
func Lookup(label string) (encoding.Encoding, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultCharset
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", label, err)
	}
	return enc, nil
}

// Name returns the canonical name of a charset label.
func Name(label string) (string, error) {
	enc, err := Lookup(label)
	if err != nil {
		return "", err
	}
	return htmlindex.Name(enc)
}

// NewReader decodes r from the named charset into UTF-8. A leading byte order
// mark overrides the label and is dropped.
func NewReader(r io.Reader, label string) (io.Reader, error) {
	enc, err := Lookup(label)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// NewWriter encodes UTF-8 written to the result into the named charset. The
// caller must Close the result to flush buffered bytes. Characters the charset
// cannot represent fail the write.
func NewWriter(w io.Writer, label string) (io.WriteCloser, error) {
	enc, err := Lookup(label)
	if err != nil {
		return nil, err
	}
	if name, _ := htmlindex.Name(enc); name == DefaultCharset {
		return nopCloser{w}, nil
	}
	return transform.NewWriter(w, enc.NewEncoder()), nil
}

// NFC normalizes fields in place to Unicode composed form and returns them.
func NFC(fields []string) []string {
	for i, f := range fields {
		fields[i] = NFCString(f)
	}
	return fields
}

// NFCString normalizes a single value to Unicode composed form.
func NFCString(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
