// Package config loads csvflow options from YAML files.
//
// A file may set any subset of the options:
//
//	separator: ";"
//	strip_fields: true
//	escape_max_lines: unlimited   # or a positive integer
//	num_workers: 8
//	worker_work_ratio: 10
//	headers: true                 # false, true, or a list of names
//	delimiter: "\n"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/oleg578/csvflow"
)

// File is the on-disk shape of an options file.
type File struct {
	Separator       string      `yaml:"separator"`
	StripFields     bool        `yaml:"strip_fields"`
	EscapeMaxLines  EscapeLimit `yaml:"escape_max_lines"`
	NumWorkers      int         `yaml:"num_workers"`
	WorkerWorkRatio int         `yaml:"worker_work_ratio"`
	Headers         HeaderValue `yaml:"headers"`
	Delimiter       string      `yaml:"delimiter"`
}

// EscapeLimit accepts a positive integer or the word "unlimited".
type EscapeLimit int

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *EscapeLimit) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: escape_max_lines must be a number or \"unlimited\"", node.Line)
	}
	if strings.EqualFold(node.Value, "unlimited") {
		*l = EscapeLimit(csvflow.Unlimited)
		return nil
	}
	var n int
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("line %d: escape_max_lines: %w", node.Line, err)
	}
	if n <= 0 {
		return fmt.Errorf("line %d: escape_max_lines must be positive, got %d", node.Line, n)
	}
	*l = EscapeLimit(n)
	return nil
}

// HeaderValue accepts true, false, or a sequence of names.
type HeaderValue struct {
	Headers csvflow.Headers
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HeaderValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var on bool
		if err := node.Decode(&on); err != nil {
			return fmt.Errorf("line %d: headers must be a boolean or a list of names", node.Line)
		}
		if on {
			h.Headers = csvflow.HeaderRow()
		} else {
			h.Headers = csvflow.NoHeaders()
		}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return fmt.Errorf("line %d: headers: %w", node.Line, err)
		}
		if len(names) == 0 {
			return fmt.Errorf("line %d: headers list is empty", node.Line)
		}
		h.Headers = csvflow.HeaderNames(names...)
		return nil
	default:
		return fmt.Errorf("line %d: headers must be a boolean or a list of names", node.Line)
	}
}

// Parse decodes YAML data into options. Unknown keys are rejected.
func Parse(data []byte) (csvflow.Options, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return csvflow.Options{}, fmt.Errorf("parse config: %w", err)
	}
	return f.Options()
}

// Load reads and parses the options file at path.
func Load(path string) (csvflow.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return csvflow.Options{}, fmt.Errorf("read config: %w", err)
	}
	opts, err := Parse(data)
	if err != nil {
		return csvflow.Options{}, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Options converts the file into validated csvflow options.
func (f File) Options() (csvflow.Options, error) {
	sep, err := ParseSeparator(f.Separator)
	if err != nil {
		return csvflow.Options{}, err
	}
	opts := csvflow.Options{
		Separator:       sep,
		StripFields:     f.StripFields,
		EscapeMaxLines:  int(f.EscapeMaxLines),
		NumWorkers:      f.NumWorkers,
		WorkerWorkRatio: f.WorkerWorkRatio,
		Headers:         f.Headers.Headers,
		Delimiter:       f.Delimiter,
	}
	if err := opts.Validate(); err != nil {
		return csvflow.Options{}, err
	}
	return opts, nil
}

// ParseSeparator converts a one character string into a separator rune.
// The empty string selects the default.
func ParseSeparator(s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	if s == `\t` || strings.EqualFold(s, "tab") {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: separator %q must be a single character", csvflow.ErrInvalidOptions, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// ParseDelimiter maps the names crlf, lf and cr to line terminators and
// interprets \r, \n and \t escapes in anything else.
func ParseDelimiter(s string) string {
	switch strings.ToLower(s) {
	case "":
		return ""
	case "crlf":
		return "\r\n"
	case "lf":
		return "\n"
	case "cr":
		return "\r"
	}
	return strings.NewReplacer(`\r`, "\r", `\n`, "\n", `\t`, "\t").Replace(s)
}
