package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/oleg578/csvflow"
	"github.com/oleg578/csvflow/internal/config"
	"github.com/oleg578/csvflow/internal/textenc"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	Separator   string
	Delimiter   string
	Names       []string
	AlwaysQuote bool
	Charset     string
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{}

	cmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Encode JSON lines into CSV",
		Long: `Encode JSON values from a file, or stdin when no file or "-" is given.

Each value is an array of strings and becomes one CSV row. With --names each
value is an object instead; the names are written as the header line and each
object's values follow in that order, missing keys as empty fields.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(rootOpts, opts, cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Separator, "separator", "s", ",", `field separator (a single character, or "tab")`)
	f.StringVarP(&opts.Delimiter, "delimiter", "d", "crlf", `row terminator (crlf, lf, cr, or literal text with \n \r \t escapes)`)
	f.StringSliceVar(&opts.Names, "names", nil, "header names; input values are objects")
	f.BoolVar(&opts.AlwaysQuote, "always-quote", false, "quote every field")
	f.StringVarP(&opts.Charset, "encoding", "e", textenc.DefaultCharset, "output charset")
	cmd.MarkFlagsMutuallyExclusive("names", "always-quote")

	return cmd
}

func runEncode(rootOpts *RootOptions, opts *EncodeOptions, cmd *cobra.Command, args []string) error {
	logger := rootOpts.logger(cmd.ErrOrStderr())

	sep, err := config.ParseSeparator(opts.Separator)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}
	encOpts := csvflow.Options{
		Separator: sep,
		Delimiter: config.ParseDelimiter(opts.Delimiter),
		Logger:    logger,
	}
	enc, err := csvflow.NewEncoder(encOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}

	in, closeIn, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer closeIn()

	charset, err := textenc.Name(opts.Charset)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}
	dst, err := textenc.NewWriter(cmd.OutOrStdout(), charset)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}

	src := &jsonSource{dec: json.NewDecoder(in)}
	rows := 0
	var writeErr error
	if len(opts.Names) > 0 {
		for line := range enc.NamedLines(opts.Names, jsonValues[map[string]string](src)) {
			if _, writeErr = io.WriteString(dst, line); writeErr != nil {
				break
			}
			rows++
		}
	} else {
		w := csvflow.NewWriter(dst)
		w.Separator = encOpts.Separator
		w.Delimiter = encOpts.Delimiter
		w.AlwaysQuote = opts.AlwaysQuote
		for row := range jsonValues[[]string](src) {
			if writeErr = w.Write(row); writeErr != nil {
				break
			}
			rows++
		}
		if writeErr == nil {
			writeErr = w.Flush()
		}
	}
	if closeErr := dst.Close(); writeErr == nil {
		writeErr = closeErr
	}

	if src.err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("input value %d", src.count+1), src.err)
	}
	if writeErr != nil {
		return WrapExitError(ExitCommandError, "write output", writeErr)
	}
	logger.Debug("encode finished", slog.Int("lines", rows), slog.String("charset", charset))
	return nil
}

// jsonSource reads a stream of JSON values. The first decode error stops the
// stream and is kept in err.
type jsonSource struct {
	dec   *json.Decoder
	count int
	err   error
}

func jsonValues[T any](s *jsonSource) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			var v T
			if err := s.dec.Decode(&v); err != nil {
				if !errors.Is(err, io.EOF) {
					s.err = err
				}
				return
			}
			s.count++
			if !yield(v) {
				return
			}
		}
	}
}
