package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/oleg578/csvflow"
	"github.com/oleg578/csvflow/internal/config"
	"github.com/oleg578/csvflow/internal/textenc"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	ConfigPath     string
	Separator      string
	HeaderRow      bool
	Names          []string
	Strip          bool
	EscapeMaxLines int
	Workers        int
	Ratio          int
	Strict         bool
	Charset        string
	NFC            bool
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{}

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode CSV into rows",
		Long: `Decode CSV from a file, or stdin when no file or "-" is given.

Options are read from --config first; flags given on the command line override
the file. Rows that fail to decode are reported in place and the command exits
with status 1 once the input is exhausted. With --strict the first failure ends
decoding.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd.Context(), rootOpts, opts, cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML options file")
	f.StringVarP(&opts.Separator, "separator", "s", ",", `field separator (a single character, or "tab")`)
	f.BoolVarP(&opts.HeaderRow, "header", "H", false, "treat the first record as the header")
	f.StringSliceVar(&opts.Names, "names", nil, "literal header names")
	f.BoolVar(&opts.Strip, "strip", false, "trim whitespace around unquoted fields")
	f.IntVar(&opts.EscapeMaxLines, "escape-max-lines", csvflow.DefaultEscapeMaxLines, "lines a quoted field may span (-1 for unlimited)")
	f.IntVarP(&opts.Workers, "workers", "w", 0, "decode workers (0 for twice the CPU count)")
	f.IntVar(&opts.Ratio, "ratio", csvflow.DefaultWorkerWorkRatio, "records per unit of worker work")
	f.BoolVar(&opts.Strict, "strict", false, "stop at the first row that fails to decode")
	f.StringVarP(&opts.Charset, "encoding", "e", textenc.DefaultCharset, "input charset")
	f.BoolVar(&opts.NFC, "nfc", false, "normalize fields to Unicode NFC")
	cmd.MarkFlagsMutuallyExclusive("header", "names")

	return cmd
}

// options merges the config file with the flags set on the command line.
func (o *DecodeOptions) options(cmd *cobra.Command, logger *slog.Logger) (csvflow.Options, error) {
	var opts csvflow.Options
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return csvflow.Options{}, err
		}
		opts = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("separator") {
		sep, err := config.ParseSeparator(o.Separator)
		if err != nil {
			return csvflow.Options{}, err
		}
		opts.Separator = sep
	}
	if flags.Changed("header") {
		if o.HeaderRow {
			opts.Headers = csvflow.HeaderRow()
		} else {
			opts.Headers = csvflow.NoHeaders()
		}
	}
	if flags.Changed("names") {
		opts.Headers = csvflow.HeaderNames(o.Names...)
	}
	if flags.Changed("strip") {
		opts.StripFields = o.Strip
	}
	if flags.Changed("escape-max-lines") {
		opts.EscapeMaxLines = o.EscapeMaxLines
	}
	if flags.Changed("workers") {
		opts.NumWorkers = o.Workers
	}
	if flags.Changed("ratio") {
		opts.WorkerWorkRatio = o.Ratio
	}
	opts.Logger = logger

	if err := opts.Validate(); err != nil {
		return csvflow.Options{}, err
	}
	return opts, nil
}

func runDecode(ctx context.Context, rootOpts *RootOptions, opts *DecodeOptions, cmd *cobra.Command, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := bufio.NewWriter(cmd.OutOrStdout())
	defer out.Flush()

	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    out,
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	decOpts, err := opts.options(cmd, rootOpts.logger(cmd.ErrOrStderr()))
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
	src, err := textenc.NewReader(in, charset)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}
	formatter.VerboseLog("reading %s input", charset)

	dec, err := csvflow.NewDecoder(src, decOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}

	emit := func(res csvflow.Result) error {
		if opts.NFC && res.Err == nil {
			textenc.NFC(res.Fields)
			for k, v := range res.Named {
				res.Named[k] = textenc.NFCString(v)
			}
		}
		if err := formatter.Result(res, dec.Header()); err != nil {
			return WrapExitError(ExitCommandError, "write output", err)
		}
		return nil
	}

	if opts.Strict {
		rows := 0
		for row, err := range dec.Rows(ctx) {
			if err != nil {
				var strictErr *csvflow.StrictError
				if errors.As(err, &strictErr) {
					return WrapExitError(ExitFailure, "decode failed", err)
				}
				return WrapExitError(ExitCommandError, "read input", err)
			}
			if err := emit(csvflow.Result{Row: row}); err != nil {
				return err
			}
			rows++
		}
		formatter.VerboseLog("decoded %d rows", rows)
		return nil
	}

	rows, failed := 0, 0
	for res := range dec.Results(ctx) {
		if res.Err != nil {
			failed++
		} else {
			rows++
		}
		if err := emit(res); err != nil {
			return err
		}
	}
	if err := dec.Err(); err != nil {
		return WrapExitError(ExitCommandError, "read input", err)
	}
	formatter.VerboseLog("decoded %d rows, %d failed", rows, failed)
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d rows failed to decode", failed, rows+failed))
	}
	return nil
}
