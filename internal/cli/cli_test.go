package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleg578/csvflow"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// execute runs the root command with args and returns stdout, stderr and the error.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "csvflow", cmd.Use)
	assert.Contains(t, cmd.Long, "input order")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"decode", "encode"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestDecodeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	decodeCmd, _, err := cmd.Find([]string{"decode"})
	require.NoError(t, err)

	for flag, def := range map[string]string{
		"separator":        ",",
		"header":           "false",
		"escape-max-lines": "1000",
		"workers":          "0",
		"ratio":            "5",
		"strict":           "false",
		"encoding":         "utf-8",
	} {
		f := decodeCmd.Flags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Equal(t, def, f.DefValue, flag)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "", "--format", "xml", "decode")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestDecodeGolden(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{
			name:     "decode_text",
			args:     []string{"decode", "testdata/people.csv"},
			wantCode: ExitFailure,
			wantErr:  "1 of 5 rows failed to decode",
		},
		{
			name:     "decode_header_json",
			args:     []string{"--format", "json", "decode", "--header", "--workers", "3", "--ratio", "1", "testdata/people.csv"},
			wantCode: ExitFailure,
			wantErr:  "1 of 4 rows failed to decode",
		},
		{
			name:     "decode_header_text",
			args:     []string{"decode", "-H", "-w", "1", "testdata/people.csv"},
			wantCode: ExitFailure,
			wantErr:  "1 of 4 rows failed to decode",
		},
		{
			name:     "decode_strict_text",
			args:     []string{"decode", "--header", "--strict", "testdata/people.csv"},
			wantCode: ExitFailure,
			wantErr:  "decode failed: csvflow: decode failed on line 5: csvflow: row on line 5 has length 2, expected 3",
		},
		{
			name:     "decode_broken_json",
			args:     []string{"--format", "json", "decode", "--escape-max-lines", "2", "--workers", "2", "testdata/broken.csv"},
			wantCode: ExitFailure,
			wantErr:  "2 of 5 rows failed to decode",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stdout, _, err := execute(t, "", tc.args...)

			assert.Equal(t, tc.wantCode, GetExitCode(err))
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr, err.Error())
			}
			newGoldie(t).Assert(t, tc.name, []byte(stdout))
		})
	}
}

func TestDecodeStdin(t *testing.T) {
	stdout, _, err := execute(t, "a,b\n1,2\n", "--format", "json", "decode", "-")
	require.NoError(t, err)
	assert.Equal(t, "{\"line\":1,\"fields\":[\"a\",\"b\"]}\n{\"line\":2,\"fields\":[\"1\",\"2\"]}\n", stdout)
}

func TestDecodeNamesFlag(t *testing.T) {
	stdout, _, err := execute(t, "1,2\n", "--format", "json", "decode", "--names", "x,y")
	require.NoError(t, err)
	assert.Equal(t, "{\"line\":1,\"row\":{\"x\":\"1\",\"y\":\"2\"}}\n", stdout)
}

func TestDecodeConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "csvflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("separator: \";\"\nheaders: true\nstrip_fields: true\n"), 0o644))

	stdout, _, err := execute(t, "x;y\n 1 ; 2 \n", "--format", "json", "decode", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "{\"line\":2,\"row\":{\"x\":\"1\",\"y\":\"2\"}}\n", stdout)

	// Flags override the file.
	stdout, _, err = execute(t, "x,y\n1,2\n", "--format", "json", "decode", "--config", path, "--separator", ",")
	require.NoError(t, err)
	assert.Equal(t, "{\"line\":2,\"row\":{\"x\":\"1\",\"y\":\"2\"}}\n", stdout)
}

func TestDecodeBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("separator: \"::\"\n"), 0o644))

	_, _, err := execute(t, "", "decode", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDecodeCharset(t *testing.T) {
	stdout, _, err := execute(t, "caf\xe9,x\n", "--format", "json", "decode", "--encoding", "latin1")
	require.NoError(t, err)

	var row RowOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &row))
	assert.Equal(t, []string{"caf\u00e9", "x"}, row.Fields)
}

func TestDecodeNFC(t *testing.T) {
	stdout, _, err := execute(t, "cafe\u0301\n", "--format", "json", "decode", "--nfc")
	require.NoError(t, err)

	var row RowOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &row))
	assert.Equal(t, []string{"caf\u00e9"}, row.Fields)
}

func TestDecodeVerbose(t *testing.T) {
	_, stderr, err := execute(t, "", "--verbose", "decode", "testdata/people.csv")
	require.Error(t, err)
	assert.Contains(t, stderr, "decoded 4 rows, 1 failed")
	assert.Contains(t, stderr, "decode plan resolved")
}

func TestCharsetNameInVerboseOutput(t *testing.T) {
	_, stderr, err := execute(t, "caf\xe9\n", "--verbose", "decode", "--encoding", "latin1")
	require.NoError(t, err)
	assert.Contains(t, stderr, "reading windows-1252 input")

	_, stderr, err = execute(t, "[\"a\"]", "--verbose", "encode", "--encoding", "latin1")
	require.NoError(t, err)
	assert.Contains(t, stderr, "charset=windows-1252")
}

func TestDecodeJSONEmptyRow(t *testing.T) {
	stdout, _, err := execute(t, "\n", "--format", "json", "decode")
	require.NoError(t, err)
	assert.Equal(t, "{\"line\":1,\"fields\":[]}\n", stdout)
}

func TestRowErrorJSON(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "rowLengthKeepsFields",
			err:  &csvflow.RowLengthError{Line: 3, Actual: 1, Expected: 2, Fields: []string{"x"}},
			want: `{"line":4,"error":{"kind":"row_length","message":"csvflow: row on line 4 has length 1, expected 2","expected":2,"actual":1,"fields":["x"]}}`,
		},
		{
			name: "trailingData",
			err:  &csvflow.TrailingDataError{Line: 3, Column: 5},
			want: `{"line":4,"error":{"kind":"trailing_data","message":"csvflow: data after record terminator on line 4, column 5"}}`,
		},
		{
			name: "other",
			err:  errors.New("boom"),
			want: `{"line":4,"error":{"kind":"error","message":"boom"}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := &OutputFormatter{Format: "json", Writer: &buf}
			require.NoError(t, f.Result(csvflow.Result{Row: csvflow.Row{Line: 3}, Err: tc.err}, nil))
			assert.Equal(t, tc.want+"\n", buf.String())
		})
	}
}

func TestDecodeCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missingFile", args: []string{"decode", "testdata/missing.csv"}},
		{name: "badSeparator", args: []string{"decode", "--separator", `"`}},
		{name: "longSeparator", args: []string{"decode", "--separator", "ab"}},
		{name: "badEscapeBound", args: []string{"decode", "--escape-max-lines", "-5"}},
		{name: "unknownCharset", args: []string{"decode", "--encoding", "klingon"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := execute(t, "a\n", tc.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestDecodeHeaderFlagsExclusive(t *testing.T) {
	_, _, err := execute(t, "a\n", "decode", "--header", "--names", "x")
	assert.Error(t, err)
}

func TestEncodeGolden(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "encode_rows", args: []string{"encode", "--delimiter", "lf", "testdata/rows.jsonl"}},
		{name: "encode_named", args: []string{"encode", "--names", "name,city", "testdata/objects.jsonl"}},
		{name: "encode_always_quote_tab", args: []string{"encode", "-s", "tab", "-d", `\n`, "--always-quote", "testdata/rows.jsonl"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stdout, _, err := execute(t, "", tc.args...)
			require.NoError(t, err)
			newGoldie(t).Assert(t, tc.name, []byte(stdout))
		})
	}
}

func TestEncodeCharset(t *testing.T) {
	stdout, _, err := execute(t, "[\"caf\u00e9\",\"\u00f8\"]", "encode", "--encoding", "latin1", "--delimiter", "lf")
	require.NoError(t, err)
	assert.Equal(t, "caf\xe9,\xf8\n", stdout)
}

func TestEncodeInvalidJSON(t *testing.T) {
	stdout, _, err := execute(t, "[\"a\"]\n[\"b\", 1]\n", "encode", "--delimiter", "lf")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "input value 2")
	assert.Equal(t, "a\n", stdout)
}

func TestEncodeInvalidOptions(t *testing.T) {
	_, _, err := execute(t, "", "encode", "--separator", "\n")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRoundTripThroughCommands(t *testing.T) {
	encoded, _, err := execute(t, "", "encode", "testdata/rows.jsonl")
	require.NoError(t, err)

	decoded, _, err := execute(t, encoded, "--format", "json", "decode")
	require.NoError(t, err)

	var got [][]string
	for _, line := range strings.Split(strings.TrimSpace(decoded), "\n") {
		var row RowOutput
		require.NoError(t, json.Unmarshal([]byte(line), &row))
		got = append(got, row.Fields)
	}
	assert.Equal(t, [][]string{
		{"id", "name", "note"},
		{"1", "Ann", `says "hi"`},
		{"2", "Bo, Jr.", "multi\nline"},
		{"3", "", "trailing "},
	}, got)
}
