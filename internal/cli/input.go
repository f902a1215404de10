package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// openInput returns the file named by args, or the command's stdin when args is
// empty or "-".
func openInput(cmd *cobra.Command, args []string) (io.Reader, func() error, error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() error { return nil }, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "open input", err)
	}
	return f, f.Close, nil
}
