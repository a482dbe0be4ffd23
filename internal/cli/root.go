// Package cli implements the csvcompare command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/csvcompare/internal/core"
)

var (
	version = "dev"
	commit  = "none"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitDiff   = 1
	ExitFailed = 2
)

// errDifferences reports that a comparison ran and found differences. It
// carries no message; the report has already been printed.
var errDifferences = errors.New("files differ")

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, newRootCmd(), os.Stderr)
}

func run(ctx context.Context, rootCmd *cobra.Command, stderr io.Writer) int {
	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errDifferences):
		return ExitDiff
	}

	if core.IsUserFacing(err) {
		fmt.Fprintf(stderr, "Error: %v\n%s\n", err, core.FormatUserError(err))
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitFailed
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "csvcompare",
		Short: "Compare two CSV files by an index column",
		Long: "csvcompare aligns the rows of two CSV files on an index column and reports\n" +
			"extra columns, extra rows and mismatched cells. It can also run as an HTTP\n" +
			"service that keeps a history of comparisons.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newDiffCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// output format flag values
const (
	formatText = "text"
	formatJSON = "json"
)

func addOutputFlag(fs *pflag.FlagSet, p *string) {
	fs.StringVarP(p, "output", "o", formatText, "Output format (text, json)")
}

func checkFormat(format string) error {
	if format != formatText && format != formatJSON {
		return fmt.Errorf("unsupported output format %q: use 'text' or 'json'", format)
	}
	return nil
}
