package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/JonMunkholm/csvcompare/internal/compare"
	"github.com/JonMunkholm/csvcompare/internal/core"
	"github.com/JonMunkholm/csvcompare/internal/logging"
	"github.com/JonMunkholm/csvcompare/internal/plan"
	"github.com/JonMunkholm/csvcompare/internal/source"
	"github.com/JonMunkholm/csvcompare/internal/table"
)

const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
)

type diffOptions struct {
	index        string
	planFile     string
	strip        bool
	stripHeaders bool
	dropColumns  []string
	dropRows     []string
	snapshot     bool
	output       string
	columns      []string
	encoding     string
	noColor      bool
	verbose      bool
}

func newDiffCmd() *cobra.Command {
	var opts diffOptions

	cmd := &cobra.Command{
		Use:   "diff FIRST SECOND",
		Short: "Compare two CSV files",
		Long: "Aligns the rows of FIRST and SECOND on the index column and reports extra\n" +
			"columns, extra rows and mismatched cells. Exits 0 when the files match,\n" +
			"1 when they differ and 2 on error.",
		Example: "  csvcompare diff old.csv new.csv --index id\n" +
			"  csvcompare diff a.csv b.csv --plan plan.yaml -o json\n" +
			"  csvcompare diff a.csv b.csv -i sku --strip --drop-rows status=void,test",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], args[1], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.index, "index", "i", "", "Index column used to align rows")
	f.StringVar(&opts.planFile, "plan", "", "Transform plan file (YAML or JSON)")
	f.BoolVar(&opts.strip, "strip", false, "Strip whitespace from every value")
	f.BoolVar(&opts.stripHeaders, "strip-headers", false, "Strip whitespace from column names")
	f.StringArrayVar(&opts.dropColumns, "drop-column", nil, "Drop a column before comparing (repeatable)")
	f.StringArrayVar(&opts.dropRows, "drop-rows", nil, "Drop rows where COLUMN holds one of the values, as COLUMN=v1,v2 (repeatable)")
	f.BoolVar(&opts.snapshot, "snapshot", false, "Leave both files untouched if any transform fails")
	addOutputFlag(f, &opts.output)
	f.StringSliceVar(&opts.columns, "columns", nil, "Column names for headerless files")
	f.StringVar(&opts.encoding, "encoding", "", "Input encoding (default: detect)")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log comparison progress to stderr")

	return cmd
}

func runDiff(cmd *cobra.Command, first, second string, opts diffOptions) error {
	if err := checkFormat(opts.output); err != nil {
		return err
	}
	enc, err := source.ParseEncoding(opts.encoding)
	if err != nil {
		return err
	}

	transforms, err := flagTransforms(opts)
	if err != nil {
		return err
	}

	req := core.RunRequest{
		First:      core.Input{Path: first, Encoding: enc},
		Second:     core.Input{Path: second, Encoding: enc},
		Index:      opts.index,
		Transforms: transforms,
		Snapshot:   opts.snapshot,
		Columns:    opts.columns,
	}
	if opts.planFile != "" {
		p, err := plan.Load(opts.planFile)
		if err != nil {
			return err
		}
		req.Plan = p
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger, closeLogs := logging.New(logging.Options{Level: level, Output: cmd.ErrOrStderr()})
	defer closeLogs()

	svc := core.NewService(nil, core.Options{Logger: logger})
	res, err := svc.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	for _, doc := range []*source.Document{res.First, res.Second} {
		for _, rl := range doc.RaggedLines {
			fmt.Fprintf(stderr, "warning: %s line %d has %d fields, expected %d\n",
				doc.Table.Source(), rl.Line, rl.Fields, rl.Expected)
		}
	}

	out := cmd.OutOrStdout()
	switch opts.output {
	case formatJSON:
		je := json.NewEncoder(out)
		je.SetIndent("", "  ")
		if err := je.Encode(res.Output); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
	default:
		if isTerminal(out) && !opts.noColor {
			writeBanner(out, res.Output)
		}
		fmt.Fprintln(out, res.Output.String())
	}

	if !res.Output.MatchResult {
		return errDifferences
	}
	return nil
}

// flagTransforms turns the shortcut flags into transforms, in the same
// order a plan registers them.
func flagTransforms(opts diffOptions) ([]compare.Transform, error) {
	var out []compare.Transform
	if opts.stripHeaders {
		out = append(out, compare.StripColumnNames())
	}
	if opts.strip {
		out = append(out, compare.StripWhitespace())
	}
	for _, arg := range opts.dropRows {
		column, values, ok := strings.Cut(arg, "=")
		column = strings.TrimSpace(column)
		if !ok || column == "" {
			return nil, fmt.Errorf("%w: --drop-rows %q: want COLUMN=VALUE[,VALUE...]", plan.ErrInvalidPlan, arg)
		}
		out = append(out, compare.DropRows(column, table.Strings(strings.Split(values, ",")...)...))
	}
	if len(opts.dropColumns) > 0 {
		out = append(out, compare.DropColumns(opts.dropColumns...))
	}
	return out, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeBanner(w io.Writer, out *compare.Output) {
	if out.MatchResult {
		fmt.Fprintf(w, "%sMATCH%s\n", colorGreen, colorReset)
		return
	}
	s := out.Stats()
	fmt.Fprintf(w, "%sDIFF%s  %d extra columns, %d extra rows, %d mismatches\n",
		colorRed, colorReset, s.ExtraColumns, s.ExtraRows, s.Mismatches)
}
