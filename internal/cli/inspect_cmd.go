package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvcompare/internal/source"
)

type inspectReport struct {
	Path        string              `json:"path"`
	Encoding    source.Encoding     `json:"encoding"`
	Columns     []string            `json:"columns"`
	Rows        int                 `json:"rows"`
	Bytes       int64               `json:"bytes"`
	RaggedLines []source.RaggedLine `json:"ragged_lines,omitempty"`
}

func newInspectCmd() *cobra.Command {
	var (
		output   string
		encoding string
		columns  []string
	)

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the columns, row count and encoding of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			enc, err := source.ParseEncoding(encoding)
			if err != nil {
				return err
			}

			doc, err := source.FromFile(args[0], source.Options{Columns: columns, Encoding: enc})
			if err != nil {
				return err
			}
			rep := inspectReport{
				Path:        args[0],
				Encoding:    doc.Encoding,
				Columns:     doc.Table.Columns(),
				Rows:        doc.Table.Len(),
				Bytes:       doc.BytesRead,
				RaggedLines: doc.RaggedLines,
			}

			out := cmd.OutOrStdout()
			if output == formatJSON {
				je := json.NewEncoder(out)
				je.SetIndent("", "  ")
				return je.Encode(rep)
			}

			fmt.Fprintf(out, "File:     %s\n", rep.Path)
			fmt.Fprintf(out, "Encoding: %s\n", rep.Encoding)
			fmt.Fprintf(out, "Rows:     %d\n", rep.Rows)
			fmt.Fprintf(out, "Columns:  %d\n", len(rep.Columns))
			for _, c := range rep.Columns {
				fmt.Fprintf(out, "  %s\n", c)
			}
			if len(rep.RaggedLines) > 0 {
				fmt.Fprintf(out, "Ragged lines: %d\n", len(rep.RaggedLines))
				for _, rl := range rep.RaggedLines {
					fmt.Fprintf(out, "  line %d: %d fields, expected %d\n", rl.Line, rl.Fields, rl.Expected)
				}
			}
			return nil
		},
	}

	addOutputFlag(cmd.Flags(), &output)
	cmd.Flags().StringVar(&encoding, "encoding", "", "Input encoding (default: detect)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Column names for a headerless file")

	return cmd
}
