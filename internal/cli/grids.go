package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/filter"
	"github.com/pprados/haystackapi/internal/patch"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	From   string
	To     string
	Output string
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Re-encode grids in another format",
		Long: `Decode every grid of a zinc, json or csv file and encode them again.

The input format comes from the file suffix unless --from is given; "-"
reads zinc from standard input. The output format is --to, the suffix of
--output, or the configured grid format, in that order.

Example:
  haystack convert site.zinc --to json
  haystack convert site.json -o site.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "input format (zinc|json|csv)")
	cmd.Flags().StringVar(&opts.To, "to", "", "output format (zinc|json|csv)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func runConvert(opts *ConvertOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	grids, err := readGrids(cmd, path, opts.From)
	if err != nil {
		return failInput(formatter, err)
	}

	to := formatter.GridFormat
	switch {
	case opts.To != "":
		to, err = codec.ParseFormat(opts.To)
	case opts.Output != "":
		to, err = codec.FormatFromPath(opts.Output)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUnknownFormat, err)
	}

	if opts.Output == "" {
		formatter.GridFormat = to
		if err := formatter.Grids(grids); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
		}
		return nil
	}

	text, err := codec.EncodeAll(grids, to)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
	}
	if err := os.WriteFile(opts.Output, []byte(text), 0o644); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
	}
	formatter.VerboseLog("Wrote %d grid(s) to %s", len(grids), opts.Output)
	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"output": opts.Output, "format": to.String(), "grids": len(grids)})
	}
	fmt.Fprintf(formatter.Writer, "✓ Wrote %d grid(s) to %s\n", len(grids), opts.Output)
	return nil
}

// FilterOptions holds flags for the filter command.
type FilterOptions struct {
	*RootOptions
	Limit int
}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "filter <file> <expr>",
		Short: "Keep the rows matching a Haystack filter",
		Long: `Apply a Haystack filter expression to the grid of a file.

Example:
  haystack filter site.zinc 'point and his'
  haystack filter site.zinc 'equipRef->siteRef->dis == "Main"' --limit 10`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of rows (0 for all)")

	return cmd
}

func runFilter(opts *FilterOptions, path, expr string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if err := filter.Validate(expr); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidFilter, err)
	}
	g, err := readGrid(cmd, path, "")
	if err != nil {
		return failInput(formatter, err)
	}
	res, err := filter.Apply(g, expr, opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidFilter, err)
	}
	formatter.VerboseLog("%d of %d row(s) match", res.Len(), g.Len())
	if err := formatter.Grid(res); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
	}
	return nil
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <base> <target>",
		Short: "Compute the patch turning one grid into another",
		Long: `Write the patch grid that merge applies to <base> to obtain <target>.

The patch carries the diff_ marker in its metadata; removed rows, tags and
columns carry remove_.

Example:
  haystack diff v1.zinc v2.zinc > v1-v2.zinc`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			base, err := readGrid(cmd, args[0], "")
			if err != nil {
				return failInput(formatter, err)
			}
			target, err := readGrid(cmd, args[1], "")
			if err != nil {
				return failInput(formatter, err)
			}
			p := patch.Diff(base, target)
			formatter.VerboseLog("Patch has %d row(s) and %d column(s)", p.Len(), len(p.Columns()))
			if err := formatter.Grid(p); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
			}
			return nil
		},
	}
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <base> <patch>",
		Short: "Apply a patch produced by diff",
		Long: `Apply the patch grid to <base> and write the result.

Example:
  haystack merge v1.zinc v1-v2.zinc`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			base, err := readGrid(cmd, args[0], "")
			if err != nil {
				return failInput(formatter, err)
			}
			p, err := readGrid(cmd, args[1], "")
			if err != nil {
				return failInput(formatter, err)
			}
			if !patch.IsPatch(p) {
				formatter.VerboseLog("%s has no %s marker, merging anyway", args[1], patch.DiffTag)
			}
			merged, err := patch.Merge(base, p)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
			}
			if err := formatter.Grid(merged); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
			}
			return nil
		},
	}
}
