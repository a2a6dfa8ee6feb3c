package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pprados/haystackapi/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool             `json:"valid"`
	Rows       int              `json:"rows"`
	Violations []ViolationEntry `json:"violations,omitempty"`
}

// ViolationEntry is the JSON form of one broken rule.
type ViolationEntry struct {
	Row     int    `json:"row"`
	ID      string `json:"id,omitempty"`
	Entity  string `json:"entity"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var schemaFile string

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check entities against CUE rules",
		Long: `Check every row of a grid against entity rules written in CUE.

A schema file declares entities, each with a filter selecting its rows and
a CUE struct those rows must unify with. Without --schema the built-in
rules for sites, equips and points are used.

Example:
  haystack validate site.zinc
  haystack validate site.zinc --schema rules.cue`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], schemaFile, cmd)
		},
	}

	cmd.Flags().StringVar(&schemaFile, "schema", "", "CUE schema file (default built-in rules)")

	return cmd
}

func runValidate(opts *RootOptions, path, schemaFile string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var (
		s   *schema.Schema
		err error
	)
	if schemaFile == "" {
		s, err = schema.Default()
	} else {
		s, err = schema.Load(schemaFile)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidSchema, err)
	}
	formatter.VerboseLog("Schema entities: %v", s.Entities())

	g, err := readGrid(cmd, path, "")
	if err != nil {
		return failInput(formatter, err)
	}

	violations := s.Validate(g)
	if len(violations) == 0 {
		return outputValidateSuccess(formatter, g.Len())
	}
	return outputViolations(formatter, g.Len(), violations)
}

func outputValidateSuccess(formatter *OutputFormatter, rows int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Rows: rows})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d row(s) valid\n", rows)
	return nil
}

func outputViolations(formatter *OutputFormatter, rows int, violations []schema.Violation) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(violations)))

	if formatter.Format == "json" {
		result := ValidationResult{Rows: rows}
		for _, v := range violations {
			entry := ViolationEntry{Row: v.Row, ID: v.ID, Entity: v.Entity, Path: v.Path, Message: v.Message}
			if v.Pos.IsValid() {
				entry.Line = v.Pos.Line()
			}
			result.Violations = append(result.Violations, entry)
		}
		_ = formatter.Error(ErrCodeInvalidRow, failure.Message, result)
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	table := make([][]string, len(violations))
	for i, v := range violations {
		id := ""
		if v.ID != "" {
			id = "@" + v.ID
		}
		table[i] = []string{fmt.Sprint(v.Row), id, v.Entity, v.Path, v.Message}
	}
	simpleTable(formatter.Writer, []string{"row", "id", "entity", "tag", "message"}, table)

	return failure
}
