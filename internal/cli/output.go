package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/grid"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Validation failure (rows breaking the schema)
	ExitCommandError = 2 // Command error (unreadable file, bad filter, database failure, etc.)
)

// Error codes carried in the JSON envelope.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeReadFailed    = "E002" // Input file or stdin unreadable
	ErrCodeParseFailed   = "E003" // Grid text malformed
	ErrCodeUnknownFormat = "E004" // Format not zinc, json or csv
	ErrCodeNotFound      = "E005" // Entity or version not found
	ErrCodeStoreFailed   = "E006" // Database error
	ErrCodeWriteFailed   = "E007" // Output write error
	ErrCodeInvalidFilter = "E010" // Filter grammar error
	ErrCodeInvalidRange  = "E011" // Date range not understood
	ErrCodeInvalidSchema = "E012" // Schema file does not compile
	ErrCodeInvalidRow    = "E013" // Rows break the schema
	ErrCodeUnsupported   = "E014" // Operation not offered by the provider
	ErrCodeInvalidArg    = "E015" // Argument value out of its domain
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool

	// GridFormat encodes grids in text mode.
	GridFormat codec.Format
	// Table renders grids as a table in text mode.
	Table bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err under code and returns the ExitError the command
// should return.
func (f *OutputFormatter) Fail(exit int, code string, err error) error {
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(exit, code, err)
}

// GridData is the JSON envelope payload of a grid.
type GridData struct {
	Grid json.RawMessage `json:"grid"`
}

// Grid writes g. In JSON mode the grid is embedded in the envelope in its
// Haystack JSON encoding; in text mode it is encoded with GridFormat or
// rendered as a table.
func (f *OutputFormatter) Grid(g *grid.Grid) error {
	return f.Grids([]*grid.Grid{g})
}

// Grids writes several grids, as a JSON array in JSON mode.
func (f *OutputFormatter) Grids(gs []*grid.Grid) error {
	if f.Format == "json" {
		var (
			text string
			err  error
		)
		if len(gs) == 1 {
			text, err = codec.Encode(gs[0], codec.JSON)
		} else {
			text, err = codec.EncodeAll(gs, codec.JSON)
		}
		if err != nil {
			return err
		}
		return f.Success(GridData{Grid: json.RawMessage(text)})
	}

	if f.Table {
		for _, g := range gs {
			renderTable(f.Writer, g)
		}
		return nil
	}
	var (
		text string
		err  error
	)
	if len(gs) == 1 {
		text, err = codec.Encode(gs[0], f.GridFormat)
	} else {
		text, err = codec.EncodeAll(gs, f.GridFormat)
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(f.Writer, text)
	if err == nil && !strings.HasSuffix(text, "\n") {
		_, err = io.WriteString(f.Writer, "\n")
	}
	return err
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func renderTable(w io.Writer, g *grid.Grid) {
	if g.Len() == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault // tag names are case sensitive

	cols := g.ColumnNames()
	header := make(table.Row, len(cols))
	for i, name := range cols {
		header[i] = name
	}
	t.AppendHeader(header)

	for _, row := range g.All() {
		r := make(table.Row, len(cols))
		for i, name := range cols {
			v, ok := row.Get(name)
			if !ok {
				r[i] = ""
				continue
			}
			r[i] = cellText(v, g.Version())
		}
		t.AppendRow(r)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", g.Len())
}

// simpleTable renders a header and rows of plain strings.
func simpleTable(w io.Writer, header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault // tag names are case sensitive
	h := make(table.Row, len(header))
	for i, s := range header {
		h[i] = s
	}
	t.AppendHeader(h)
	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, s := range row {
			r[i] = s
		}
		t.AppendRow(r)
	}
	t.Render()
}

func cellText(v grid.Value, ver grid.Version) string {
	switch x := v.(type) {
	case grid.Str:
		return string(x)
	case grid.Marker:
		return "✓"
	case grid.Ref:
		if x.Dis != "" {
			return "@" + x.ID + " " + x.Dis
		}
		return "@" + x.ID
	}
	text, err := codec.EncodeScalar(v, codec.Zinc, ver)
	if err != nil {
		return fmt.Sprint(v)
	}
	return text
}
