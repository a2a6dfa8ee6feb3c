package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/grid"
	"github.com/pprados/haystackapi/internal/provider"
	"github.com/pprados/haystackapi/internal/store"
)

// stdinName is the argument naming standard input.
const stdinName = "-"

// readGrids decodes every grid of path. The format comes from from when
// set, otherwise from the file suffix; standard input defaults to zinc.
func readGrids(cmd *cobra.Command, path, from string) ([]*grid.Grid, error) {
	var (
		data []byte
		err  error
	)
	if path == stdinName {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, &inputError{code: ErrCodeReadFailed, err: err}
	}

	f, err := inputFormat(path, from)
	if err != nil {
		return nil, &inputError{code: ErrCodeUnknownFormat, err: err}
	}
	grids, err := codec.DecodeAll(string(data), f)
	if err != nil {
		return nil, &inputError{code: ErrCodeParseFailed, err: fmt.Errorf("%s: %w", path, err)}
	}
	slog.Debug("grids read", "path", path, "format", f, "grids", len(grids))
	return grids, nil
}

// readGrid decodes the single grid of path.
func readGrid(cmd *cobra.Command, path, from string) (*grid.Grid, error) {
	grids, err := readGrids(cmd, path, from)
	if err != nil {
		return nil, err
	}
	if len(grids) != 1 {
		return nil, &inputError{code: ErrCodeParseFailed, err: fmt.Errorf("%s: expected one grid, found %d", path, len(grids))}
	}
	return grids[0], nil
}

func inputFormat(path, from string) (codec.Format, error) {
	if from != "" {
		return codec.ParseFormat(from)
	}
	if path == stdinName {
		return codec.Zinc, nil
	}
	return codec.FormatFromPath(path)
}

// inputError carries the envelope code of a failed read.
type inputError struct {
	code string
	err  error
}

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }

// failInput reports a readGrids error.
func failInput(f *OutputFormatter, err error) error {
	var ie *inputError
	if errors.As(err, &ie) {
		return f.Fail(ExitCommandError, ie.code, ie.err)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err)
}

// failProvider maps provider errors to envelope codes.
func failProvider(f *OutputFormatter, err error) error {
	switch {
	case errors.Is(err, provider.ErrNotFound):
		return f.Fail(ExitCommandError, ErrCodeNotFound, err)
	case errors.Is(err, provider.ErrUnsupportedRange):
		return f.Fail(ExitCommandError, ErrCodeInvalidRange, err)
	case errors.Is(err, provider.ErrUnsupportedOp):
		return f.Fail(ExitCommandError, ErrCodeUnsupported, err)
	case errors.Is(err, provider.ErrInvalidLevel):
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, err)
	}
	return f.Fail(ExitCommandError, ErrCodeStoreFailed, err)
}

// openProvider returns the provider the query commands run against: an
// in-memory provider holding the grid of file when set, the configured
// store otherwise. The caller runs done when finished.
func openProvider(cmd *cobra.Command, opts *RootOptions, file string) (p provider.Provider, done func(), err error) {
	if file != "" {
		g, err := readGrid(cmd, file, "")
		if err != nil {
			return nil, nil, err
		}
		at := time.Time{}
		if file != stdinName {
			if info, err := os.Stat(file); err == nil {
				at = info.ModTime()
			}
		}
		m := provider.NewMemory(file)
		m.AddVersion(at, g)
		return m, func() {}, nil
	}

	s, err := openStore(opts)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func openStore(opts *RootOptions) (*store.Store, error) {
	s, err := store.Open(opts.Config.DB, store.WithClock(opts.now))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Config.DB, err)
	}
	return s, nil
}

// parseInstant reads an RFC 3339 time or a zinc date-time. Blank text is
// the zero time.
func parseInstant(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return t, nil
	}
	v, err := codec.DecodeScalar(text, codec.Zinc, grid.LatestVersion)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid instant %q: %w", text, err)
	}
	dt, ok := v.(grid.DateTime)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid instant %q: got %s", text, v.Kind())
	}
	return dt.Time, nil
}

// parseRef accepts "@id" or "id".
func parseRef(text string) (grid.Ref, error) {
	id := strings.TrimPrefix(strings.TrimSpace(text), "@")
	if id == "" {
		return grid.Ref{}, fmt.Errorf("empty ref %q", text)
	}
	return grid.R(id), nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
