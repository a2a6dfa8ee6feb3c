package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/pprados/haystackapi/internal/config"
	"github.com/pprados/haystackapi/internal/filter"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "json" | "text"
	Table      bool

	// Config is loaded before any subcommand runs.
	Config *config.Config

	// Now overrides the clock (for testing). Defaults to time.Now.
	Now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// formatter builds the output formatter of cmd from the loaded config.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:     o.Config.Mode,
		Writer:     cmd.OutOrStdout(),
		ErrWriter:  cmd.ErrOrStderr(),
		Verbose:    o.Verbose,
		GridFormat: o.Config.Format(),
		Table:      o.Table,
	}
}

// NewRootCommand creates the root command for the haystack CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "haystack",
		Short: "haystack - Project Haystack grid toolkit",
		Long: `Read, convert, filter, diff and version Project Haystack grids.

Grids are read from zinc, json or csv files, chosen by suffix. Versioned
entity grids live in a SQLite database (--db) that keeps every import as a
patch against the previous version.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigFile, cmd.Flags())
			if err == nil {
				opts.Config = cfg
				err = setup(cmd, cfg)
			}
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				return WrapExitError(ExitCommandError, "configuration", err)
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigFile, "config", "", "configuration file (default ./"+config.DefaultFile+" when present)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", config.DefaultMode, "output format (json|text)")
	pf.BoolVar(&opts.Table, "table", false, "render grids as tables in text mode")
	pf.String("db", config.DefaultDB, "path to SQLite database")
	pf.String("grid-format", config.DefaultGridFormat, "grid encoding written in text mode (zinc|json|csv)")
	pf.String("timezone", config.DefaultTimezone, "Haystack time zone for date ranges")
	pf.Int("filter-cache-size", filter.DefaultCacheSize, "compiled filters kept in memory")

	// Add subcommands
	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewReadCommand(opts))
	cmd.AddCommand(NewVersionsCommand(opts))
	cmd.AddCommand(NewValuesCommand(opts))
	cmd.AddCommand(NewHisCommand(opts))
	cmd.AddCommand(NewPointCommand(opts))
	cmd.AddCommand(NewOpsCommand(opts))
	cmd.AddCommand(NewAboutCommand(opts))
	cmd.AddCommand(NewFormatsCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup installs the logger and sizes the filter cache.
func setup(cmd *cobra.Command, cfg *config.Config) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	if cfg.File != "" {
		slog.Debug("configuration loaded", "file", cfg.File)
	}
	return filter.SetCacheSize(cfg.FilterCacheSize)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
