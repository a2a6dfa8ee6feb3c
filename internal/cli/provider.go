package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/filter"
	"github.com/pprados/haystackapi/internal/grid"
	"github.com/pprados/haystackapi/internal/provider"
	"github.com/pprados/haystackapi/internal/store"
)

// QueryOptions holds the flags shared by the commands that query a provider.
type QueryOptions struct {
	*RootOptions
	// File serves the grid of a file instead of the database.
	File string
	// At selects the version; empty for the latest.
	At string
}

func (o *QueryOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.File, "file", "", "serve the grid of this file instead of the database")
	cmd.Flags().StringVar(&o.At, "at", "", "version instant (RFC 3339 or zinc date-time, default latest)")
}

// open returns the provider and the version instant.
func (o *QueryOptions) open(cmd *cobra.Command, formatter *OutputFormatter) (provider.Provider, func(), time.Time, error) {
	version, err := parseInstant(o.At)
	if err != nil {
		return nil, nil, time.Time{}, formatter.Fail(ExitCommandError, ErrCodeInvalidArg, err)
	}
	p, done, err := openProvider(cmd, o.RootOptions, o.File)
	if err != nil {
		if o.File != "" {
			return nil, nil, time.Time{}, failInput(formatter, err)
		}
		return nil, nil, time.Time{}, formatter.Fail(ExitCommandError, ErrCodeStoreFailed, err)
	}
	return p, done, version, nil
}

func requireOp(p provider.Provider, op provider.Op) error {
	if !p.Capabilities().Has(op) {
		return fmt.Errorf("%s: %w: %s", p.Name(), provider.ErrUnsupportedOp, op)
	}
	return nil
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	At  string
	His string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Record a grid as a new version in the database",
		Long: `Import the entity grid of a file into the versioned database.

The database stores the patch from the latest version. Importing a grid
equal to the latest version records nothing. With --his, the file is a
time series (ts and val columns) appended to the history of that entity.

Example:
  haystack import --db ./haystack.db site.zinc
  haystack import --at 2024-01-01T00:00:00Z site.zinc
  haystack import --his @temp temp-history.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "version instant (default now)")
	cmd.Flags().StringVar(&opts.His, "his", "", "import the file as the history of this entity")

	return cmd
}

// ImportResult is the JSON payload of the import command.
type ImportResult struct {
	Changed bool      `json:"changed"`
	Seq     int64     `json:"seq,omitempty"`
	ID      string    `json:"id,omitempty"`
	At      time.Time `json:"at,omitzero"`
	Hash    string    `json:"hash,omitempty"`
	Samples int       `json:"samples,omitempty"`
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := contextOf(cmd)

	at, err := parseInstant(opts.At)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, err)
	}
	g, err := readGrid(cmd, path, "")
	if err != nil {
		return failInput(formatter, err)
	}

	s, err := openStore(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, err)
	}
	defer s.Close()

	if opts.His != "" {
		ref, err := parseRef(opts.His)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, err)
		}
		if err := s.ImportHistory(ctx, ref, g); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, err)
		}
		result := ImportResult{Changed: g.Len() > 0, Samples: g.Len()}
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "✓ Imported %d sample(s) for %s\n", g.Len(), ref)
		return nil
	}

	v, changed, err := s.Import(ctx, g, at)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, err)
	}
	result := ImportResult{Changed: changed, Seq: v.Seq, ID: v.ID, At: v.At, Hash: v.Hash}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if !changed {
		fmt.Fprintln(formatter.Writer, "= Unchanged, no version recorded")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "✓ Version %d (%s) at %s\n", v.Seq, v.ID, v.At.Format(time.RFC3339Nano))
	formatter.VerboseLog("Patch hash %s", v.Hash)
	return nil
}

// ReadOptions holds flags for the read command.
type ReadOptions struct {
	QueryOptions
	Filter string
	Select string
	Limit  int
	IDs    []string
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadOptions{QueryOptions: QueryOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read entities by filter or id",
		Long: `Read entities from the database, or from --file, at the latest version
or the one current at --at.

With --id the filter and limit are ignored and the rows come back in the
order of the ids. --select keeps only the named tags.

Example:
  haystack read --filter 'point and his' --select id,dis,curVal
  haystack read --id @site --id @ahu --at 2024-01-01T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(opts, cmd)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "Haystack filter expression")
	cmd.Flags().StringVar(&opts.Select, "select", "", "comma separated tags to keep")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of rows (0 for all)")
	cmd.Flags().StringArrayVar(&opts.IDs, "id", nil, "entity id (repeatable)")

	return cmd
}

func runRead(opts *ReadOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	req := provider.ReadRequest{Limit: opts.Limit, Select: opts.Select, Filter: opts.Filter}
	for _, id := range opts.IDs {
		ref, err := parseRef(id)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, err)
		}
		req.IDs = append(req.IDs, ref)
	}
	if len(req.IDs) == 0 && req.Filter != "" {
		if err := filter.Validate(req.Filter); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidFilter, err)
		}
	}

	p, done, version, err := opts.open(cmd, formatter)
	if err != nil {
		return err
	}
	defer done()
	req.Version = version

	if err := requireOp(p, provider.OpRead); err != nil {
		return failProvider(formatter, err)
	}
	g, err := p.Read(contextOf(cmd), req)
	if err != nil {
		return failProvider(formatter, err)
	}
	if err := formatter.Grid(g); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
	}
	return nil
}

// NewVersionsCommand creates the versions command.
func NewVersionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List the recorded versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersions(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.File, "file", "", "serve the grid of this file instead of the database")

	return cmd
}

// VersionEntry is one row of the versions listing.
type VersionEntry struct {
	Seq  int64     `json:"seq,omitempty"`
	ID   string    `json:"id,omitempty"`
	At   time.Time `json:"at"`
	Hash string    `json:"hash,omitempty"`
}

func runVersions(opts *QueryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := contextOf(cmd)

	p, done, _, err := opts.open(cmd, formatter)
	if err != nil {
		return err
	}
	defer done()

	var entries []VersionEntry
	if s, ok := p.(*store.Store); ok {
		versions, err := s.ListVersions(ctx)
		if err != nil {
			return failProvider(formatter, err)
		}
		for _, v := range versions {
			entries = append(entries, VersionEntry{Seq: v.Seq, ID: v.ID, At: v.At, Hash: v.Hash})
		}
	} else {
		instants, err := p.Versions(ctx)
		if err != nil {
			return failProvider(formatter, err)
		}
		for _, at := range instants {
			entries = append(entries, VersionEntry{At: at})
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"versions": entries})
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "(no versions)")
		return nil
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		seq := ""
		if e.Seq > 0 {
			seq = fmt.Sprint(e.Seq)
		}
		rows[i] = []string{seq, e.At.Format(time.RFC3339Nano), e.ID, shortHash(e.Hash)}
	}
	simpleTable(formatter.Writer, []string{"seq", "at", "id", "hash"}, rows)
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// NewValuesCommand creates the values command.
func NewValuesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "values <tag>",
		Short: "List the distinct values of a tag",
		Long: `List the distinct values a tag takes over all entities, sorted.

Example:
  haystack values kind
  haystack values unit --file site.zinc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			p, done, version, err := opts.open(cmd, formatter)
			if err != nil {
				return err
			}
			defer done()

			values, err := p.ValuesForTag(contextOf(cmd), args[0], version)
			if err != nil {
				return failProvider(formatter, err)
			}
			g := grid.NewVersion(grid.Ver3_0)
			_ = g.AddColumn(args[0], nil)
			for _, v := range values {
				if err := g.Append(grid.NewDict(grid.P(args[0], v))); err != nil {
					return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
				}
			}
			if err := formatter.Grid(g); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
			}
			return nil
		},
	}
	opts.bind(cmd)

	return cmd
}

// HisOptions holds flags for the his command.
type HisOptions struct {
	QueryOptions
	Range string
}

// NewHisCommand creates the his command.
func NewHisCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HisOptions{QueryOptions: QueryOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "his <ref>",
		Short: "Read the history of a point",
		Long: `Read the time series of an entity over a date range.

The range is "today", "yesterday", a date, two dates separated by a comma,
a date-time or two date-times. Dates are taken in the configured time zone.
An empty range reads everything.

Example:
  haystack his @temp --range today
  haystack his @temp --range 2024-01-01,2024-01-31`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHis(opts, args[0], cmd)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Range, "range", "", "date range (default all)")

	return cmd
}

func runHis(opts *HisOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	ref, err := parseRef(id)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, err)
	}
	now := opts.now().In(opts.Config.Location())
	r, err := provider.ParseDateRange(opts.Range, opts.Config.Location(), now)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidRange, err)
	}

	p, done, version, err := opts.open(cmd, formatter)
	if err != nil {
		return err
	}
	defer done()

	if err := requireOp(p, provider.OpHisRead); err != nil {
		return failProvider(formatter, err)
	}
	g, err := p.HisRead(contextOf(cmd), ref, r, version)
	if err != nil {
		return failProvider(formatter, err)
	}
	if err := formatter.Grid(g); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
	}
	return nil
}

// PointOptions holds flags for the point command.
type PointOptions struct {
	QueryOptions
	Level int
	Val   string
	Who   string
}

// NewPointCommand creates the point command.
func NewPointCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PointOptions{QueryOptions: QueryOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "point <ref>",
		Short: "Show, or write then show, the priority array of a point",
		Long: `Print the 17 levels of the priority array of a writable point.

With --level, the zinc value --val is first written at that level of the
database; an empty --val or N relinquishes it.

Example:
  haystack point @sp
  haystack point @sp --level 8 --val 21.5°C --who operator`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoint(opts, args[0], cmd)
		},
	}
	opts.bind(cmd)
	cmd.Flags().IntVar(&opts.Level, "level", 0, "priority level to write (1..17)")
	cmd.Flags().StringVar(&opts.Val, "val", "", "zinc value to write (empty relinquishes)")
	cmd.Flags().StringVar(&opts.Who, "who", "", "writer identity")

	return cmd
}

func runPoint(opts *PointOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := contextOf(cmd)

	ref, err := parseRef(id)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, err)
	}

	if opts.Level != 0 {
		if opts.File != "" {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Errorf("--level writes to the database and cannot be used with --file"))
		}
		var val grid.Value = grid.Null{}
		if opts.Val != "" {
			val, err = codec.DecodeScalar(opts.Val, codec.Zinc, grid.LatestVersion)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Errorf("--val: %w", err))
			}
		}
		s, err := openStore(opts.RootOptions)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, err)
		}
		err = s.WritePoint(ctx, ref, opts.Level, val, opts.Who)
		_ = s.Close()
		if err != nil {
			return failProvider(formatter, err)
		}
		formatter.VerboseLog("Wrote level %d of %s", opts.Level, ref)
	}

	p, done, version, err := opts.open(cmd, formatter)
	if err != nil {
		return err
	}
	defer done()

	if err := requireOp(p, provider.OpPointWrite); err != nil {
		return failProvider(formatter, err)
	}
	g, err := p.PointWriteRead(ctx, ref, version)
	if err != nil {
		return failProvider(formatter, err)
	}
	if err := formatter.Grid(g); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
	}
	return nil
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List the operations the provider implements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			p, done, _, err := opts.open(cmd, formatter)
			if err != nil {
				return err
			}
			defer done()
			if err := formatter.Grid(provider.Ops(p)); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.File, "file", "", "serve the grid of this file instead of the database")

	return cmd
}

// NewAboutCommand creates the about command.
func NewAboutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}
	var home string

	cmd := &cobra.Command{
		Use:   "about",
		Short: "Describe the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			p, done, _, err := opts.open(cmd, formatter)
			if err != nil {
				return err
			}
			defer done()
			now := opts.now().In(opts.Config.Location())
			if err := formatter.Grid(provider.About(p, home, now)); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.File, "file", "", "serve the grid of this file instead of the database")
	cmd.Flags().StringVar(&home, "home", "http://localhost/haystack/", "URI reported as productUri")

	return cmd
}

// NewFormatsCommand creates the formats command.
func NewFormatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the grid encodings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			if err := formatter.Grid(provider.Formats()); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err)
			}
			return nil
		},
	}
}
