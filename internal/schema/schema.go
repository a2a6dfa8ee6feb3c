package schema

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/pprados/haystackapi/internal/filter"
	"github.com/pprados/haystackapi/internal/grid"
)

//go:embed default.cue
var defaultSource string

// CompileError reports a schema file that cannot be used.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Violation is one rule a row failed.
type Violation struct {
	Row     int
	ID      string
	Entity  string
	Path    string
	Message string
	Pos     token.Pos
}

func (v Violation) Error() string {
	subject := fmt.Sprintf("row %d", v.Row)
	if v.ID != "" {
		subject += " @" + v.ID
	}
	if v.Path != "" {
		return fmt.Sprintf("%s (%s): %s: %s", subject, v.Entity, v.Path, v.Message)
	}
	return fmt.Sprintf("%s (%s): %s", subject, v.Entity, v.Message)
}

type entity struct {
	name  string
	match string
	pred  grid.Predicate
	rules cue.Value
	// path of rules within the schema; violation paths are reported
	// relative to it.
	path []string
}

// Schema is a compiled set of entity rules. A cue.Context is not safe for
// concurrent use, so Validate calls are serialised.
type Schema struct {
	mu       sync.Mutex
	ctx      *cue.Context
	entities []entity
}

// Default compiles the built-in entity rules.
func Default() (*Schema, error) {
	return Compile(defaultSource, "default.cue")
}

// Load compiles the schema file at path.
func Load(path string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Compile(string(src), path)
}

// Compile builds a schema from CUE source. filename is used in positions.
func Compile(src, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError("cue", err)
	}

	entities := v.LookupPath(cue.ParsePath("entity"))
	if !entities.Exists() {
		return nil, &CompileError{Field: "entity", Message: "entity is required", Pos: v.Pos()}
	}
	iter, err := entities.Fields()
	if err != nil {
		return nil, formatCUEError("entity", err)
	}

	s := &Schema{ctx: ctx}
	for iter.Next() {
		e, err := compileEntity(iter.Selector().String(), iter.Value())
		if err != nil {
			return nil, err
		}
		s.entities = append(s.entities, e)
	}
	if len(s.entities) == 0 {
		return nil, &CompileError{Field: "entity", Message: "at least one entity is required", Pos: entities.Pos()}
	}
	slog.Debug("schema compiled", "file", filename, "entities", len(s.entities))
	return s, nil
}

func compileEntity(name string, v cue.Value) (entity, error) {
	field := "entity." + name
	matchVal := v.LookupPath(cue.ParsePath("match"))
	if !matchVal.Exists() {
		return entity{}, &CompileError{Field: field + ".match", Message: "match is required", Pos: v.Pos()}
	}
	match, err := matchVal.String()
	if err != nil {
		return entity{}, formatCUEError(field+".match", err)
	}
	pred, err := filter.Func(match)
	if err != nil {
		return entity{}, &CompileError{Field: field + ".match", Message: err.Error(), Pos: matchVal.Pos()}
	}

	rules := v.LookupPath(cue.ParsePath("rules"))
	if !rules.Exists() {
		return entity{}, &CompileError{Field: field + ".rules", Message: "rules is required", Pos: v.Pos()}
	}
	if k := rules.IncompleteKind(); k&cue.StructKind == 0 {
		return entity{}, &CompileError{Field: field + ".rules", Message: fmt.Sprintf("rules must be a struct, got %s", k), Pos: rules.Pos()}
	}
	var path []string
	for _, sel := range rules.Path().Selectors() {
		path = append(path, sel.String())
	}
	return entity{name: name, match: match, pred: pred, rules: rules, path: path}, nil
}

// Entities returns the entity names in declaration order.
func (s *Schema) Entities() []string {
	names := make([]string, len(s.entities))
	for i, e := range s.entities {
		names[i] = e.name
	}
	return names
}

// Validate checks every row of g against the entities whose filter
// matches it. Violations come back in row order, then entity order.
func (s *Schema) Validate(g *grid.Grid) []Violation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Violation
	for i, row := range g.All() {
		var data map[string]any
		for _, e := range s.entities {
			if !e.pred(g, row) {
				continue
			}
			if data == nil {
				data = rowData(row)
			}
			out = append(out, s.check(i, row, e, data)...)
		}
	}
	return out
}

func (s *Schema) check(i int, row *grid.Dict, e entity, data map[string]any) []Violation {
	v := s.ctx.Encode(data)
	if err := v.Err(); err != nil {
		return []Violation{newViolation(i, row, e, err)}
	}
	err := e.rules.Unify(v).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	// A failed disjunction yields one error per branch; keep the first per path.
	var out []Violation
	seen := map[string]bool{}
	for _, ce := range cueerrors.Errors(err) {
		v := newViolation(i, row, e, ce)
		if seen[v.Path] {
			continue
		}
		seen[v.Path] = true
		out = append(out, v)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Path < out[b].Path })
	return out
}

func newViolation(i int, row *grid.Dict, e entity, err error) Violation {
	v := Violation{Row: i, Entity: e.name, Message: err.Error()}
	if id, ok := row.ID(); ok {
		v.ID = id.ID
	}
	if ce, ok := err.(cueerrors.Error); ok {
		format, args := ce.Msg()
		v.Message = fmt.Sprintf(format, args...)
		v.Path = strings.Join(relativePath(ce.Path(), e.path), ".")
		if pos := cueerrors.Positions(ce); len(pos) > 0 {
			v.Pos = pos[0]
		}
	}
	return v
}

// relativePath strips prefix from path when path lies under it.
func relativePath(path, prefix []string) []string {
	if len(path) < len(prefix) || !slices.Equal(path[:len(prefix)], prefix) {
		return path
	}
	return path[len(prefix):]
}

func formatCUEError(field string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	ce := &CompileError{Field: field, Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		ce.Pos = pos[0]
	}
	return ce
}
