package grid

import (
	"fmt"
	"iter"
	"slices"
)

// Column is a declared grid column.
type Column struct {
	Name string
	Meta *Dict
}

// Key addresses a row by position (Pos) or by id (Ref).
type Key interface {
	key()
}

// Pos is a row position.
type Pos int

func (Pos) key() {}

// Predicate selects rows of a grid.
type Predicate func(g *Grid, row *Dict) bool

// Grid is an ordered table of rows with grid metadata and declared columns.
//
// Rows that carry an "id" tag are indexed by Ref. The index is built lazily
// and kept current by the mutation methods; a caller that edits a row's id
// in place must call InvalidateIndex.
//
// A Grid is not safe for concurrent mutation.
type Grid struct {
	version Version
	pinned  bool
	meta    *Dict
	cols    []Column
	rows    []*Dict
	index   map[string]*Dict // nil when stale
}

func (*Grid) Kind() Kind { return KindGrid }
func (*Grid) value()     {}

// New returns an empty grid whose version follows its content.
func New() *Grid {
	return &Grid{version: Ver2_0, meta: NewDict()}
}

// NewVersion returns an empty grid pinned to v. Storing a value that needs
// a higher version fails with ErrVersionTooLow.
func NewVersion(v Version) *Grid {
	return &Grid{version: v, pinned: true, meta: NewDict()}
}

// Version returns the grid format version.
func (g *Grid) Version() Version {
	return g.version
}

// Pinned reports whether the version was set explicitly.
func (g *Grid) Pinned() bool {
	return g.pinned
}

// SetVersion pins the grid to v. It fails when the current content needs
// a higher version.
func (g *Grid) SetVersion(v Version) error {
	req := Ver2_0
	for _, val := range g.meta.All() {
		req = maxVersion(req, MinVersion(val))
	}
	for _, c := range g.cols {
		req = maxVersion(req, dictVersion(c.Meta))
	}
	for _, row := range g.rows {
		req = maxVersion(req, dictVersion(row))
	}
	if v.Less(req) {
		return &VersionError{Kind: KindGrid, Required: req, Actual: v}
	}
	g.version = v
	g.pinned = true
	return nil
}

// accept raises the version to req, or fails when the version is pinned
// below it. The grid is left untouched on failure.
func (g *Grid) accept(kind Kind, req Version) error {
	if !g.version.Less(req) {
		return nil
	}
	if g.pinned {
		return &VersionError{Kind: kind, Required: req, Actual: g.version}
	}
	g.version = req
	return nil
}

func (g *Grid) acceptDict(d *Dict) error {
	for _, v := range d.All() {
		if err := g.accept(v.Kind(), MinVersion(v)); err != nil {
			return err
		}
	}
	return nil
}

// Meta returns the grid metadata. Use SetMeta to keep version tracking.
func (g *Grid) Meta() *Dict {
	return g.meta
}

// SetMeta sets a grid metadata tag.
func (g *Grid) SetMeta(k string, v Value) error {
	if v == nil {
		v = Null{}
	}
	if err := g.accept(v.Kind(), MinVersion(v)); err != nil {
		return err
	}
	g.meta.Set(k, v)
	return nil
}

// Columns returns the declared columns in order.
func (g *Grid) Columns() []Column {
	return slices.Clone(g.cols)
}

// ColumnNames returns the declared column names in order.
func (g *Grid) ColumnNames() []string {
	names := make([]string, len(g.cols))
	for i, c := range g.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the declared column called name.
func (g *Grid) Column(name string) (Column, bool) {
	i := g.columnIndex(name)
	if i < 0 {
		return Column{}, false
	}
	return g.cols[i], true
}

// HasColumn reports whether name is declared.
func (g *Grid) HasColumn(name string) bool {
	return g.columnIndex(name) >= 0
}

// AddColumn declares a column, or replaces the metadata of an existing one.
func (g *Grid) AddColumn(name string, meta *Dict) error {
	if meta == nil {
		meta = NewDict()
	}
	if err := g.acceptDict(meta); err != nil {
		return err
	}
	if i := g.columnIndex(name); i >= 0 {
		g.cols[i].Meta = meta
		return nil
	}
	g.cols = append(g.cols, Column{Name: name, Meta: meta})
	return nil
}

// RemoveColumn drops a column declaration. Row values are kept.
func (g *Grid) RemoveColumn(name string) bool {
	i := g.columnIndex(name)
	if i < 0 {
		return false
	}
	g.cols = slices.Delete(g.cols, i, i+1)
	return true
}

func (g *Grid) columnIndex(name string) int {
	return slices.IndexFunc(g.cols, func(c Column) bool { return c.Name == name })
}

// Len returns the number of rows.
func (g *Grid) Len() int {
	return len(g.rows)
}

// Row returns the row at position i.
func (g *Grid) Row(i int) *Dict {
	return g.rows[i]
}

// Rows returns the rows in order. The slice is a copy; the rows are not.
func (g *Grid) Rows() []*Dict {
	return slices.Clone(g.rows)
}

// All iterates rows in order.
func (g *Grid) All() iter.Seq2[int, *Dict] {
	return func(yield func(int, *Dict) bool) {
		for i, row := range g.rows {
			if !yield(i, row) {
				return
			}
		}
	}
}

// Get returns the row whose id is ref.
func (g *Grid) Get(ref Ref) (*Dict, bool) {
	g.ensureIndex()
	row, ok := g.index[ref.ID]
	return row, ok
}

// Refs returns the ids of the rows that carry one, in row order.
func (g *Grid) Refs() []Ref {
	refs := []Ref{}
	for _, row := range g.rows {
		if id, ok := row.ID(); ok {
			refs = append(refs, id)
		}
	}
	return refs
}

// Has reports whether a row has id ref.
func (g *Grid) Has(ref Ref) bool {
	_, ok := g.Get(ref)
	return ok
}

// Insert places row before position pos (pos == Len appends).
func (g *Grid) Insert(pos int, row *Dict) error {
	if pos < 0 || pos > len(g.rows) {
		return fmt.Errorf("insert at %d: %w", pos, ErrOutOfRange)
	}
	if err := g.validateRow(row); err != nil {
		return err
	}
	g.rows = slices.Insert(g.rows, pos, row)
	if g.index != nil {
		if id, ok := row.ID(); ok {
			g.index[id.ID] = row
		}
	}
	return nil
}

// Append adds rows at the end. It stops at the first invalid row.
func (g *Grid) Append(rows ...*Dict) error {
	for _, row := range rows {
		if err := g.Insert(len(g.rows), row); err != nil {
			return err
		}
	}
	return nil
}

// Replace swaps the row addressed by key for row.
func (g *Grid) Replace(key Key, row *Dict) error {
	pos, ok := g.position(key)
	if !ok {
		return fmt.Errorf("replace %v: %w", key, keyError(key))
	}
	if err := g.validateRow(row); err != nil {
		return err
	}
	old := g.rows[pos]
	g.rows[pos] = row
	if g.index != nil {
		if id, ok := old.ID(); ok && g.index[id.ID] == old {
			delete(g.index, id.ID)
		}
		if id, ok := row.ID(); ok {
			g.index[id.ID] = row
		}
	}
	return nil
}

// Delete removes every row addressed by keys, highest position first so
// positional keys stay valid. It returns the row removed for the first key
// that matched.
func (g *Grid) Delete(keys ...Key) (*Dict, bool) {
	var hits []int
	for _, k := range keys {
		pos, ok := g.position(k)
		if ok && !slices.Contains(hits, pos) {
			hits = append(hits, pos)
		}
	}
	if len(hits) == 0 {
		return nil, false
	}

	first := g.rows[hits[0]]
	slices.SortFunc(hits, func(a, b int) int { return b - a })
	for _, pos := range hits {
		row := g.rows[pos]
		g.rows = slices.Delete(g.rows, pos, pos+1)
		if g.index != nil {
			if id, ok := row.ID(); ok && g.index[id.ID] == row {
				delete(g.index, id.ID)
			}
		}
	}
	return first, true
}

func (g *Grid) position(key Key) (int, bool) {
	switch k := key.(type) {
	case Pos:
		if int(k) < 0 || int(k) >= len(g.rows) {
			return 0, false
		}
		return int(k), true
	case Ref:
		row, ok := g.Get(k)
		if !ok {
			return 0, false
		}
		return slices.Index(g.rows, row), true
	}
	return 0, false
}

func keyError(key Key) error {
	if _, ok := key.(Ref); ok {
		return ErrRefNotFound
	}
	return ErrOutOfRange
}

func (g *Grid) validateRow(row *Dict) error {
	if row == nil {
		return ErrNilRow
	}
	if v, ok := row.Get("id"); ok {
		if _, isRef := v.(Ref); !isRef {
			return fmt.Errorf("id is %s: %w", v.Kind(), ErrIDNotRef)
		}
	}
	return g.acceptDict(row)
}

// Reindex rebuilds the Ref index. It panics when a row's id tag is not a
// Ref: such a row can only come from editing rows behind the grid's back.
func (g *Grid) Reindex() {
	g.index = make(map[string]*Dict, len(g.rows))
	for i, row := range g.rows {
		v, ok := row.Get("id")
		if !ok {
			continue
		}
		ref, ok := v.(Ref)
		if !ok {
			panic(fmt.Sprintf("grid: row %d has an id of kind %s, not ref", i, v.Kind()))
		}
		g.index[ref.ID] = row
	}
}

// InvalidateIndex marks the index stale after rows were edited in place.
func (g *Grid) InvalidateIndex() {
	g.index = nil
}

func (g *Grid) ensureIndex() {
	if g.index == nil {
		g.Reindex()
	}
}

// PackColumns drops declared columns that no row populates.
func (g *Grid) PackColumns() {
	g.cols = slices.DeleteFunc(g.cols, func(c Column) bool {
		for _, row := range g.rows {
			if row.Has(c.Name) {
				return false
			}
		}
		return true
	})
}

// ExtendColumns declares every tag used by a row but not yet declared,
// in first-seen order.
func (g *Grid) ExtendColumns() {
	for _, row := range g.rows {
		for k := range row.All() {
			if !g.HasColumn(k) {
				g.cols = append(g.cols, Column{Name: k, Meta: NewDict()})
			}
		}
	}
}

// Sort orders rows by the value of tag, stable. Rows without the tag come
// first; values that cannot be compared keep their relative order.
func (g *Grid) Sort(tag string) {
	slices.SortStableFunc(g.rows, func(a, b *Dict) int {
		va, okA := a.Get(tag)
		vb, okB := b.Get(tag)
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return -1
		case !okB:
			return 1
		}
		c, _ := Compare(va, vb)
		return c
	})
}

// Copy returns a deep copy. The index is rebuilt on first use.
func (g *Grid) Copy() *Grid {
	if g == nil {
		return nil
	}
	out := &Grid{
		version: g.version,
		pinned:  g.pinned,
		meta:    g.meta.Clone(),
		cols:    make([]Column, len(g.cols)),
		rows:    make([]*Dict, len(g.rows)),
	}
	for i, c := range g.cols {
		out.cols[i] = Column{Name: c.Name, Meta: c.Meta.Clone()}
	}
	for i, row := range g.rows {
		out.rows[i] = row.Clone()
	}
	return out
}

// Slice returns a grid over rows [from, to). Metadata and rows are shared
// with g.
func (g *Grid) Slice(from, to int) *Grid {
	from = max(0, min(from, len(g.rows)))
	to = max(from, min(to, len(g.rows)))
	out := g.view()
	out.rows = slices.Clone(g.rows[from:to])
	return out
}

// Select returns a grid holding the rows matching pred, at most limit of
// them when limit > 0. Metadata and rows are shared with g.
func (g *Grid) Select(pred Predicate, limit int) *Grid {
	out := g.view()
	for _, row := range g.rows {
		if limit > 0 && len(out.rows) >= limit {
			break
		}
		if pred(g, row) {
			out.rows = append(out.rows, row)
		}
	}
	return out
}

func (g *Grid) view() *Grid {
	return &Grid{
		version: g.version,
		pinned:  g.pinned,
		meta:    g.meta,
		cols:    slices.Clone(g.cols),
	}
}

// Equal reports whether two grids hold the same content: same metadata
// keys with approximately equal values, same columns with equal metadata,
// and rows matched pairwise against not yet matched rows, looked up by id
// when a row has one and otherwise by content. Row order does not matter
// and each row of b matches at most one row of a, even with duplicate ids.
func Equal(a, b *Grid) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !sameKeys(a.meta, b.meta) || !DictApproxEqual(a.meta, b.meta) {
		return false
	}
	if len(a.cols) != len(b.cols) {
		return false
	}
	for _, c := range a.cols {
		other, ok := b.Column(c.Name)
		if !ok || !sameKeys(c.Meta, other.Meta) || !DictApproxEqual(c.Meta, other.Meta) {
			return false
		}
	}
	if len(a.rows) != len(b.rows) {
		return false
	}

	consumed := make([]bool, len(b.rows))
	for _, row := range a.rows {
		var j int
		if id, ok := row.ID(); ok {
			other, found := b.Get(id)
			if !found {
				return false
			}
			j = slices.Index(b.rows, other)
			if consumed[j] || !DictApproxEqual(row, other) {
				// Duplicate ids: fall back to any unmatched equal row.
				j = unmatchedEqual(row, b.rows, consumed)
			}
		} else {
			j = unmatchedEqual(row, b.rows, consumed)
		}
		if j < 0 {
			return false
		}
		consumed[j] = true
	}
	return true
}

func unmatchedEqual(row *Dict, rows []*Dict, consumed []bool) int {
	for j, other := range rows {
		if !consumed[j] && DictApproxEqual(row, other) {
			return j
		}
	}
	return -1
}

func sameKeys(a, b *Dict) bool {
	if a.Len() != b.Len() {
		return false
	}
	for k := range a.All() {
		if !b.Has(k) {
			return false
		}
	}
	return true
}

func dictVersion(d *Dict) Version {
	req := Ver2_0
	for _, v := range d.All() {
		req = maxVersion(req, MinVersion(v))
	}
	return req
}

func maxVersion(a, b Version) Version {
	if a.Less(b) {
		return b
	}
	return a
}
