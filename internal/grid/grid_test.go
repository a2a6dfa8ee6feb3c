package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGrid(t *testing.T) *Grid {
	t.Helper()
	g := New()
	require.NoError(t, g.AddColumn("id", nil))
	require.NoError(t, g.AddColumn("col", nil))
	require.NoError(t, g.AddColumn("dis", nil))
	require.NoError(t, g.Append(
		NewDict(P("id", R("id1")), P("col", N(1)), P("dis", Str("Dis 1"))),
		NewDict(P("id", R("id2")), P("col", N(2)), P("dis", Str("Dis 2"))),
	))
	return g
}

func TestGrid_GetByRef(t *testing.T) {
	g := sampleGrid(t)

	row, ok := g.Get(R("id2"))
	require.True(t, ok)
	assert.Equal(t, Str("Dis 2"), mustGet(t, row, "dis"))

	_, ok = g.Get(R("missing"))
	assert.False(t, ok)
}

func TestGrid_InsertKeepsIndexCurrent(t *testing.T) {
	g := sampleGrid(t)
	_, _ = g.Get(R("id1")) // build index

	require.NoError(t, g.Insert(0, NewDict(P("id", R("id0")), P("col", N(0)))))
	assert.Equal(t, 3, g.Len())
	assert.True(t, g.Has(R("id0")))

	first, _ := g.Row(0).ID()
	assert.Equal(t, "id0", first.ID)
}

func TestGrid_InsertValidation(t *testing.T) {
	g := sampleGrid(t)

	err := g.Insert(0, nil)
	assert.ErrorIs(t, err, ErrNilRow)

	err = g.Insert(5, NewDict())
	assert.ErrorIs(t, err, ErrOutOfRange)

	err = g.Append(NewDict(P("id", Str("not-a-ref"))))
	assert.ErrorIs(t, err, ErrIDNotRef)
	assert.Equal(t, 2, g.Len())
}

func TestGrid_ReplaceByRef(t *testing.T) {
	g := sampleGrid(t)

	require.NoError(t, g.Replace(R("id1"), NewDict(P("id", R("id9")), P("col", N(9)))))
	assert.False(t, g.Has(R("id1")))
	assert.True(t, g.Has(R("id9")))

	err := g.Replace(R("nope"), NewDict())
	assert.ErrorIs(t, err, ErrRefNotFound)
}

func TestGrid_ReplaceByPos(t *testing.T) {
	g := sampleGrid(t)
	_, _ = g.Get(R("id1"))

	require.NoError(t, g.Replace(Pos(1), NewDict(P("dis", Str("no id")))))
	assert.False(t, g.Has(R("id2")))
	assert.Equal(t, Str("no id"), mustGet(t, g.Row(1), "dis"))

	err := g.Replace(Pos(7), NewDict())
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestGrid_DeleteMultipleKeys(t *testing.T) {
	g := sampleGrid(t)
	require.NoError(t, g.Append(NewDict(P("id", R("id3")), P("col", N(3)))))

	removed, ok := g.Delete(Pos(0), R("id3"))
	require.True(t, ok)
	id, _ := removed.ID()
	assert.Equal(t, "id1", id.ID)

	require.Equal(t, 1, g.Len())
	assert.True(t, g.Has(R("id2")))
	assert.False(t, g.Has(R("id3")))
}

func TestGrid_DeleteNothing(t *testing.T) {
	g := sampleGrid(t)
	removed, ok := g.Delete(Pos(10), R("nope"))
	assert.False(t, ok)
	assert.Nil(t, removed)
	assert.Equal(t, 2, g.Len())
}

func TestGrid_ReindexPanicsOnNonRefID(t *testing.T) {
	g := sampleGrid(t)
	g.Row(0).Set("id", Str("broken"))
	g.InvalidateIndex()

	assert.Panics(t, func() { g.Reindex() })
}

func TestGrid_VersionGating(t *testing.T) {
	t.Run("pinned grid refuses NA", func(t *testing.T) {
		g := NewVersion(Ver2_0)
		err := g.Append(NewDict(P("v", NA{})))

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrVersionTooLow))
		var verr *VersionError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, Ver3_0, verr.Required)
		assert.Equal(t, 0, g.Len())
		assert.Equal(t, Ver2_0, g.Version())
	})

	t.Run("unpinned grid is raised", func(t *testing.T) {
		g := New()
		assert.Equal(t, Ver2_0, g.Version())
		require.NoError(t, g.Append(NewDict(P("v", NA{}))))
		assert.Equal(t, Ver3_0, g.Version())
		assert.False(t, g.Pinned())
	})

	t.Run("metadata is gated too", func(t *testing.T) {
		g := NewVersion(Ver2_0)
		assert.ErrorIs(t, g.SetMeta("tags", List{Str("a")}), ErrVersionTooLow)
		assert.ErrorIs(t, g.AddColumn("c", NewDict(P("x", NewDict()))), ErrVersionTooLow)
		assert.False(t, g.HasColumn("c"))
	})

	t.Run("pin below content fails", func(t *testing.T) {
		g := New()
		require.NoError(t, g.Append(NewDict(P("v", List{}))))
		assert.ErrorIs(t, g.SetVersion(Ver2_0), ErrVersionTooLow)
		require.NoError(t, g.SetVersion(Ver3_0))
		assert.True(t, g.Pinned())
	})
}

func TestGrid_PackColumns(t *testing.T) {
	g := New()
	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddColumn(c, nil))
	}
	require.NoError(t, g.Append(
		NewDict(P("a", N(1))),
		NewDict(P("b", N(2))),
	))

	g.PackColumns()
	assert.Equal(t, []string{"a", "b"}, g.ColumnNames())
}

func TestGrid_ExtendColumns(t *testing.T) {
	g := New()
	require.NoError(t, g.AddColumn("a", nil))
	require.NoError(t, g.Append(
		NewDict(P("a", N(1)), P("z", Marker{})),
		NewDict(P("y", Str("x")), P("z", Marker{})),
	))

	g.ExtendColumns()
	assert.Equal(t, []string{"a", "z", "y"}, g.ColumnNames())
	col, ok := g.Column("y")
	require.True(t, ok)
	assert.Equal(t, 0, col.Meta.Len())
}

func TestGrid_SortStable(t *testing.T) {
	g := New()
	require.NoError(t, g.Append(
		NewDict(P("n", N(3)), P("tag", Str("a"))),
		NewDict(P("n", N(1)), P("tag", Str("b"))),
		NewDict(P("tag", Str("no n"))),
		NewDict(P("n", N(1)), P("tag", Str("c"))),
	))

	g.Sort("n")

	var got []Value
	for _, row := range g.All() {
		got = append(got, mustGet(t, row, "tag"))
	}
	assert.Equal(t, []Value{Str("no n"), Str("b"), Str("c"), Str("a")}, got)
}

func TestGrid_CopyIsDeep(t *testing.T) {
	g := sampleGrid(t)
	require.NoError(t, g.SetMeta("site", Marker{}))
	cp := g.Copy()

	require.True(t, Equal(g, cp))
	cp.Row(0).Set("dis", Str("changed"))
	cp.Meta().Set("extra", Str("x"))

	assert.Equal(t, Str("Dis 1"), mustGet(t, g.Row(0), "dis"))
	assert.False(t, g.Meta().Has("extra"))
	assert.True(t, cp.Has(R("id1")))
}

func TestGrid_SliceSharesRows(t *testing.T) {
	g := sampleGrid(t)
	s := g.Slice(1, 10)

	require.Equal(t, 1, s.Len())
	assert.Same(t, g.Row(1), s.Row(0))
	assert.Equal(t, g.ColumnNames(), s.ColumnNames())
	assert.True(t, s.Has(R("id2")))
	assert.False(t, s.Has(R("id1")))
}

func TestGrid_Select(t *testing.T) {
	g := sampleGrid(t)
	all := func(*Grid, *Dict) bool { return true }

	assert.Equal(t, 2, g.Select(all, 0).Len())
	assert.Equal(t, 1, g.Select(all, 1).Len())
	assert.Equal(t, 0, g.Select(func(*Grid, *Dict) bool { return false }, 0).Len())
}

func TestEqual(t *testing.T) {
	base := func() *Grid {
		g := New()
		require.NoError(t, g.AddColumn("id", nil))
		require.NoError(t, g.AddColumn("v", NewDict(P("unit", Str("kW")))))
		require.NoError(t, g.SetMeta("site", Marker{}))
		require.NoError(t, g.Append(
			NewDict(P("id", R("a")), P("v", N(1))),
			NewDict(P("v", N(2))),
			NewDict(P("v", N(2))),
		))
		return g
	}

	tests := []struct {
		name  string
		edit  func(g *Grid)
		equal bool
	}{
		{"identical", func(*Grid) {}, true},
		{"row order ignored", func(g *Grid) { g.Sort("v"); g.rows[0], g.rows[2] = g.rows[2], g.rows[0] }, true},
		{"within tolerance", func(g *Grid) { g.Row(0).Set("v", N(1+1e-7)) }, true},
		{"value changed", func(g *Grid) { g.Row(0).Set("v", N(1.1)) }, false},
		{"duplicate consumed", func(g *Grid) { g.Row(2).Set("v", N(1)) }, false},
		{"meta value changed", func(g *Grid) { g.Meta().Set("site", Str("x")) }, false},
		{"meta key added", func(g *Grid) { g.Meta().Set("extra", Marker{}) }, false},
		{"column meta changed", func(g *Grid) { _ = g.AddColumn("v", NewDict()) }, false},
		{"column added", func(g *Grid) { _ = g.AddColumn("w", nil) }, false},
		{"row removed", func(g *Grid) { g.Delete(Pos(1)) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base()
			tt.edit(other)
			assert.Equal(t, tt.equal, Equal(base(), other))
			assert.Equal(t, tt.equal, Equal(other, base()))
		})
	}
}

func TestEqual_DuplicateIDs(t *testing.T) {
	twice := New()
	require.NoError(t, twice.AddColumn("id", nil))
	require.NoError(t, twice.AddColumn("v", nil))
	require.NoError(t, twice.Append(
		NewDict(P("id", R("a")), P("v", N(1))),
		NewDict(P("id", R("a")), P("v", N(1))),
	))

	once := New()
	require.NoError(t, once.AddColumn("id", nil))
	require.NoError(t, once.AddColumn("v", nil))
	require.NoError(t, once.Append(
		NewDict(P("id", R("a")), P("v", N(1))),
		NewDict(P("id", R("b")), P("v", N(2))),
	))
	assert.False(t, Equal(twice, once))
	assert.False(t, Equal(once, twice))

	same := New()
	require.NoError(t, same.AddColumn("id", nil))
	require.NoError(t, same.AddColumn("v", nil))
	require.NoError(t, same.Append(
		NewDict(P("id", R("a")), P("v", N(1))),
		NewDict(P("id", R("a")), P("v", N(1))),
	))
	assert.True(t, Equal(twice, same))

	mixed := New()
	require.NoError(t, mixed.AddColumn("id", nil))
	require.NoError(t, mixed.AddColumn("v", nil))
	require.NoError(t, mixed.Append(
		NewDict(P("id", R("a")), P("v", N(2))),
		NewDict(P("id", R("a")), P("v", N(1))),
	))
	assert.False(t, Equal(twice, mixed))
}

func mustGet(t *testing.T, d *Dict, k string) Value {
	t.Helper()
	v, ok := d.Get(k)
	require.True(t, ok, "missing tag %q", k)
	return v
}
