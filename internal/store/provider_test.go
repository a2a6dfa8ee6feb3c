package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pprados/haystackapi/internal/grid"
	"github.com/pprados/haystackapi/internal/provider"
	"github.com/pprados/haystackapi/internal/testutil"
)

func siteStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t, WithName("test"))
	_, _, err := s.Import(context.Background(), testutil.SiteGrid(), testutil.FakeNow)
	require.NoError(t, err)
	return s
}

func TestStore_Capabilities(t *testing.T) {
	s := createTestStore(t)
	g := provider.Ops(s)
	assert.Equal(t, 6, g.Len())
	assert.Equal(t, "sqlite", s.Name())
}

func TestStore_ReadFilterAndSelect(t *testing.T) {
	ctx := context.Background()
	s := siteStore(t)

	g, err := s.Read(ctx, provider.ReadRequest{Filter: "point and equipRef->siteRef->site", Select: "id,kind"})
	require.NoError(t, err)
	assert.Equal(t, []grid.Ref{grid.R("temp"), grid.R("sp")}, g.Refs())
	assert.Equal(t, []string{"id", "kind"}, g.ColumnNames())

	g, err = s.Read(ctx, provider.ReadRequest{IDs: []grid.Ref{grid.R("site")}})
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())
	id, _ := g.Row(0).ID()
	assert.Equal(t, "Main", id.Dis)
}

func TestStore_ValuesForTag(t *testing.T) {
	ctx := context.Background()
	s := siteStore(t)

	values, err := s.ValuesForTag(ctx, "equipRef", time.Time{})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "ahu", values[0].(grid.Ref).ID)

	values, err = s.ValuesForTag(ctx, "kind", testutil.FakeNow.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestStore_HisRead(t *testing.T) {
	ctx := context.Background()
	s := siteStore(t)
	start := time.Date(2021, 1, 1, 22, 0, 0, 0, time.UTC)

	require.NoError(t, s.ImportHistory(ctx, grid.R("temp"), testutil.Series(start, 4)))
	// Re-importing a sample replaces it.
	fix := grid.New()
	require.NoError(t, fix.Append(grid.NewDict(grid.P("ts", grid.DT(start)), grid.P("val", grid.N(-1)))))
	require.NoError(t, s.ImportHistory(ctx, grid.R("temp"), fix))

	r, err := provider.ParseDateRange("2021-01-01", time.UTC, start)
	require.NoError(t, err)
	his, err := s.HisRead(ctx, grid.R("temp"), r, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, his.Len())
	v, _ := his.Row(0).Get("val")
	assert.Equal(t, grid.N(-1), v)
	ref, _ := his.Meta().Get("id")
	assert.Equal(t, grid.R("temp"), ref)

	all, err := s.HisRead(ctx, grid.R("temp"), provider.DateRange{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Len())

	_, err = s.HisRead(ctx, grid.R("ghost"), provider.DateRange{}, time.Time{})
	assert.ErrorIs(t, err, provider.ErrNotFound)

	bad := grid.New()
	require.NoError(t, bad.Append(grid.NewDict(grid.P("val", grid.N(1)))))
	assert.Error(t, s.ImportHistory(ctx, grid.R("temp"), bad))
}

func TestStore_PointWrite(t *testing.T) {
	ctx := context.Background()
	s := siteStore(t)

	require.NoError(t, s.WritePoint(ctx, grid.R("sp"), 8, grid.Q(21, "°C"), "admin"))
	require.NoError(t, s.WritePoint(ctx, grid.R("sp"), 16, grid.Q(19, "°C"), ""))
	assert.ErrorIs(t, s.WritePoint(ctx, grid.R("sp"), 0, grid.N(1), ""), provider.ErrInvalidLevel)

	g, err := s.PointWriteRead(ctx, grid.R("sp"), time.Time{})
	require.NoError(t, err)
	require.Equal(t, provider.Levels, g.Len())
	v, _ := g.Row(7).Get("val")
	assert.True(t, grid.ApproxEqual(grid.Q(21, "°C"), v))
	who, _ := g.Row(7).Get("who")
	assert.Equal(t, grid.Str("admin"), who)

	require.NoError(t, s.WritePoint(ctx, grid.R("sp"), 8, grid.Null{}, ""))
	g, err = s.PointWriteRead(ctx, grid.R("sp"), time.Time{})
	require.NoError(t, err)
	assert.False(t, g.Row(7).Has("val"))
	assert.True(t, g.Row(15).Has("val"))

	_, err = s.PointWriteRead(ctx, grid.R("sp"), testutil.FakeNow.Add(-time.Hour))
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestStore_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithCacheSize(2))
	populate(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := testutil.VersionedGrids()[i%3]
			g, err := s.Read(ctx, provider.ReadRequest{Version: v.At, Filter: "col > 0"})
			assert.NoError(t, err)
			assert.True(t, grid.Equal(v.Grid, g))
		}()
	}
	wg.Wait()
}
