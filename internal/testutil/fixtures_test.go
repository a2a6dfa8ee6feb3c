package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pprados/haystackapi/internal/grid"
)

func TestVersionedGrids_Ordered(t *testing.T) {
	versions := VersionedGrids()
	require.Len(t, versions, 3)
	for i := 1; i < len(versions); i++ {
		assert.True(t, versions[i-1].At.Before(versions[i].At))
		assert.False(t, grid.Equal(versions[i-1].Grid, versions[i].Grid))
	}
}

func TestSiteGrid_Links(t *testing.T) {
	g := SiteGrid()
	assert.Equal(t, 4, g.Len())
	for _, id := range []string{"site", "ahu", "temp", "sp"} {
		assert.True(t, g.Has(grid.R(id)), id)
	}
}

func TestSeries(t *testing.T) {
	g := Series(FakeNow, 3)
	require.Equal(t, 3, g.Len())
	ts, _ := g.Row(2).Get("ts")
	assert.True(t, ts.(grid.DateTime).Equal(FakeNow.Add(2*time.Hour)))
}
