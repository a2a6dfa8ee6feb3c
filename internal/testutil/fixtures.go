// Package testutil holds fixtures shared by the tests of several packages.
package testutil

import (
	"time"

	"github.com/pprados/haystackapi/internal/grid"
)

// SampleGrid returns two entities, id1 and id2, whose "col" tags are
// 1+offset and 2+offset, with grid meta v set to label.
func SampleGrid(offset float64, label string) *grid.Grid {
	g := grid.NewVersion(grid.Ver3_0)
	_ = g.SetMeta("v", grid.Str(label))
	_ = g.AddColumn("id", nil)
	_ = g.AddColumn("col", nil)
	_ = g.AddColumn("dis", nil)
	_ = g.Append(
		grid.NewDict(grid.P("id", grid.R("id1")), grid.P("col", grid.N(1+offset)), grid.P("dis", grid.Str("Dis 1"))),
		grid.NewDict(grid.P("id", grid.R("id2")), grid.P("col", grid.N(2+offset)), grid.P("dis", grid.Str("Dis 2"))),
	)
	return g
}

// VersionedGrids returns three successive versions of SampleGrid, one
// second apart starting just after FakeNow.
func VersionedGrids() []Versioned {
	return []Versioned{
		{At: FakeNow.Add(1 * time.Second), Grid: SampleGrid(0, "1")},
		{At: FakeNow.Add(2 * time.Second), Grid: SampleGrid(2, "2")},
		{At: FakeNow.Add(3 * time.Second), Grid: SampleGrid(4, "last")},
	}
}

// Versioned is a grid and the instant it became current.
type Versioned struct {
	At   time.Time
	Grid *grid.Grid
}

// SiteGrid returns a small site model: a site, an equip and two points,
// one of them historized and writable.
func SiteGrid() *grid.Grid {
	g := grid.New()
	_ = g.Append(
		grid.NewDict(
			grid.P("id", grid.Ref{ID: "site", Dis: "Main"}),
			grid.P("site", grid.Marker{}),
			grid.P("dis", grid.Str("Main")),
			grid.P("area", grid.Q(5000, "ft²")),
			grid.P("tz", grid.Str("Paris")),
		),
		grid.NewDict(
			grid.P("id", grid.R("ahu")),
			grid.P("equip", grid.Marker{}),
			grid.P("ahu", grid.Marker{}),
			grid.P("siteRef", grid.R("site")),
		),
		grid.NewDict(
			grid.P("id", grid.R("temp")),
			grid.P("point", grid.Marker{}),
			grid.P("his", grid.Marker{}),
			grid.P("kind", grid.Str("Number")),
			grid.P("unit", grid.Str("°C")),
			grid.P("equipRef", grid.R("ahu")),
			grid.P("curVal", grid.Q(21.5, "°C")),
		),
		grid.NewDict(
			grid.P("id", grid.R("sp")),
			grid.P("point", grid.Marker{}),
			grid.P("writable", grid.Marker{}),
			grid.P("kind", grid.Str("Number")),
			grid.P("equipRef", grid.R("ahu")),
		),
	)
	g.ExtendColumns()
	return g
}

// Series returns n hourly samples starting at start, val counting from 0.
func Series(start time.Time, n int) *grid.Grid {
	g := grid.New()
	_ = g.AddColumn("ts", nil)
	_ = g.AddColumn("val", nil)
	for i := 0; i < n; i++ {
		_ = g.Append(grid.NewDict(
			grid.P("ts", grid.DT(start.Add(time.Duration(i)*time.Hour))),
			grid.P("val", grid.N(float64(i))),
		))
	}
	return g
}
