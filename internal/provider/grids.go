package provider

import (
	"time"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/grid"
)

// Product identification reported by About.
var (
	ProductName    = "Haystack Provider"
	ProductVersion = "0.1"
)

var bootTime = time.Now().Truncate(time.Second)

// Ops returns the ops grid: one row per operation p implements.
func Ops(p Provider) *grid.Grid {
	g := grid.NewVersion(grid.Ver3_0)
	_ = g.AddColumn("name", nil)
	_ = g.AddColumn("summary", nil)
	for _, op := range p.Capabilities().Ops() {
		_ = g.Append(grid.NewDict(
			grid.P("name", grid.Str(op.String())),
			grid.P("summary", grid.Str(op.Summary())),
		))
	}
	return g
}

// About returns the about grid. home is the URI the server is reached at;
// now supplies both the server time and the server zone.
func About(p Provider, home string, now time.Time) *grid.Grid {
	g := grid.NewVersion(grid.Ver3_0)
	row := grid.NewDict(
		grid.P("haystackVersion", grid.Str(grid.Ver3_0.String())),
		grid.P("tz", grid.Str(grid.ZoneName(now.Location()))),
		grid.P("serverName", grid.Str("haystack_"+p.Name())),
		grid.P("serverTime", grid.DT(now.Truncate(time.Second))),
		grid.P("serverBootTime", grid.DT(bootTime.In(now.Location()))),
		grid.P("productName", grid.Str(ProductName)),
		grid.P("productUri", grid.URI(home)),
		grid.P("productVersion", grid.Str(ProductVersion)),
		grid.P("moduleName", grid.Str(p.Name())),
		grid.P("moduleVersion", grid.Str(ProductVersion)),
	)
	_ = g.Append(row)
	g.ExtendColumns()
	return g
}

// Formats returns the formats grid: every codec, readable and writable.
func Formats() *grid.Grid {
	g := grid.NewVersion(grid.Ver3_0)
	for _, name := range []string{"mime", "receive", "send"} {
		_ = g.AddColumn(name, nil)
	}
	for _, f := range codec.Formats() {
		_ = g.Append(grid.NewDict(
			grid.P("mime", grid.Str(f.MIME())),
			grid.P("receive", grid.Marker{}),
			grid.P("send", grid.Marker{}),
		))
	}
	return g
}
