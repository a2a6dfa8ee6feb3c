package schema

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pprados/haystackapi/internal/grid"
	"github.com/pprados/haystackapi/internal/testutil"
)

func TestDefault_AcceptsSiteModel(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)
	assert.Equal(t, []string{"site", "equip", "point", "hisPoint"}, s.Entities())
	assert.Empty(t, s.Validate(testutil.SiteGrid()))
}

func TestDefault_ReportsBrokenRows(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	g := grid.New()
	require.NoError(t, g.Append(
		grid.NewDict(grid.P("id", grid.R("ahu")), grid.P("equip", grid.Marker{})),
		grid.NewDict(grid.P("id", grid.R("p")), grid.P("point", grid.Marker{}), grid.P("kind", grid.Str("Float"))),
		grid.NewDict(grid.P("id", grid.R("s")), grid.P("site", grid.Marker{}), grid.P("dis", grid.Str("S")), grid.P("area", grid.N(-1))),
		grid.NewDict(grid.P("id", grid.R("h")), grid.P("point", grid.Marker{}), grid.P("his", grid.Marker{}),
			grid.P("kind", grid.Str("Number")), grid.P("hisInterpolate", grid.Str("step"))),
	))

	got := s.Validate(g)
	require.Len(t, got, 4)

	assert.Equal(t, 0, got[0].Row)
	assert.Equal(t, "ahu", got[0].ID)
	assert.Equal(t, "equip", got[0].Entity)
	assert.Equal(t, "siteRef", got[0].Path)

	assert.Equal(t, 1, got[1].Row)
	assert.Equal(t, "point", got[1].Entity)
	assert.Equal(t, "kind", got[1].Path)

	assert.Equal(t, 2, got[2].Row)
	assert.Equal(t, "area", got[2].Path)

	assert.Equal(t, 3, got[3].Row)
	assert.Equal(t, "hisPoint", got[3].Entity)
	assert.Equal(t, "hisInterpolate", got[3].Path)

	for _, v := range got {
		assert.NotEmpty(t, v.Message)
		assert.Contains(t, v.Error(), "@"+v.ID)
	}
}

func TestCompile_CustomRules(t *testing.T) {
	src := `
entity: meter: {
	match: "elec and meter"
	rules: {
		dis: string
		loc?: {lat: >=-90 & <=90, lng: number}
		tags?: [...string]
		installed?: =~"^\\d{4}-\\d{2}-\\d{2}$"
	}
}
`
	s, err := Compile(src, "meters.cue")
	require.NoError(t, err)

	g := grid.New()
	require.NoError(t, g.Append(
		grid.NewDict(grid.P("elec", grid.Marker{}), grid.P("meter", grid.Marker{}), grid.P("dis", grid.Str("M1")),
			grid.P("loc", grid.Coord{Lat: 48.8, Lng: 2.3}),
			grid.P("tags", grid.List{grid.Str("a"), grid.Str("b")}),
			grid.P("installed", grid.Date{Year: 2020, Month: 1, Day: 2})),
		grid.NewDict(grid.P("elec", grid.Marker{}), grid.P("meter", grid.Marker{}), grid.P("dis", grid.N(3))),
		grid.NewDict(grid.P("elec", grid.Marker{}), grid.P("dis", grid.N(3))),
	))

	got := s.Validate(g)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Row)
	assert.Equal(t, "dis", got[0].Path)
	assert.Empty(t, got[0].ID)
}

func TestCompile_Errors(t *testing.T) {
	tests := map[string]struct {
		src   string
		field string
	}{
		"syntax":        {`entity: {`, "cue"},
		"no entity":     {`other: 1`, "entity"},
		"empty entity":  {`entity: {}`, "entity"},
		"no match":      {`entity: a: rules: {}`, "entity.a.match"},
		"match not str": {`entity: a: {match: 1, rules: {}}`, "entity.a.match"},
		"bad filter":    {`entity: a: {match: "a and", rules: {}}`, "entity.a.match"},
		"no rules":      {`entity: a: match: "a"`, "entity.a.rules"},
		"rules scalar":  {`entity: a: {match: "a", rules: 5}`, "entity.a.rules"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(tt.src, "bad.cue")
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.cue")
	require.NoError(t, os.WriteFile(path, []byte(`entity: s: {match: "site", rules: dis: string}`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, s.Entities())

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestRowData(t *testing.T) {
	nested := grid.New()
	require.NoError(t, nested.Append(grid.NewDict(grid.P("a", grid.N(1)))))

	row := grid.NewDict(
		grid.P("m", grid.Marker{}),
		grid.P("b", grid.Bool(false)),
		grid.P("n", grid.Q(5, "kW")),
		grid.P("nan", grid.N(math.NaN())),
		grid.P("inf", grid.N(math.Inf(-1))),
		grid.P("r", grid.Ref{ID: "x", Dis: "X"}),
		grid.P("u", grid.URI("http://a")),
		grid.P("na", grid.NA{}),
		grid.P("gone", grid.Remove{}),
		grid.P("x", grid.XStr{Type: "Color", Val: "red"}),
		grid.P("t", grid.Time{Hour: 8, Minute: 30}),
		grid.P("d", grid.NewDict(grid.P("k", grid.Str("v")))),
		grid.P("g", nested),
	)
	got := rowData(row)

	assert.Equal(t, map[string]any{
		"m":   true,
		"b":   false,
		"n":   5.0,
		"nan": "NaN",
		"inf": "-INF",
		"r":   "@x",
		"u":   "http://a",
		"na":  nil,
		"x":   "Color(red)",
		"t":   "08:30:00",
		"d":   map[string]any{"k": "v"},
		"g":   []any{map[string]any{"a": 1.0}},
	}, got)
}

func TestValidate_NestedPathRelativeToRules(t *testing.T) {
	s, err := Compile(`entity: meter: {match: "meter", rules: loc?: {lat: >=-90 & <=90, lng: number}}`, "meters.cue")
	require.NoError(t, err)

	g := grid.New()
	require.NoError(t, g.Append(
		grid.NewDict(grid.P("meter", grid.Marker{}), grid.P("loc", grid.Coord{Lat: 91, Lng: 2.3})),
	))
	got := s.Validate(g)
	require.Len(t, got, 1)
	assert.Equal(t, "loc.lat", got[0].Path)
}

func TestRelativePath(t *testing.T) {
	prefix := []string{"entity", "site", "rules"}
	assert.Equal(t, []string{"dis"}, relativePath([]string{"entity", "site", "rules", "dis"}, prefix))
	assert.Empty(t, relativePath(prefix, prefix))
	assert.Equal(t, []string{"entity", "equip"}, relativePath([]string{"entity", "equip"}, prefix))
	assert.Equal(t, []string{"other", "x"}, relativePath([]string{"other", "x"}, prefix))
}
