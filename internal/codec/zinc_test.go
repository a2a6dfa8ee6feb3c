package codec

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pprados/haystackapi/internal/grid"
)

func TestZinc_DecodeScalars(t *testing.T) {
	paris, err := grid.LoadZone("Paris")
	require.NoError(t, err)

	tests := []struct {
		in   string
		want grid.Value
	}{
		{"N", grid.Null{}},
		{"M", grid.Marker{}},
		{"NA", grid.NA{}},
		{"R", grid.Remove{}},
		{"T", grid.Bool(true)},
		{"F", grid.Bool(false)},
		{"-12", grid.N(-12)},
		{"1_000.5", grid.N(1000.5)},
		{"5.4e-3", grid.N(0.0054)},
		{"72.5°F", grid.Q(72.5, "°F")},
		{"100%", grid.Q(100, "%")},
		{"3kW/h", grid.Q(3, "kW/h")},
		{"-INF", grid.N(math.Inf(-1))},
		{`"tab\there \u00e9 \$"`, grid.Str("tab\there é $")},
		{`"\ud83d\ude00"`, grid.Str("😀")},
		{"`http://host/a\\#b`", grid.URI(`http://host/a\#b`)},
		{"@site.1", grid.R("site.1")},
		{`@p:a-b~c "Point"`, grid.Ref{ID: "p:a-b~c", Dis: "Point"}},
		{"Bin(image/png)", grid.Bin("image/png")},
		{`Bin("text/plain")`, grid.Bin("text/plain")},
		{`Span("2024-01-01")`, grid.XStr{Type: "Span", Val: "2024-01-01"}},
		{"C(-12.5,45)", grid.Coord{Lat: -12.5, Lng: 45}},
		{"2024-02-29", grid.Date{Year: 2024, Month: time.February, Day: 29}},
		{"23:59", grid.Time{Hour: 23, Minute: 59}},
		{"08:00:01.5", grid.Time{Hour: 8, Second: 1, Nanosecond: 500_000_000}},
		{"2024-06-01T12:00:00+02:00 Paris", grid.DT(time.Date(2024, 6, 1, 12, 0, 0, 0, paris))},
		{"2024-06-01T10:00:00Z", grid.DT(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))},
		{"[1, 2,]", grid.List{grid.N(1), grid.N(2)}},
		{"[]", grid.List{}},
		{"{a b:1, c:\"x\",}", grid.NewDict(grid.P("a", grid.Marker{}), grid.P("b", grid.N(1)), grid.P("c", grid.Str("x")))},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DecodeScalar(tt.in, Zinc, grid.Ver3_0)
			require.NoError(t, err)
			assert.True(t, grid.ApproxEqual(tt.want, got), "got %#v", got)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestZinc_DateTimeOffsetWithoutZoneIsUTC(t *testing.T) {
	v, err := DecodeScalar("2024-06-01T12:00:00-04:00", Zinc, grid.Ver3_0)
	require.NoError(t, err)
	dt := v.(grid.DateTime)
	assert.Equal(t, time.UTC, dt.Location())
	assert.Equal(t, 16, dt.Hour())
}

func TestZinc_DateTimeKeepsZone(t *testing.T) {
	v, err := DecodeScalar("2024-01-02T03:04:05-05:00 New_York", Zinc, grid.Ver3_0)
	require.NoError(t, err)
	dt := v.(grid.DateTime)
	assert.Equal(t, "America/New_York", dt.Location().String())
	assert.Equal(t, "2024-01-02T03:04:05-05:00 New_York", dt.String())
}

func TestZinc_DecodeErrors(t *testing.T) {
	bad := []string{
		`"unterminated`,
		`"bad \q escape"`,
		"2024-13-01",
		"25:00",
		"C(1)",
		"foo",
		"[1 2]",
		"?",
	}
	for _, in := range bad {
		t.Run(in, func(t *testing.T) {
			_, err := DecodeScalar(in, Zinc, grid.Ver3_0)
			assert.Error(t, err)
		})
	}
}

func TestZinc_ScanScalarReportsConsumed(t *testing.T) {
	v, n, err := ScanScalar(`@a and b`)
	require.NoError(t, err)
	assert.Equal(t, grid.R("a"), v)
	assert.Equal(t, 2, n)

	v, n, err = ScanScalar(`12.5kW)`)
	require.NoError(t, err)
	assert.Equal(t, grid.Q(12.5, "kW"), v)
	assert.Equal(t, 6, n)
}

func TestZinc_DecodeGrid(t *testing.T) {
	text := "ver:\"3.0\" database:\"test\" dis:\"Title\"\n" +
		"id, dis doc:\"display\", val\n" +
		"@a,\"A\",1\n" +
		",\"no id\",\n" +
		"@b,N,<<ver:\"3.0\"\nx\n[1,2]\n>>\n"

	g, err := Decode(text, Zinc)
	require.NoError(t, err)

	assert.Equal(t, []string{"database", "dis"}, g.Meta().Keys())
	assert.Equal(t, []string{"id", "dis", "val"}, g.ColumnNames())
	col, _ := g.Column("dis")
	assert.Equal(t, grid.Str("display"), mustValue(t, col.Meta, "doc"))
	require.Equal(t, 3, g.Len())

	assert.False(t, g.Row(1).Has("id"))
	assert.False(t, g.Row(1).Has("val"), "empty cell is absent")
	assert.False(t, g.Row(2).Has("dis"), "null cell is absent")

	nested, ok := mustValue(t, g.Row(2), "val").(*grid.Grid)
	require.True(t, ok)
	assert.Equal(t, 1, nested.Len())
}

func TestZinc_SingleColumnAbsentCell(t *testing.T) {
	g := grid.New()
	require.NoError(t, g.AddColumn("a", nil))
	require.NoError(t, g.Append(grid.NewDict(), grid.NewDict(grid.P("a", grid.N(1)))))

	text, err := Encode(g, Zinc)
	require.NoError(t, err)
	assert.Equal(t, "ver:\"2.0\"\na\nN\n1\n", text)

	back, err := Decode(text, Zinc)
	require.NoError(t, err)
	assert.Equal(t, 2, back.Len())
}

func TestZinc_VersionHeaderPinsGrid(t *testing.T) {
	g, err := Decode("ver:\"2.0\"\na\nM\n", Zinc)
	require.NoError(t, err)
	assert.True(t, g.Pinned())
	assert.Equal(t, grid.Ver2_0, g.Version())

	_, err = Decode("ver:\"2.0\"\na\nNA\n", Zinc)
	assert.Error(t, err)
}

func TestZinc_NumberFormatting(t *testing.T) {
	tests := []struct {
		in   grid.Number
		want string
	}{
		{grid.N(1234567), "1234567"},
		{grid.N(0.5), "0.5"},
		{grid.N(1e-9), "1e-09"},
		{grid.N(math.NaN()), "NaN"},
		{grid.N(math.Inf(1)), "INF"},
		{grid.Q(-3, "m²"), "-3m²"},
	}
	for _, tt := range tests {
		text, err := EncodeScalar(tt.in, Zinc, grid.Ver3_0)
		require.NoError(t, err)
		assert.Equal(t, tt.want, text)
	}
}

func TestEscape_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "plain", "a\"b", "$x", "back\\slash", "é😀", "\x01"} {
		got, err := unescape(escapeStr(s), false)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := unescape(escapeURI("a`b\\c"), true)
	require.NoError(t, err)
	assert.Equal(t, "a`b\\c", got)
}

func mustValue(t *testing.T, d *grid.Dict, k string) grid.Value {
	t.Helper()
	v, ok := d.Get(k)
	require.True(t, ok, "missing %s", k)
	return v
}
