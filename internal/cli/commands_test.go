package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/grid"
	"github.com/pprados/haystackapi/internal/testutil"
)

// writeGrid encodes g into dir/name, the format following the suffix.
func writeGrid(t *testing.T, dir, name string, g *grid.Grid) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := codec.FormatFromPath(name)
	require.NoError(t, err)
	text, err := codec.Encode(g, f)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func decodeZinc(t *testing.T, text string) *grid.Grid {
	t.Helper()
	g, err := codec.Decode(text, codec.Zinc)
	require.NoError(t, err, text)
	return g
}

func rowIDs(g *grid.Grid) []string {
	ids := []string{}
	for _, row := range g.All() {
		if id, ok := row.ID(); ok {
			ids = append(ids, id.ID)
		}
	}
	return ids
}

func workdir(t *testing.T) (dir, db string) {
	t.Helper()
	dir = t.TempDir()
	t.Chdir(dir)
	return dir, filepath.Join(dir, "test.db")
}

func TestConvert(t *testing.T) {
	dir, _ := workdir(t)
	site := testutil.SiteGrid()
	path := writeGrid(t, dir, "site.zinc", site)

	out, err := execute(t, "", "convert", path, "--to", "json")
	require.NoError(t, err)
	back, err := codec.Decode(out, codec.JSON)
	require.NoError(t, err)
	assert.True(t, grid.Equal(site, back))

	csvPath := filepath.Join(dir, "site.csv")
	out, err = execute(t, "", "convert", path, "-o", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 1 grid(s)")
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,"), string(data))
}

func TestConvert_Stdin(t *testing.T) {
	workdir(t)
	text, err := codec.Encode(testutil.SampleGrid(0, "1"), codec.Zinc)
	require.NoError(t, err)

	out, err := execute(t, text, "convert", "-", "--to", "zinc")
	require.NoError(t, err)
	assert.True(t, grid.Equal(testutil.SampleGrid(0, "1"), decodeZinc(t, out)))
}

func TestConvert_Errors(t *testing.T) {
	dir, _ := workdir(t)

	out, err := execute(t, "", "convert", filepath.Join(dir, "missing.zinc"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeReadFailed)

	bad := filepath.Join(dir, "bad.zinc")
	require.NoError(t, os.WriteFile(bad, []byte("ver:\"3.0\"\nid,dis\n@a,\"unterminated\n"), 0o644))
	out, err = execute(t, "", "convert", bad)
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeParseFailed)

	unknown := filepath.Join(dir, "grid.xml")
	require.NoError(t, os.WriteFile(unknown, []byte("<grid/>"), 0o644))
	out, err = execute(t, "", "convert", unknown)
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeUnknownFormat)
}

func TestFilter(t *testing.T) {
	dir, _ := workdir(t)
	path := writeGrid(t, dir, "site.zinc", testutil.SiteGrid())

	out, err := execute(t, "", "filter", path, "point and his")
	require.NoError(t, err)
	assert.Equal(t, []string{"temp"}, rowIDs(decodeZinc(t, out)))

	out, err = execute(t, "", "filter", path, "equipRef->siteRef->dis == \"Main\"", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"temp"}, rowIDs(decodeZinc(t, out)))

	out, err = execute(t, "", "--format", "json", "filter", path, "point and")
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidFilter, resp.Error.Code)
}

func TestDiffThenMerge(t *testing.T) {
	dir, _ := workdir(t)
	v1 := writeGrid(t, dir, "v1.zinc", testutil.SampleGrid(0, "1"))
	v2 := writeGrid(t, dir, "v2.json", testutil.SampleGrid(2, "2"))

	out, err := execute(t, "", "diff", v1, v2)
	require.NoError(t, err)
	p := decodeZinc(t, out)
	assert.True(t, p.Meta().Has("diff_"))
	patchPath := filepath.Join(dir, "patch.zinc")
	require.NoError(t, os.WriteFile(patchPath, []byte(out), 0o644))

	out, err = execute(t, "", "merge", v1, patchPath)
	require.NoError(t, err)
	assert.True(t, grid.Equal(testutil.SampleGrid(2, "2"), decodeZinc(t, out)))
}

func TestImportReadVersions(t *testing.T) {
	dir, db := workdir(t)
	versions := testutil.VersionedGrids()
	for i, v := range versions {
		path := writeGrid(t, dir, "v.zinc", v.Grid)
		out, err := execute(t, "", "--db", db, "import", path, "--at", v.At.Format("2006-01-02T15:04:05Z07:00"))
		require.NoError(t, err, "version %d", i)
		assert.Contains(t, out, "✓ Version")
	}

	// Same grid again records nothing.
	path := writeGrid(t, dir, "v.zinc", versions[2].Grid)
	out, err := execute(t, "", "--db", db, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Unchanged")

	out, err = execute(t, "", "--db", db, "read")
	require.NoError(t, err)
	assert.True(t, grid.Equal(versions[2].Grid, decodeZinc(t, out)))

	at := versions[1].At.Add(500 * time.Millisecond).Format("2006-01-02T15:04:05.000Z07:00")
	out, err = execute(t, "", "--db", db, "read", "--at", at)
	require.NoError(t, err)
	assert.True(t, grid.Equal(versions[1].Grid, decodeZinc(t, out)))

	out, err = execute(t, "", "--db", db, "read", "--id", "@id2", "--select", "id,col")
	require.NoError(t, err)
	g := decodeZinc(t, out)
	assert.Equal(t, []string{"id2"}, rowIDs(g))
	assert.Equal(t, []string{"id", "col"}, g.ColumnNames())

	out, err = execute(t, "", "--db", db, "--format", "json", "versions")
	require.NoError(t, err)
	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Versions []VersionEntry `json:"versions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Versions, 3)
	for i, v := range resp.Data.Versions {
		assert.Equal(t, int64(i+1), v.Seq)
		assert.True(t, versions[i].At.Equal(v.At))
		assert.Len(t, v.Hash, 64)
	}

	out, err = execute(t, "", "--db", db, "versions")
	require.NoError(t, err)
	assert.Contains(t, out, "seq")
	assert.Contains(t, out, resp.Data.Versions[0].Hash[:12])
}

func TestRead_JSONEnvelope(t *testing.T) {
	dir, _ := workdir(t)
	path := writeGrid(t, dir, "site.zinc", testutil.SiteGrid())

	out, err := execute(t, "", "--format", "json", "read", "--file", path, "--filter", "site")
	require.NoError(t, err)
	var resp struct {
		Status string   `json:"status"`
		Data   GridData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	g, err := codec.Decode(string(resp.Data.Grid), codec.JSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"site"}, rowIDs(g))
}

func TestImport_OutOfOrder(t *testing.T) {
	dir, db := workdir(t)
	path := writeGrid(t, dir, "v.zinc", testutil.SampleGrid(0, "1"))
	_, err := execute(t, "", "--db", db, "import", path, "--at", "2021-01-01T00:00:00Z")
	require.NoError(t, err)

	path = writeGrid(t, dir, "v.zinc", testutil.SampleGrid(2, "2"))
	out, err := execute(t, "", "--db", db, "import", path, "--at", "2020-01-01T00:00:00Z")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeStoreFailed)
}

func TestValuesAndOps(t *testing.T) {
	dir, _ := workdir(t)
	path := writeGrid(t, dir, "site.zinc", testutil.SiteGrid())

	out, err := execute(t, "", "values", "kind", "--file", path)
	require.NoError(t, err)
	g := decodeZinc(t, out)
	require.Equal(t, 1, g.Len())
	v, _ := g.Row(0).Get("kind")
	assert.Equal(t, grid.Str("Number"), v)

	out, err = execute(t, "", "ops", "--file", path)
	require.NoError(t, err)
	names := []string{}
	for _, row := range decodeZinc(t, out).All() {
		n, _ := row.Get("name")
		names = append(names, string(n.(grid.Str)))
	}
	assert.Equal(t, []string{"about", "ops", "formats", "read", "pointWrite", "hisRead"}, names)

	out, err = execute(t, "", "--timezone", "Paris", "about", "--file", path)
	require.NoError(t, err)
	about := decodeZinc(t, out)
	tz, _ := about.Row(0).Get("tz")
	assert.Equal(t, grid.Str("Paris"), tz)

	out, err = execute(t, "", "--table", "formats")
	require.NoError(t, err)
	assert.Contains(t, out, "text/zinc")
}

func TestHis(t *testing.T) {
	dir, db := workdir(t)
	site := writeGrid(t, dir, "site.zinc", testutil.SiteGrid())
	series := writeGrid(t, dir, "temp.zinc", testutil.Series(testutil.FakeNow, 30))

	_, err := execute(t, "", "--db", db, "import", site)
	require.NoError(t, err)
	out, err := execute(t, "", "--db", db, "import", series, "--his", "@temp")
	require.NoError(t, err)
	assert.Contains(t, out, "30 sample(s)")

	out, err = execute(t, "", "--db", db, "his", "@temp", "--range", "today")
	require.NoError(t, err)
	assert.Equal(t, 24, decodeZinc(t, out).Len())

	out, err = execute(t, "", "--db", db, "his", "temp")
	require.NoError(t, err)
	assert.Equal(t, 30, decodeZinc(t, out).Len())

	out, err = execute(t, "", "--db", db, "his", "@temp", "--range", "last week")
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeInvalidRange)

	out, err = execute(t, "", "--db", db, "his", "@nothing")
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestPoint(t *testing.T) {
	dir, db := workdir(t)
	site := writeGrid(t, dir, "site.zinc", testutil.SiteGrid())
	_, err := execute(t, "", "--db", db, "import", site)
	require.NoError(t, err)

	out, err := execute(t, "", "--db", db, "point", "@sp", "--level", "8", "--val", "21.5°C", "--who", "operator")
	require.NoError(t, err)
	g := decodeZinc(t, out)
	require.Equal(t, 17, g.Len())
	val, _ := g.Row(7).Get("val")
	assert.True(t, grid.ApproxEqual(grid.Q(21.5, "°C"), val))
	who, _ := g.Row(7).Get("who")
	assert.Equal(t, grid.Str("operator"), who)

	out, err = execute(t, "", "--db", db, "point", "@sp", "--level", "8")
	require.NoError(t, err)
	assert.False(t, decodeZinc(t, out).Row(7).Has("val"))

	out, err = execute(t, "", "--db", db, "point", "@sp", "--level", "18", "--val", "1")
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeInvalidArg)
}

func TestValidate(t *testing.T) {
	dir, _ := workdir(t)
	good := writeGrid(t, dir, "site.zinc", testutil.SiteGrid())

	out, err := execute(t, "", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "All 4 row(s) valid")

	broken := grid.New()
	require.NoError(t, broken.Append(grid.NewDict(grid.P("id", grid.R("ahu")), grid.P("equip", grid.Marker{}))))
	broken.ExtendColumns()
	bad := writeGrid(t, dir, "bad.zinc", broken)
	text, err := os.ReadFile(bad)
	require.NoError(t, err)
	assert.Contains(t, string(text), "id,equip")

	out, err = execute(t, "", "validate", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "siteRef")

	rules := filepath.Join(dir, "rules.cue")
	require.NoError(t, os.WriteFile(rules, []byte(`entity: e: {match: "equip", rules: {}}`), 0o644))
	_, err = execute(t, "", "validate", bad, "--schema", rules)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(rules, []byte(`entity: e: {`), 0o644))
	out, err = execute(t, "", "--format", "json", "validate", bad, "--schema", rules)
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ErrCodeInvalidSchema, resp.Error.Code)
}
