package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pprados/haystackapi/internal/grid"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"filter_site_model", "merge_patch"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

func TestTranscript(t *testing.T) {
	g := grid.NewVersion(grid.Ver3_0)
	_ = g.AddColumn("id", nil)
	_ = g.Append(grid.NewDict(grid.P("id", grid.R("a"))))

	result := NewResult()
	result.AddStep(StepResult{Index: 0, Op: OpRead, Grid: g})
	result.AddStep(StepResult{Index: 1, Op: OpImport, Seq: 3, Changed: false})
	result.AddStep(StepResult{Index: 2, Op: OpDecode, Err: errors.New("zinc parse error at line 1, column 9: x")})

	out, err := Transcript("t", result)
	require.NoError(t, err)
	assert.Equal(t, "# t\n"+
		"## 0 read\nver:\"3.0\"\nid\n@a\n"+
		"## 1 import\nseq=3 changed=false\n"+
		"## 2 decode\nerror\n", string(out))
}
