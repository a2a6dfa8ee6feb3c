package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Steps, len(s.Steps))
		})
	}
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: failing
description: "expects the wrong rows"
grids:
  g:
    text: |
      ver:"3.0"
      id,site
      @a,M
      @b,
steps:
  - op: filter
    grid: g
    expr: site
    expect:
      ids: ["b"]
  - op: filter
    grid: g
    expr: "site =="
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "steps[0] filter: expect ids failed")
	assert.Contains(t, result.Errors[1], "steps[1] filter: unexpected error")
	require.Len(t, result.Steps, 2)
	assert.Error(t, result.Steps[1].Err)
}

func TestRun_BadInputGrid(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad_input
description: "input grid does not parse"
grids:
  g:
    text: "not zinc"
steps:
  - op: filter
    grid: g
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid g")
}

func TestRun_ImportUsesClock(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: clock
description: "imports without an instant take the stepping clock"
grids:
  a:
    text: |
      ver:"3.0"
      id
      @a
  b:
    text: |
      ver:"3.0"
      id
      @b
steps:
  - op: import
    grid: a
  - op: import
    grid: b
  - op: read
    at: "2020-10-01T00:00:00Z"
    expect:
      ids: ["a"]
  - op: read
    expect:
      ids: ["b"]
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(1), result.Steps[0].Seq)
	assert.Equal(t, int64(2), result.Steps[1].Seq)
}
