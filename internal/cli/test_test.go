package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScenario = `name: sites
description: "site filter"
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
      ids: ["a"]
`

func writeScenario(t *testing.T, dir, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
}

func TestTestCommandMissingArgs(t *testing.T) {
	workdir(t)
	_, err := execute(t, "", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	workdir(t)
	out, err := execute(t, "", "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenarios directory not found")
}

func TestTestCommandNoScenarios(t *testing.T) {
	dir, _ := workdir(t)
	out, err := execute(t, "", "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandGoldenLifecycle(t *testing.T) {
	dir, _ := workdir(t)
	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0o755))
	writeScenario(t, scenarios, "sites.yaml", sampleScenario)

	out, err := execute(t, "", "test", scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sites")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")

	_, err = execute(t, "", "test", scenarios, "--update")
	require.NoError(t, err)
	golden, err := os.ReadFile(filepath.Join(scenarios, "golden", "sites.golden"))
	require.NoError(t, err)
	assert.Equal(t, "# sites\n## 0 filter\nver:\"3.0\"\nid,site\n@a,M\n", string(golden))

	_, err = execute(t, "", "test", scenarios)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "golden", "sites.golden"), []byte("# sites\n"), 0o644))
	out, err = execute(t, "", "test", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ sites")
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandFilterAndJSON(t *testing.T) {
	dir, _ := workdir(t)
	writeScenario(t, dir, "sites.yaml", sampleScenario)
	writeScenario(t, dir, "broken.yaml", "name: broken\n")

	out, err := execute(t, "", "test", dir, "--filter", "site*", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)

	out, err = execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "description is required")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}
