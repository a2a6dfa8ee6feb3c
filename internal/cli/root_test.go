package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pprados/haystackapi/internal/filter"
	"github.com/pprados/haystackapi/internal/testutil"
)

// execute runs the CLI in an empty working directory with a fixed clock.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&RootOptions{Now: func() time.Time { return testutil.FakeNow }})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	t.Cleanup(func() { _ = filter.SetCacheSize(filter.DefaultCacheSize) })
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "haystack", cmd.Use)
	assert.Contains(t, cmd.Long, "Haystack grids")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"convert", "filter", "diff", "merge", "import", "read", "versions",
		"values", "his", "point", "ops", "about", "formats", "validate", "test",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "db", "grid-format", "timezone", "filter-cache-size", "table"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestReadCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	readCmd, _, err := cmd.Find([]string{"read"})
	require.NoError(t, err)

	for _, name := range []string{"file", "at", "filter", "select", "limit", "id"} {
		assert.NotNil(t, readCmd.Flags().Lookup(name), name)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "", "--format", "invalid", "formats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestConfigFileApplies(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "haystack.yaml"), []byte("grid_format: csv\nfilter_cache_size: 7\n"), 0o644))

	out, err := execute(t, "", "formats")
	require.NoError(t, err)
	assert.Contains(t, out, "mime,receive,send")

	_, err = execute(t, "", "--filter-cache-size", "0", "formats")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
