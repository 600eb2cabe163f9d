package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig drops a minimal config file into a temp dir so commands
// never touch the user's home directory.
func writeTestConfig(t *testing.T, extra map[string]interface{}) string {
	t.Helper()

	dir := t.TempDir()
	cfg := map[string]interface{}{
		"provider": "anthropic",
		"model":    "claude-3-5-sonnet-20241022",
		"data_dir": dir,
		"logging": map[string]interface{}{
			"level": "error",
			"file":  filepath.Join(dir, "loom.log"),
		},
	}
	for k, v := range extra {
		cfg[k] = v
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(dir, "loom.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRunCommand(t *testing.T) {
	t.Run("should reject a run without a prompt", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"run"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)
		cmd.SetErr(output)

		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "arg")
	})

	t.Run("should fail without provider credentials", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "")
		cfgPath := writeTestConfig(t, nil)

		cmd := GetRootCmd()
		cmd.SetArgs([]string{"run", "--config", cfgPath, "hello"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)
		cmd.SetErr(output)

		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no API key")
	})

	t.Run("should answer with the scripted backend", func(t *testing.T) {
		cfgPath := writeTestConfig(t, nil)

		cmd := GetRootCmd()
		cmd.SetArgs([]string{"run", "--config", cfgPath, "--fake", "say", "hello"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)
		cmd.SetErr(output)

		err := cmd.Execute()
		require.NoError(t, err)
		assert.Contains(t, output.String(), "Scripted demo finished")
	})

	t.Run("should stream with the scripted backend", func(t *testing.T) {
		cfgPath := writeTestConfig(t, nil)

		cmd := GetRootCmd()
		cmd.SetArgs([]string{"run", "--config", cfgPath, "--fake", "--stream", "stream", "please"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)
		cmd.SetErr(output)

		err := cmd.Execute()
		require.NoError(t, err)
		assert.Contains(t, output.String(), "Scripted demo stream")
	})
}
