package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/loom/internal/config"
)

func TestConfigureCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"configure", "--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)
		assert.Contains(t, output.String(), "configuration file")
	})

	t.Run("should reject a malformed API key", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "loom.json")

		cmd := GetRootCmd()
		cmd.SetArgs([]string{"configure", "--config", cfgPath, "--anthropic-key", "not-a-key"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)
		cmd.SetErr(output)

		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sk-ant-")
	})

	t.Run("should save the configuration file", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "loom.json")

		cmd := GetRootCmd()
		cmd.SetArgs([]string{
			"configure",
			"--config", cfgPath,
			"--anthropic-key", "sk-ant-test123",
			"--model", "claude-3-5-haiku-20241022",
		})

		output := &bytes.Buffer{}
		cmd.SetOut(output)
		cmd.SetErr(output)

		require.NoError(t, cmd.Execute())
		assert.Contains(t, output.String(), "Configuration saved to")

		saved, err := config.Load(cfgPath)
		require.NoError(t, err)
		assert.Equal(t, "sk-ant-test123", saved.Anthropic.APIKey)
		assert.Equal(t, "claude-3-5-haiku-20241022", saved.Model)
	})
}
