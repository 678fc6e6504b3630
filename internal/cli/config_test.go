package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommands(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "seqkit", "seqkit.json")

	execute := func(args ...string) (string, error) {
		cmd := GetRootCmd()
		cmd.SetArgs(append(args, "--config", configPath))
		output := &bytes.Buffer{}
		cmd.SetOut(output)
		err := cmd.Execute()
		return output.String(), err
	}

	out, err := execute("config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration saved to: "+configPath)

	_, err = os.Stat(configPath)
	require.NoError(t, err)

	_, err = execute("config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute("config", "init", "--force")
	require.NoError(t, err)

	out, err = execute("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"service_name": "seqkit"`)
	assert.Contains(t, out, `"idle_sweep_ms": 60000`)
}

func TestConfigShowRejectsInvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "seqkit.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"scenario": {"operations": 0}}`), 0644))

	cmd := GetRootCmd()
	cmd.SetArgs([]string{"config", "show", "--config", configPath})
	cmd.SetOut(&bytes.Buffer{})

	assert.Error(t, cmd.Execute())
}
