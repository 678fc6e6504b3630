package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRun(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "missing.json")
	base := []string{"run", "--config", configPath, "--log-level", "error", "--work", "10ms"}

	cmd := GetRootCmd()
	cmd.SetArgs(append(base, args...))

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	err := cmd.Execute()
	return output.String(), err
}

func TestRunCommand(t *testing.T) {
	t.Run("abandon", func(t *testing.T) {
		out, err := executeRun(t, "abandon", "--json=false")
		require.NoError(t, err)

		assert.Contains(t, out, "Scenario: abandon")
		assert.Contains(t, out, `Observed: ["#1", "#3"]`)
		assert.Contains(t, out, "#2   error: context canceled")
	})

	t.Run("sequential", func(t *testing.T) {
		out, err := executeRun(t, "sequential", "--operations", "4", "--json=false")
		require.NoError(t, err)

		assert.Contains(t, out, `Observed: ["#1", "#2", "#3", "#4"]`)
	})

	t.Run("failure as json", func(t *testing.T) {
		out, err := executeRun(t, "failure", "--operations", "3", "--json")
		require.NoError(t, err)

		var result jsonResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))

		assert.Equal(t, "failure", result.Scenario)
		assert.Equal(t, []string{"#1", "#3"}, result.Observed)
		require.Len(t, result.Outcomes, 3)
		assert.Contains(t, result.Outcomes[1].Error, "simulated failure")
		assert.Equal(t, "#3", result.Outcomes[2].Value)
	})

	t.Run("unknown scenario", func(t *testing.T) {
		_, err := executeRun(t, "chaos", "--json=false")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown scenario")
	})

	t.Run("missing scenario", func(t *testing.T) {
		_, err := executeRun(t)
		assert.Error(t, err)
	})
}

func TestFormatObserved(t *testing.T) {
	assert.Equal(t, `["#1", "#3"]`, formatObserved([]string{"#1", "#3"}))
	assert.Equal(t, `[]`, formatObserved(nil))
}
