package cli

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/harun/seqkit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleJobs(t *testing.T) {
	saved := scheduleFlags
	t.Cleanup(func() { scheduleFlags = saved })

	cfg := config.DefaultConfig()
	cfg.Schedule.Jobs = []config.JobConfig{{Key: "reports", Spec: "@hourly", WorkMs: 50}}

	t.Run("config jobs only", func(t *testing.T) {
		scheduleFlags.key, scheduleFlags.every = "", 0

		jobs, err := scheduleJobs(cfg)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "reports", jobs[0].Key)
		assert.Equal(t, 50*time.Millisecond, jobs[0].Work)
	})

	t.Run("flag job appended", func(t *testing.T) {
		scheduleFlags.key, scheduleFlags.every, scheduleFlags.work = "sync", 2*time.Second, time.Millisecond

		jobs, err := scheduleJobs(cfg)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "sync", jobs[1].Key)
		assert.Equal(t, "@every 2s", jobs[1].Spec)
	})

	t.Run("key without interval", func(t *testing.T) {
		scheduleFlags.key, scheduleFlags.every = "sync", 0

		_, err := scheduleJobs(cfg)
		assert.Error(t, err)
	})

	t.Run("nothing to run", func(t *testing.T) {
		scheduleFlags.key, scheduleFlags.every = "", 0

		_, err := scheduleJobs(config.DefaultConfig())
		assert.Error(t, err)
	})
}

func TestScheduleCommand(t *testing.T) {
	saved := scheduleFlags
	t.Cleanup(func() { scheduleFlags = saved })

	configPath := filepath.Join(t.TempDir(), "missing.json")

	cmd := GetRootCmd()
	cmd.SetArgs([]string{
		"schedule",
		"--config", configPath,
		"--log-level", "error",
		"--key", "sync",
		"--every", "1s",
		"--work", "1ms",
		"--for", "1500ms",
		"--metrics-addr", "",
		"--watch-config=false",
	})

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, output.String(), "Scheduled 1 job(s)")
	assert.Contains(t, output.String(), "sync")
	assert.Contains(t, output.String(), "done in")
}

func TestServeMetrics(t *testing.T) {
	server, err := serveMetrics("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	resp, err := http.Get("http://" + server.Addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
