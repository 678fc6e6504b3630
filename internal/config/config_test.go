package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
	assert.Equal(t, "seqkit", cfg.Tracing.ServiceName)
	assert.Equal(t, 0, cfg.Sequencer.Capacity)
	assert.False(t, cfg.Sequencer.CancelInFlight)
	assert.Equal(t, time.Minute, cfg.Sequencer.IdleSweep())
	assert.Equal(t, 100*time.Millisecond, cfg.Scenario.Work())
	assert.Equal(t, 3, cfg.Scenario.Operations)
	assert.Empty(t, cfg.Schedule.Jobs)

	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "loud" },
			wantErr: "invalid log level",
		},
		{
			name: "metrics enabled without port",
			mutate: func(cfg *Config) {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Addr = "localhost"
			},
			wantErr: "invalid listen address",
		},
		{
			name: "tracing without service name",
			mutate: func(cfg *Config) {
				cfg.Tracing.Enabled = true
				cfg.Tracing.ServiceName = ""
			},
			wantErr: "tracing.service_name is required",
		},
		{
			name:    "negative capacity",
			mutate:  func(cfg *Config) { cfg.Sequencer.Capacity = -1 },
			wantErr: "sequencer.capacity cannot be negative",
		},
		{
			name:    "no scenario operations",
			mutate:  func(cfg *Config) { cfg.Scenario.Operations = 0 },
			wantErr: "scenario.operations must be positive",
		},
		{
			name: "job without key",
			mutate: func(cfg *Config) {
				cfg.Schedule.Jobs = []JobConfig{{Spec: "@every 1s"}}
			},
			wantErr: "schedule.jobs[0].key is required",
		},
		{
			name: "job with bad spec",
			mutate: func(cfg *Config) {
				cfg.Schedule.Jobs = []JobConfig{{Key: "sync", Spec: "every second"}}
			},
			wantErr: "schedule.jobs[sync]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid job", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Schedule.Jobs = []JobConfig{{Key: "sync", Spec: "@every 5s", WorkMs: 10}}
		assert.NoError(t, cfg.Validate())
	})
}

func TestSequencerOptions(t *testing.T) {
	assert.Empty(t, DefaultConfig().Sequencer.Options())

	cfg := SequencerConfig{Capacity: 4, WaitWarningMs: 250, CancelInFlight: true}
	assert.Len(t, cfg.Options(), 3)
	assert.Equal(t, 250*time.Millisecond, cfg.WaitWarning())
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().String()
	assert.Contains(t, s, `"wait_warning_ms": 0`)
	assert.Contains(t, s, `"service_name": "seqkit"`)
}
