package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/seqkit/pkg/sequencer"
)

// Config represents the main seqkit configuration
type Config struct {
	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Prometheus endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// OpenTelemetry
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Defaults applied to every sequencer the CLI creates
	Sequencer SequencerConfig `json:"sequencer" mapstructure:"sequencer"`

	// Example harness
	Scenario ScenarioConfig `json:"scenario" mapstructure:"scenario"`

	// Cron-triggered jobs
	Schedule ScheduleConfig `json:"schedule" mapstructure:"schedule"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"`
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig controls the /metrics listener
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig controls OpenTelemetry span export
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// SequencerConfig holds sequencer defaults
type SequencerConfig struct {
	Capacity       int  `json:"capacity" mapstructure:"capacity"`               // 0 = unbounded
	WaitWarningMs  int  `json:"wait_warning_ms" mapstructure:"wait_warning_ms"` // 0 = disabled
	CancelInFlight bool `json:"cancel_in_flight" mapstructure:"cancel_in_flight"`
	IdleSweepMs    int  `json:"idle_sweep_ms" mapstructure:"idle_sweep_ms"`
}

// ScenarioConfig sizes the example runs
type ScenarioConfig struct {
	WorkMs     int `json:"work_ms" mapstructure:"work_ms"`
	Operations int `json:"operations" mapstructure:"operations"`
	Sequencers int `json:"sequencers" mapstructure:"sequencers"`
}

// ScheduleConfig lists jobs started by `seqkit schedule`
type ScheduleConfig struct {
	Jobs []JobConfig `json:"jobs" mapstructure:"jobs"`
}

// JobConfig is one cron job. Jobs sharing a key never overlap.
type JobConfig struct {
	Key    string `json:"key" mapstructure:"key"`
	Spec   string `json:"spec" mapstructure:"spec"`
	WorkMs int    `json:"work_ms" mapstructure:"work_ms"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9464",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "seqkit",
			SampleRatio: 1.0,
		},
		Sequencer: SequencerConfig{
			Capacity:      0,
			WaitWarningMs: 0,
			IdleSweepMs:   60000,
		},
		Scenario: ScenarioConfig{
			WorkMs:     100,
			Operations: 3,
			Sequencers: 3,
		},
		Schedule: ScheduleConfig{
			Jobs: []JobConfig{},
		},
	}
}

// WaitWarning returns the queued-too-long threshold
func (s SequencerConfig) WaitWarning() time.Duration {
	return time.Duration(s.WaitWarningMs) * time.Millisecond
}

// IdleSweep returns how long a keyed sequencer may sit idle before it is dropped
func (s SequencerConfig) IdleSweep() time.Duration {
	return time.Duration(s.IdleSweepMs) * time.Millisecond
}

// Options converts the section into sequencer options
func (s SequencerConfig) Options() []sequencer.Option {
	var opts []sequencer.Option
	if s.Capacity > 0 {
		opts = append(opts, sequencer.WithCapacity(s.Capacity))
	}
	if s.WaitWarningMs > 0 {
		opts = append(opts, sequencer.WithWaitWarning(s.WaitWarning()))
	}
	if s.CancelInFlight {
		opts = append(opts, sequencer.WithInFlightCancellation())
	}
	return opts
}

// Work returns the simulated duration of one scenario operation
func (s ScenarioConfig) Work() time.Duration {
	return time.Duration(s.WorkMs) * time.Millisecond
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	v := NewValidator()

	if err := v.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Metrics.Enabled {
		if err := v.ValidateAddr(c.Metrics.Addr); err != nil {
			return err
		}
	}
	if c.Tracing.Enabled {
		if c.Tracing.ServiceName == "" {
			return errRequired("tracing.service_name")
		}
		if err := v.ValidateRatio("tracing.sample_ratio", c.Tracing.SampleRatio); err != nil {
			return err
		}
	}

	if err := v.ValidateNonNegative("sequencer.capacity", c.Sequencer.Capacity); err != nil {
		return err
	}
	if err := v.ValidateNonNegative("sequencer.wait_warning_ms", c.Sequencer.WaitWarningMs); err != nil {
		return err
	}
	if err := v.ValidateNonNegative("sequencer.idle_sweep_ms", c.Sequencer.IdleSweepMs); err != nil {
		return err
	}

	if err := v.ValidateNonNegative("scenario.work_ms", c.Scenario.WorkMs); err != nil {
		return err
	}
	if err := v.ValidatePositive("scenario.operations", c.Scenario.Operations); err != nil {
		return err
	}
	if err := v.ValidatePositive("scenario.sequencers", c.Scenario.Sequencers); err != nil {
		return err
	}

	for i, job := range c.Schedule.Jobs {
		if job.Key == "" {
			return fmt.Errorf("schedule.jobs[%d].key is required", i)
		}
		if err := v.ValidateCronSpec(job.Spec); err != nil {
			return wrapField("schedule.jobs["+job.Key+"]", err)
		}
		if err := v.ValidateNonNegative("schedule.jobs["+job.Key+"].work_ms", job.WorkMs); err != nil {
			return err
		}
	}

	return nil
}
