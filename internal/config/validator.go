package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct {
	cronParser cron.Parser
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// ValidateLogLevel validates a zerolog level name
func (v *Validator) ValidateLogLevel(level string) error {
	if level == "" {
		return fmt.Errorf("log level cannot be empty")
	}

	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}
	for _, valid := range validLevels {
		if strings.EqualFold(level, valid) {
			return nil
		}
	}

	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateAddr validates a host:port listen address
func (v *Validator) ValidateAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %s: %w", addr, err)
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port in listen address %s", addr)
	}

	return nil
}

// ValidateCronSpec validates a five-field cron expression or a descriptor such as @every 10s
func (v *Validator) ValidateCronSpec(spec string) error {
	if spec == "" {
		return fmt.Errorf("cron spec cannot be empty")
	}
	if _, err := v.cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// ValidateRatio validates a value in [0, 1]
func (v *Validator) ValidateRatio(field string, ratio float64) error {
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %g", field, ratio)
	}
	return nil
}

// ValidateNonNegative validates that n >= 0
func (v *Validator) ValidateNonNegative(field string, n int) error {
	if n < 0 {
		return fmt.Errorf("%s cannot be negative, got %d", field, n)
	}
	return nil
}

// ValidatePositive validates that n > 0
func (v *Validator) ValidatePositive(field string, n int) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", field, n)
	}
	return nil
}

func errRequired(field string) error {
	return fmt.Errorf("%s is required", field)
}

func wrapField(field string, err error) error {
	return fmt.Errorf("%s: %w", field, err)
}
