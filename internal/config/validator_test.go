package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "WARN", "disabled"} {
		assert.NoError(t, v.ValidateLogLevel(level), level)
	}
	assert.Error(t, v.ValidateLogLevel(""))
	assert.Error(t, v.ValidateLogLevel("verbose"))
}

func TestValidateAddr(t *testing.T) {
	v := NewValidator()

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, v.ValidateAddr(":9464"))
		assert.NoError(t, v.ValidateAddr("127.0.0.1:8080"))
	})

	t.Run("invalid", func(t *testing.T) {
		assert.Error(t, v.ValidateAddr(""))
		assert.Error(t, v.ValidateAddr("localhost"))
		assert.Error(t, v.ValidateAddr(":http"))
		assert.Error(t, v.ValidateAddr(":70000"))
	})
}

func TestValidateCronSpec(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateCronSpec("*/5 * * * *"))
	assert.NoError(t, v.ValidateCronSpec("@every 30s"))
	assert.NoError(t, v.ValidateCronSpec("@hourly"))

	assert.Error(t, v.ValidateCronSpec(""))
	assert.Error(t, v.ValidateCronSpec("* * *"))
	assert.Error(t, v.ValidateCronSpec("@every soon"))
}

func TestValidateNumbers(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateRatio("r", 0))
	assert.NoError(t, v.ValidateRatio("r", 1))
	assert.Error(t, v.ValidateRatio("r", 1.5))

	assert.NoError(t, v.ValidateNonNegative("n", 0))
	assert.Error(t, v.ValidateNonNegative("n", -1))

	assert.NoError(t, v.ValidatePositive("n", 1))
	assert.Error(t, v.ValidatePositive("n", 0))
}
