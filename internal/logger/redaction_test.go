package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bearer token",
			input:    "Authorization: Bearer abc123.def456",
			expected: "Authorization: [REDACTED]",
		},
		{
			name:     "matrix access token",
			input:    "token syt_YWxpY2U_abcdefghij_0123 rejected",
			expected: "token [REDACTED] rejected",
		},
		{
			name:     "access token query",
			input:    "GET /sync?since=s1&access_token=xyz&timeout=0",
			expected: "GET /sync?since=s1&[REDACTED]&timeout=0",
		},
		{
			name:     "nothing sensitive",
			input:    "entry room:1-3 completed",
			expected: "entry room:1-3 completed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Redact(tt.input))
		})
	}
}

func TestAddPattern(t *testing.T) {
	r := NewRedactor()

	require.NoError(t, r.AddPattern(`device-[A-Z]+`))
	assert.Equal(t, "key for [REDACTED]", r.Redact("key for device-ABCDEF"))

	assert.Error(t, r.AddPattern(`[unclosed`))
}

func TestRedactingWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewRedactor().Wrap(&buf)

	input := []byte(`{"msg":"password: hunter2"}`)
	n, err := w.Write(input)

	require.NoError(t, err)
	assert.Equal(t, len(input), n)
	assert.NotContains(t, buf.String(), "hunter2")
}
