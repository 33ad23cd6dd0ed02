package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Formats(t *testing.T) {
	testCases := []struct {
		format string
		want   string
	}{
		{format: "text", want: `msg="Target finished."`},
		{format: "json", want: `"msg":"Target finished."`},
		{format: "pretty", want: "Target finished."},
	}

	for _, tc := range testCases {
		t.Run(tc.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger("info", tc.format, &buf)

			logger.Info("Target finished.", "target", "compile")

			assert.Contains(t, buf.String(), tc.want)
			assert.Contains(t, buf.String(), "compile")
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", "text", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
