package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.InfoLevel, Format: "json", Output: &buf})

	logger.Debug().Msg("hidden")
	logger.Info().Str("k", "v").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.DebugLevel, Format: "json", Output: &buf})

	ctx := WithComponent(WithContext(context.Background(), logger), "registry")
	FromContext(ctx).Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"registry"`)
}

func TestFromContext_NoLogger(t *testing.T) {
	log := FromContext(context.Background())
	require.NotNil(t, log)
	log.Info().Msg("must not panic")
}
