package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{"debug level", "debug", zerolog.DebugLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"default info", "", zerolog.InfoLevel},
		{"garbage falls back to info", "loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewWithWriter(&bytes.Buffer{}, tt.level)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNewWithWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")

	logger.Info().Str("doctor_id", "d1").Msg("slot claimed")
	logger.Debug().Msg("suppressed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "slot claimed", line["message"])
	assert.Equal(t, "d1", line["doctor_id"])
	assert.Contains(t, line, "time")
}

func TestBootstrapChainsFatal(t *testing.T) {
	logger := Bootstrap()
	require.NotNil(t, logger)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	// the pointer lets mains chain Fatal without a local
	ev := logger.WithLevel(zerolog.FatalLevel)
	require.NotNil(t, ev)
	ev.Discard()
}
