package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"info", "info", zerolog.InfoLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"warning alias", "WARNING", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"unknown defaults to info", "verbose", zerolog.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.level))
		})
	}
}

func TestNew_SetsGlobalLevel(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: "error", Output: &buf})
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())

	New(Config{Level: "info", Output: &buf})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestNew_WritesToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	log.Info().Str("store_id", "apm").Msg("loaded factor table")

	assert.Contains(t, buf.String(), "loaded factor table")
	assert.Contains(t, buf.String(), `"store_id":"apm"`)
}

func TestNew_ErrorLevelFiltersLower(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "error", Output: &buf})

	log.Info().Msg("should not appear")
	assert.NotContains(t, buf.String(), "should not appear")

	log.Error().Msg("should appear")
	assert.Contains(t, buf.String(), "should appear")

	New(Config{Level: "info", Output: &buf})
}

func TestNew_PrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Pretty: true, Output: &buf})

	log.Info().Msg("pretty message")

	assert.Contains(t, buf.String(), "pretty message")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestNew_TimestampFormat(t *testing.T) {
	New(Config{Level: "info", Output: &bytes.Buffer{}})
	assert.Equal(t, "2006-01-02T15:04:05Z07:00", zerolog.TimeFieldFormat)
}
