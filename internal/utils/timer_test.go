package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOperationTimer(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	stop := OperationTimer("produce", log)
	time.Sleep(2 * time.Millisecond)
	duration := stop()

	assert.GreaterOrEqual(t, duration, 2*time.Millisecond)
	assert.Contains(t, buf.String(), `"operation":"produce"`)
	assert.Contains(t, buf.String(), "Operation completed")
	assert.NotContains(t, buf.String(), "Slow operation")
}
