// Package utils holds small helpers shared across modules.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowOperationThreshold is the duration above which an operation is logged at warn level.
const SlowOperationThreshold = 30 * time.Second

// OperationTimer provides a defer-friendly way to measure operation duration
//
// Usage:
//
//	stop := utils.OperationTimer("rebalance", log)
//	defer stop()
func OperationTimer(operation string, log zerolog.Logger) func() time.Duration {
	start := time.Now()

	return func() time.Duration {
		duration := time.Since(start)

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")

		if duration > SlowOperationThreshold {
			log.Warn().
				Str("operation", operation).
				Dur("duration", duration).
				Msg("Slow operation detected")
		}

		return duration
	}
}
