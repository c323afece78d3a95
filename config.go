package fermata

import (
	"log/slog"

	"github.com/fermata-io/fermata/internal/domain"
)

// Config carries engine construction settings. Everything is explicit and
// call-scoped; there is no process-wide persistence initialization.
type Config struct {
	// Logger receives structured engine logs. Nil falls back to
	// slog.Default().
	Logger *slog.Logger

	// StepBudget caps the steps executed per Resume invocation for every
	// run driven by this engine. Zero means unbounded; WithStepBudget on a
	// single Resume call overrides it.
	StepBudget int
}

// Option adjusts engine construction.
type Option func(*Config)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithDefaultStepBudget sets the per-invocation step cap for all runs.
func WithDefaultStepBudget(budget int) Option {
	return func(c *Config) {
		c.StepBudget = budget
	}
}

// Error classification helpers, re-exported so callers can branch on the
// failure kind without importing internal packages.

// IsNotFound reports a missing snapshot.
func IsNotFound(err error) bool { return domain.IsNotFound(err) }

// IsConflict reports a save rejected because another writer advanced the
// same run.
func IsConflict(err error) bool { return domain.IsConflict(err) }

// IsNodeError reports a failure raised by node logic ("my workflow
// failed").
func IsNodeError(err error) bool { return domain.IsNodeError(err) }

// IsDefinitionError reports a graph definition mismatch, such as a
// persisted tag the current definition no longer knows.
func IsDefinitionError(err error) bool { return domain.IsDefinitionError(err) }

// IsPersistenceError reports a storage failure ("the engine failed to
// persist").
func IsPersistenceError(err error) bool { return domain.IsPersistenceError(err) }

// IsSerializationError reports state or payload that would not encode or
// decode.
func IsSerializationError(err error) bool { return domain.IsSerializationError(err) }
