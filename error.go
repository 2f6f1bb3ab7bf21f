package cachemap

import "github.com/jmgilman/go/errors"

// SentinelError is an error.
type SentinelError string

const (
	// ErrInvalidConfig indicates rejected cache configuration.
	ErrInvalidConfig = SentinelError("invalid cache configuration")

	// ErrTypesMismatch indicates incompatible dump of cached values.
	ErrTypesMismatch = SentinelError("cached types mismatch")

	// ErrNothingToInvalidate indicates no caches were added to Invalidator.
	ErrNothingToInvalidate = SentinelError("nothing to invalidate")

	// ErrAlreadyInvalidated indicates recent invalidation.
	ErrAlreadyInvalidated = SentinelError("already invalidated")
)

// Error implements error.
func (e SentinelError) Error() string {
	return string(e)
}

func invalidConfig(message string, ctx map[string]interface{}) error {
	return errors.WrapWithContext(ErrInvalidConfig, errors.CodeInvalidConfig, message, ctx)
}
