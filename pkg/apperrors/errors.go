// Package apperrors defines the sentinel errors shared by the gateway and
// worker. Callers classify with errors.Is and the helpers below; layers wrap
// with %w and never replace the underlying cause.
package apperrors

import "errors"

var (
	// Input validation.
	ErrInvalidSample = errors.New("invalid sample")
	ErrInvalidFilter = errors.New("invalid export filter")

	// Backend unavailability. Both are retryable and distinct from any
	// handler error, so the request path can degrade instead of failing.
	ErrCacheUnavailable  = errors.New("cache backend unavailable")
	ErrBrokerUnavailable = errors.New("task broker unavailable")

	// Oracle scoring failed for a single request. The synchronous path does
	// not retry these; the worker retries them under its bounded policy.
	ErrOracle = errors.New("oracle scoring failed")

	// Startup configuration.
	ErrNoPipeline = errors.New("no classification pipeline configured")

	// Lookups.
	ErrTaskNotFound     = errors.New("task not found")
	ErrResultNotFound   = errors.New("result not found")
	ErrArtifactNotFound = errors.New("model artifact not found")
)

// IsRetryable reports whether err is a backend-unavailability error that a
// caller may retry or route around.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCacheUnavailable) || errors.Is(err, ErrBrokerUnavailable)
}

// IsInvalid reports whether err was caused by malformed caller input.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidSample) || errors.Is(err, ErrInvalidFilter)
}
