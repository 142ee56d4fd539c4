package speechrouter

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrNoProviderAvailable = errors.New("speechrouter: no provider available")
	ErrAllProvidersFailed  = errors.New("speechrouter: all providers failed")
	ErrNotInitialized      = errors.New("speechrouter: router not initialized")
	ErrEmptyText           = errors.New("speechrouter: text is empty")
	ErrTextTooLong         = errors.New("speechrouter: text exceeds character limit")
	ErrRateLimited         = errors.New("speechrouter: rate limited by provider")
	ErrAuthFailed          = errors.New("speechrouter: authentication failed")
	ErrProviderUnavailable = errors.New("speechrouter: provider unavailable")
)

// ConfigError reports invalid policy or provider configuration. It is fatal
// at startup: a router must not be constructed from a config that fails
// validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("speechrouter: config: %s", e.Reason)
	}
	return fmt.Sprintf("speechrouter: config: %s: %s", e.Field, e.Reason)
}

// RouterError wraps an error with routing context.
type RouterError struct {
	Err       error
	Provider  string
	RequestID string
	Attempts  int
}

func (e *RouterError) Error() string {
	return fmt.Sprintf("speechrouter: provider=%s request=%s attempts=%d: %v",
		e.Provider, e.RequestID, e.Attempts, e.Err)
}

func (e *RouterError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the error should not be retried with another provider.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrTextTooLong)
}

// IsRetryable returns true if the error can be retried with another provider.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable)
}
