package domain

import "errors"

// Error kinds shared across packages. Package-level errors wrap one of these so
// the HTTP layer can pick a notice with errors.Is.
var (
	// ErrConfigMissing means an external backend is not configured. The page still
	// renders, the dependent feature is disabled.
	ErrConfigMissing = errors.New("backend not configured")
	// ErrAuthFailure carries a provider rejection; the provider message is shown as is.
	ErrAuthFailure = errors.New("authentication failed")
	// ErrValidation means a local precondition failed and no network call was made.
	ErrValidation = errors.New("validation failed")
	// ErrNetworkFailure covers non-2xx answers and transport errors. Never retried.
	ErrNetworkFailure = errors.New("network failure")
)
