package registry

import "errors"

// ErrUnavailable is returned when the registry cannot be reached or answers
// with a server error. Fatal for the current reconciliation attempt; retries
// belong to the caller.
var ErrUnavailable = errors.New("trust registry unavailable")

// ErrNotFound is returned when a referenced application or version is absent
// from the registry's response.
var ErrNotFound = errors.New("not found in trust registry")
