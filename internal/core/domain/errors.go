package domain

import "errors"

// ErrAuth marks authentication failures. A rejected credential never
// recovers on its own, so callers abort the run instead of retrying.
var ErrAuth = errors.New("authentication failed")
