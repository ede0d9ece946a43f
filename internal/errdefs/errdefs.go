// Package errdefs holds error kinds shared across packages that must not
// depend on each other.
package errdefs

import "errors"

// ErrConfig marks a missing or invalid configuration value, whether found
// while loading config or when a notifier validates its settings.
var ErrConfig = errors.New("config error")
