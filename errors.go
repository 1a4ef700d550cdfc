package duokit

import "github.com/pkg/errors"

// Error kinds used across bring-up and topology resolution. Callers
// check them with errors.Is.
var (
	// ErrUnavailable marks a hardware bring-up failure that degrades
	// functionality but does not stop the device.
	ErrUnavailable = errors.New("unavailable")

	// ErrInitializationFailed marks a component that failed its own
	// init. Only that component's branch is aborted.
	ErrInitializationFailed = errors.New("initialization failed")

	// ErrConfigurationInconsistent marks a peripheral required by the
	// selected operating mode that is missing from the registry.
	ErrConfigurationInconsistent = errors.New("configuration inconsistent")

	// ErrNotFound is returned by registry lookups for unknown indices.
	ErrNotFound = errors.New("peripheral not found")
)
