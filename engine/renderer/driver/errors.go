package driver

import "errors"

var (
	// ErrSuboptimal means the swapchain still works but no longer matches
	// the surface exactly.
	ErrSuboptimal = errors.New("swapchain suboptimal")
	// ErrOutOfDate means the swapchain can no longer be used with the surface.
	ErrOutOfDate = errors.New("swapchain out of date")

	ErrTimeout          = errors.New("wait timed out")
	ErrDeviceLost       = errors.New("device lost")
	ErrOutOfMemory      = errors.New("out of memory")
	ErrNotHostVisible   = errors.New("memory is not host visible")
	ErrMissingLayer     = errors.New("required layer not present")
	ErrMissingExtension = errors.New("required extension not present")
	ErrNoSuitableDevice = errors.New("no device supports graphics and presentation")
	ErrInvalidShader    = errors.New("invalid shader bytecode")
)

// IsStale reports whether err means the swapchain must be rebuilt.
func IsStale(err error) bool {
	return errors.Is(err, ErrSuboptimal) || errors.Is(err, ErrOutOfDate)
}
