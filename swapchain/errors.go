package swapchain

import "github.com/cockroachdb/errors"

var (
	// ErrOutOfDate means the swapchain no longer matches the surface and has to be rebuilt
	ErrOutOfDate = errors.New("swapchain out of date")

	// ErrNoSurfaceFormats is returned when the surface reports no usable formats
	ErrNoSurfaceFormats = errors.New("surface reported no formats")
)

// IsOutOfDate reports whether err, or anything it wraps, is ErrOutOfDate
func IsOutOfDate(err error) bool {
	return errors.Is(err, ErrOutOfDate)
}
