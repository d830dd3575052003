package renderer

import "errors"

var (
	// ErrNotOwned is returned when a resource is destroyed through an
	// allocator that did not create it, or destroyed twice.
	ErrNotOwned = errors.New("resource not owned by this allocator")
	// ErrDoubleRelease is returned when a semaphore already in the recycle
	// pool is released again.
	ErrDoubleRelease = errors.New("semaphore released twice")
	// ErrFrameInProgress is returned by BeginFrame while another frame is
	// still being recorded, and by EndFrame for a frame that is not the
	// current one.
	ErrFrameInProgress = errors.New("frame state mismatch")
	ErrTooManyObjects  = errors.New("object buffer capacity exceeded")
	ErrNotTextured     = errors.New("material has no texture set layout")
	// ErrSurfaceUnavailable is returned when the surface has a zero sized
	// extent, which happens while the window is minimised.
	ErrSurfaceUnavailable = errors.New("surface has a zero extent")
)
