package core

import (
	"errors"
)

var (
	// ErrSwapchainBooting is returned by BeginFrame after the swapchain was
	// found stale and rebuilt. The frame is skipped and the caller simply
	// tries again on the next tick.
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	// ErrFrameSkipped wraps acquire failures that did not require a rebuild.
	ErrFrameSkipped = errors.New("frame skipped")
	// ErrPresentFailed wraps present failures other than a stale swapchain.
	ErrPresentFailed = errors.New("present failed")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknown       = errors.New("unknown")
)
