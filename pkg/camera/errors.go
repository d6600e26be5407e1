package camera

import "errors"

var (
	// ErrDeviceUnavailable means the capture device could not be
	// opened. Fatal to the capture stage, the caller decides
	// whether to attempt a reopen.
	ErrDeviceUnavailable = errors.New("camera device unavailable")

	// ErrCaptureTimeout means no frame arrived within the bounded
	// read wait. Fatal to the capture stage.
	ErrCaptureTimeout = errors.New("camera capture timed out")
)
