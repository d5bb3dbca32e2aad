package location

import "errors"

// Failure reasons. None of them is returned by Acquire; they are recorded in
// the Outcome of a settled Request.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrServicesDisabled    = errors.New("location services disabled")
	ErrProviderUnavailable = errors.New("location provider unavailable")
	ErrTimeout             = errors.New("location request timed out")
	ErrPlatformCall        = errors.New("location platform call failed")
	ErrCanceled            = errors.New("location request canceled")
)
