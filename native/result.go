package native

import "fmt"

// Result is the status code returned by API operations.
//
// Zero is success, positive values are non-fatal status codes, and
// negative values are failures. Use [Result.Ok] to test for "the call
// produced a usable result" rather than comparing against [Success],
// since a positive code like [Suboptimal] still carries valid output.
type Result int32

const (
	// Success indicates the operation completed.
	Success Result = 0

	// NotReady indicates a query would block; the object is not signaled yet.
	NotReady Result = 1

	// Timeout indicates a wait expired before the condition was met.
	Timeout Result = 2

	// Suboptimal indicates a swapchain still works but no longer matches
	// the surface exactly.
	Suboptimal Result = 3
)

const (
	// ErrInitializationFailed indicates object creation failed for a
	// driver-internal reason.
	ErrInitializationFailed Result = -1

	// ErrExtensionNotPresent indicates a requested extension is not
	// supported.
	ErrExtensionNotPresent Result = -2

	// ErrFeatureNotPresent indicates a requested feature flag is not
	// supported.
	ErrFeatureNotPresent Result = -3

	// ErrDeviceLost indicates the device was lost and must be recreated.
	ErrDeviceLost Result = -4

	// ErrOutOfDate indicates the swapchain no longer matches the surface
	// and must be recreated.
	ErrOutOfDate Result = -5

	// ErrMissingInput indicates a required input was not provided.
	ErrMissingInput Result = -6

	// ErrNotFound indicates the requested object or data does not exist.
	ErrNotFound Result = -7

	// ErrInvalidState indicates the call is not legal in the current state.
	ErrInvalidState Result = -8

	// ErrInvalidIntegration indicates the host application integrated the
	// library incorrectly, for example calling entry points out of order.
	ErrInvalidIntegration Result = -9

	// ErrNotInitialized indicates the runtime has not been initialized.
	ErrNotInitialized Result = -10

	// ErrInvalidRequest indicates the request parameters are malformed.
	ErrInvalidRequest Result = -11
)

// Ok reports whether the result carries usable output.
// Positive status codes count as ok; only negative codes do not.
func (r Result) Ok() bool { return r >= 0 }

// String returns the result name.
func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case NotReady:
		return "not-ready"
	case Timeout:
		return "timeout"
	case Suboptimal:
		return "suboptimal"
	case ErrInitializationFailed:
		return "initialization-failed"
	case ErrExtensionNotPresent:
		return "extension-not-present"
	case ErrFeatureNotPresent:
		return "feature-not-present"
	case ErrDeviceLost:
		return "device-lost"
	case ErrOutOfDate:
		return "out-of-date"
	case ErrMissingInput:
		return "missing-input"
	case ErrNotFound:
		return "not-found"
	case ErrInvalidState:
		return "invalid-state"
	case ErrInvalidIntegration:
		return "invalid-integration"
	case ErrNotInitialized:
		return "not-initialized"
	case ErrInvalidRequest:
		return "invalid-request"
	default:
		return fmt.Sprintf("result(%d)", int32(r))
	}
}
