package ftl

import "errors"

// Sentinel errors returned by the translation layer, one per error
// category. Call sites wrap these with fmt.Errorf("...: %w", ...) so
// errors.Is still matches after context is added, the way every
// package in this module reports errors.
var (
	// ErrInvalidConfig is returned by New when a Config field fails
	// validation.
	ErrInvalidConfig = errors.New("ftl: invalid configuration")

	// ErrOutOfBounds is returned when a logical address or length
	// falls outside the addressable capacity. Seeing this from
	// internal code (not direct caller input validation) indicates an
	// invariant violation.
	ErrOutOfBounds = errors.New("ftl: address out of bounds")

	// ErrOutOfMemory is the category for a failed allocation. No code
	// path in this package currently returns it.
	ErrOutOfMemory = errors.New("ftl: out of memory")

	// ErrDeviceFull is returned when no free zone remains to satisfy a
	// write, meaning reclaim has fallen behind the write rate.
	ErrDeviceFull = errors.New("ftl: device full")

	// ErrIO is returned when the underlying provider reports an I/O
	// failure.
	ErrIO = errors.New("ftl: I/O error")

	// ErrReadOnly is returned when a write targets a zone the provider
	// has reported READONLY.
	ErrReadOnly = errors.New("ftl: target is read-only")

	// ErrDeviceDying is returned once the provider reports the device
	// itself has stopped accepting commands; every later Read, Write,
	// and Discard short-circuits to this error without touching the
	// provider again.
	ErrDeviceDying = errors.New("ftl: device is dying")

	// ErrClosed is returned by any operation on a closed Target.
	ErrClosed = errors.New("ftl: target is closed")

	// ErrSuspended is the category for relying on a suspended reclaim
	// loop. No code path in this package currently returns it;
	// Suspend/Resume are safe to call at any time.
	ErrSuspended = errors.New("ftl: reclaim is suspended")
)
