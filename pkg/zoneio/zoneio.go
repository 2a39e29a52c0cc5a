// Package zoneio provides the I/O provider abstraction that the
// translation layer in [github.com/zoneftl/zoneftl/pkg/ftl] submits
// physical block reads, writes, copies, and zone resets through.
//
// The split mirrors a zoned namespace: a [Provider] exposes raw
// physical-block operations and per-zone write pointers; it knows
// nothing about logical addresses, garbage collection, or victim
// selection. [Real] backs a Provider with an ordinary regular file,
// simulating sequential-write-only zones on storage that has none.
// [Chaos] and [Sequential] wrap any Provider for fault injection and
// invariant checking in tests, the way [Real] and decorator types are
// layered in a narrow filesystem interface.
package zoneio

import (
	"context"
	"fmt"
)

// Block is a physical block address, counted in device blocks
// (BlockSize bytes each), not bytes and not logical blocks.
type Block uint64

// ZoneCondition mirrors the subset of zoned-namespace states this
// package simulates.
type ZoneCondition int

const (
	ZoneEmpty ZoneCondition = iota
	ZoneImplicitOpen
	ZoneClosed
	ZoneFull
	ZoneReadOnly
	ZoneOffline
)

func (c ZoneCondition) String() string {
	switch c {
	case ZoneEmpty:
		return "EMPTY"
	case ZoneImplicitOpen:
		return "IMP_OPEN"
	case ZoneClosed:
		return "CLOSED"
	case ZoneFull:
		return "FULL"
	case ZoneReadOnly:
		return "READONLY"
	case ZoneOffline:
		return "OFFLINE"
	default:
		return fmt.Sprintf("ZoneCondition(%d)", int(c))
	}
}

// ZoneDescriptor reports the device's view of one zone, the
// equivalent of a Report Zones entry on a real ZNS device.
type ZoneDescriptor struct {
	Start Block
	Len   Block
	WP    Block
	Cond  ZoneCondition
}

// Completion is returned by every Submit* call. The caller decides
// when to block on it; an operation that reaches the device is
// completed from a goroutine distinct from the submitter, matching how
// a real NVMe completion queue is drained on a different context than
// the one that issued the command. A submission rejected before that
// (a closed [Real], a [Chaos]-injected fault) is resolved by the
// submitting goroutine itself.
type Completion interface {
	// Wait blocks until the operation completes or ctx is done.
	// Calling Wait more than once returns the same result.
	Wait(ctx context.Context) error
}

// Provider is the narrow interface the translation layer drives all
// physical I/O through. Implementations must be safe for concurrent
// use by multiple goroutines; a zone's write pointer only ever
// advances from concurrent writers in the order their writes are
// submitted relative to each other by the caller — Provider does not
// itself serialize writers, that is [github.com/zoneftl/zoneftl/pkg/ftl]'s
// job (see its write-outstanding semaphore).
type Provider interface {
	// BlockSize returns the device block size in bytes.
	BlockSize() int

	// ZoneLen returns the number of blocks in every zone. All zones
	// are the same size, matching a conventional ZNS device.
	ZoneLen() Block

	// NumZones returns the total number of zones exposed.
	NumZones() int

	// SubmitRead reads len(data)/BlockSize() blocks starting at pba.
	SubmitRead(ctx context.Context, pba Block, data []byte) Completion

	// SubmitWrite writes len(data)/BlockSize() blocks starting at pba,
	// which must equal the zone's current write pointer.
	SubmitWrite(ctx context.Context, pba Block, data []byte) Completion

	// SubmitCopy copies n blocks from src to dst, where dst must equal
	// the destination zone's current write pointer. Used by the
	// reclaim copy engine to move valid blocks without a round trip
	// through caller-owned memory.
	SubmitCopy(ctx context.Context, src, dst Block, n Block) Completion

	// ResetZone erases the zone starting at zoneStart, returning its
	// write pointer to the start of the zone and its condition to
	// ZoneEmpty.
	ResetZone(ctx context.Context, zoneStart Block) error

	// ReportZones returns the current descriptor for every zone, in
	// zone-start order.
	ReportZones(ctx context.Context) ([]ZoneDescriptor, error)

	// Close releases any resources held by the provider.
	Close() error
}
