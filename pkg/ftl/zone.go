package ftl

import "github.com/zoneftl/zoneftl/pkg/zoneio"

// condition mirrors the zone states a real zoned namespace exposes,
// tracked independently from [zoneio.ZoneCondition] because the
// translation layer's notion of "full" (write pointer has reached the
// zone length, as tracked here) governs when the zone becomes
// reclaim-eligible, which is this package's concern, not the
// provider's.
type condition int

const (
	condEmpty condition = iota
	condOpen
	condFull
	condReadOnly
	condOffline
)

type zone struct {
	start zoneio.Block
	len   zoneio.Block
	wp    zoneio.Block // blocks written so far, relative to start
	cond  condition

	invalidCount uint32
	fullAt       uint64 // currentTick when this zone last became full
}

func (z *zone) validCount() uint32 {
	written := uint32(z.wp)
	if z.invalidCount > written {
		return 0
	}

	return written - z.invalidCount
}
