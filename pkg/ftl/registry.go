package ftl

import (
	"fmt"

	"github.com/zoneftl/zoneftl/pkg/ftl/policy"
	"github.com/zoneftl/zoneftl/pkg/zoneio"
)

// errActiveZoneReadOnly mirrors EROFS: the active zone is marked
// read-only while still active, and no new blocks can be reserved in
// it. After a failed write, syncZoneCondition records a READONLY report
// and also clears the active zone, so the next reservation opens a
// fresh zone instead of returning this error.
var errActiveZoneReadOnly = fmt.Errorf("active zone is read-only: %w", ErrReadOnly)

// reserveWriteLocked returns the next physical block to write to,
// opening a new zone if the currently active zone is full or none is
// open yet. mu must be held.
func (t *Target) reserveWriteLocked() (zoneio.Block, error) {
	pba, _, err := t.reserveRunLocked(1)

	return pba, err
}

// reserveRunLocked is advance_wp plus the clamp the copy engine also
// needs: it returns the current write pointer of the active zone
// (opening a new one first if none is open or the active one is full)
// and reserves up to want
// contiguous blocks, clamped to whatever room is left before the
// active zone's end so a caller never has to split a reservation
// across two zones. Advancing the write pointer and opening/closing
// zones happen atomically under mu so two reservations never hand out
// overlapping blocks. mu must be held.
func (t *Target) reserveRunLocked(want uint32) (zoneio.Block, uint32, error) {
	if t.activeZone < 0 || t.zones[t.activeZone].cond == condFull {
		zi, err := t.pickFreeZoneLocked()
		if err != nil {
			return 0, 0, err
		}

		t.zones[zi].cond = condOpen
		t.freeZones--
		t.activeZone = zi
	}

	z := &t.zones[t.activeZone]

	// A write to a READONLY active zone fails EROFS rather than
	// silently opening a new zone in its place.
	if z.cond == condReadOnly {
		return 0, 0, errActiveZoneReadOnly
	}

	avail := uint32(z.len - z.wp)
	n := want
	if n > avail {
		n = avail
	}

	pba := z.start + z.wp
	z.wp += zoneio.Block(n)

	if z.wp == z.len {
		z.cond = condFull
		z.fullAt = t.currentTick
		t.policy.OnZoneFull(policy.ZoneID(t.activeZone))
		t.activeZone = -1
	}

	return pba, n, nil
}

// pickFreeZoneLocked returns the index of an empty zone to open,
// scanning in zone order. mu must be held.
func (t *Target) pickFreeZoneLocked() (int, error) {
	for i := range t.zones {
		if t.zones[i].cond == condEmpty {
			return i, nil
		}
	}

	return 0, fmt.Errorf("no free zones remain: %w", ErrDeviceFull)
}

// freeZonePctLocked returns the fraction of zones currently empty.
// mu must be held.
func (t *Target) freeZonePctLocked() float64 {
	return float64(t.freeZones) / float64(len(t.zones))
}

// freeUserZonesLocked returns the count of empty zones available to
// user writes, excluding the zones reserved as overprovisioning
// headroom. Overprovisioned zones are drawn from the same free pool
// as user zones, so they're subtracted out rather than tracked
// separately; dmzap_calc_p_free_zone clamps this the same way since
// headroom can exceed what's currently free. mu must be held.
func (t *Target) freeUserZonesLocked() int {
	free := t.freeZones - t.opZones
	if free < 0 {
		return 0
	}

	return free
}

// freeUserZonePctLocked returns freeUserZonesLocked as a fraction of
// the user-addressable zone count. mu must be held.
func (t *Target) freeUserZonePctLocked() float64 {
	userZones := len(t.zones) - t.opZones
	if userZones <= 0 {
		return 0
	}

	return float64(t.freeUserZonesLocked()) / float64(userZones)
}
