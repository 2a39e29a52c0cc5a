package ftl

import (
	"github.com/zoneftl/zoneftl/pkg/ftl/policy"
	"github.com/zoneftl/zoneftl/pkg/zoneio"
)

// bumpGen must bracket every block of code that mutates l2d, d2l, or
// per-zone counters while mu is held: one call before the mutation,
// one after. Readers that only need point-in-time consistency still
// take mu directly; Generation() exists only so tests can assert no
// mutation was observed half-applied, mirroring a seqlock's odd/even
// publication without making it load-bearing for correctness.
func (t *Target) bumpGen() {
	t.generation++
}

// lookupLocked returns the physical block lba currently maps to, or
// ok=false if lba has never been written. mu must be held.
func (t *Target) lookupLocked(lba uint64) (zoneio.Block, bool) {
	v := t.l2d[lba]
	if v == unmapped {
		return 0, false
	}

	return zoneio.Block(v), true
}

// validLBAAtLocked returns the logical block currently mapped to pba,
// or ok=false if pba holds no live data. mu must be held.
func (t *Target) validLBAAtLocked(pba zoneio.Block) (uint64, bool) {
	v := t.d2l[pba]
	if v == invalidPBA {
		return 0, false
	}

	return v, true
}

// lookupState classifies the run lookupRunLocked found.
type lookupState int

const (
	// lookupUnmapped: the run is entries that have never been written.
	lookupUnmapped lookupState = iota
	// lookupValid: the run is entries mapped to a single physically
	// contiguous, currently-live range starting at the returned block.
	lookupValid
)

// lookupRunLocked returns the longest prefix of [lba, lba+maxLen) that
// is either entirely unmapped or entirely mapped to one physically
// contiguous run, classified by the first entry. maxLen must be > 0.
//
// A third case, "all entries mapped but invalid", never arises here:
// under the invariant this package maintains (l2d[u]=p implies
// invalid[p]=false, see map.go's update/invalidate pairing), a block
// l2d still points to is never invalid. Every caller only ever needs
// to distinguish unmapped from valid. This is the Open Question
// decision recorded in DESIGN.md.
func (t *Target) lookupRunLocked(lba uint64, maxLen uint64) (zoneio.Block, lookupState, uint64) {
	first := t.l2d[lba]

	if first == unmapped {
		run := uint64(1)
		for run < maxLen && t.l2d[lba+run] == unmapped {
			run++
		}

		return 0, lookupUnmapped, run
	}

	firstPba := zoneio.Block(first)
	run := uint64(1)

	for run < maxLen {
		next := t.l2d[lba+run]
		if next == unmapped || zoneio.Block(next) != firstPba+zoneio.Block(run) {
			break
		}

		run++
	}

	return firstPba, lookupValid, run
}

// invalidateLocked marks the n physical blocks ending at pba+n-1 as no
// longer holding live data, iterating backward from the last block to
// the first, and notifies the owning zones' policy index of the new
// invalid count. mu must be held.
func (t *Target) invalidateLocked(pba zoneio.Block, n uint32) {
	for i := int(n) - 1; i >= 0; i-- {
		block := pba + zoneio.Block(i)

		if t.d2l[block] == invalidPBA {
			continue
		}

		t.d2l[block] = invalidPBA

		zi := zoneOf(t.cfg, block)
		z := &t.zones[zi]
		z.invalidCount++

		t.policy.OnInvalidate(policy.ZoneID(zi), z.invalidCount, t.wrTick[block], t.currentTick)
	}
}

// validateLocked marks len(lbas) physical blocks starting at pba as
// holding live data for the given logical blocks, and stamps their
// write tick for future cps accounting. mu must be held.
func (t *Target) validateLocked(pba zoneio.Block, lbas []uint64) {
	for i, lba := range lbas {
		block := pba + zoneio.Block(i)
		t.d2l[block] = lba
		t.wrTick[block] = t.currentTick
	}
}

// updateLocked points lba at pba, invalidating lba's previous physical
// location if it had one. mu must be held.
func (t *Target) updateLocked(lba uint64, pba zoneio.Block) {
	t.bumpGen()
	defer t.bumpGen()

	if old, ok := t.lookupLocked(lba); ok {
		t.invalidateLocked(old, 1)
	}

	t.validateLocked(pba, []uint64{lba})
	t.l2d[lba] = uint64(pba)
}

// updateIfEqLocked moves lba's mapping from oldPba to newPba only if
// lba still maps to oldPba, returning whether it did, so a remap never
// clobbers a write that raced ahead of it. The reclaim copy engine
// commits its copies with remapCopyLocked instead. mu must be held.
func (t *Target) updateIfEqLocked(lba uint64, oldPba, newPba zoneio.Block) bool {
	cur, ok := t.lookupLocked(lba)
	if !ok || cur != oldPba {
		return false
	}

	t.bumpGen()
	defer t.bumpGen()

	t.invalidateLocked(oldPba, 1)
	t.validateLocked(newPba, []uint64{lba})
	t.l2d[lba] = uint64(newPba)

	return true
}

// remapCopyLocked is remap_copy: for each of n blocks
// copied from readBacking to writeBacking, it repoints the logical
// block that owned readBacking at writeBacking. Unlike updateIfEqLocked
// it does not invalidate readBacking — the reclaim copy engine that
// calls this is gated by the write-outstanding semaphore, so no
// foreground write can retarget readBacking's logical owner between
// the copy completing and this call, and readBacking's whole zone is
// about to be reset wholesale by the caller, which is what actually
// retires readBacking's d2l entry. mu must be held.
func (t *Target) remapCopyLocked(readBacking, writeBacking zoneio.Block, n uint32) {
	t.bumpGen()
	defer t.bumpGen()

	for i := uint32(0); i < n; i++ {
		src := readBacking + zoneio.Block(i)
		dst := writeBacking + zoneio.Block(i)

		u, ok := t.validLBAAtLocked(src)
		if !ok {
			continue
		}

		t.l2d[u] = uint64(dst)
		t.d2l[dst] = u
		t.wrTick[dst] = t.currentTick
	}
}

// unmapZoneLocked clears every d2l entry in the zone and resets its
// counters after it has been fully reclaimed and erased on the
// device. mu must be held.
func (t *Target) unmapZoneLocked(zi int) {
	t.bumpGen()
	defer t.bumpGen()

	z := &t.zones[zi]

	for b := z.start; b < z.start+z.len; b++ {
		t.d2l[b] = invalidPBA
		t.wrTick[b] = 0
	}

	z.wp = 0
	z.invalidCount = 0
	z.fullAt = 0
	z.cond = condEmpty
}
