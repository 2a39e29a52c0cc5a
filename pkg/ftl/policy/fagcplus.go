package policy

import "container/heap"

// FaGCPlus ranks every full zone in a single global max-heap keyed by
// the same cps accumulator FeGC uses, rather than FeGC's two-level
// bucket-then-heap lookup. Dropping the invalid-count partition
// trades FeGC's "always prefer more invalid blocks" bias for a purer
// cost ranking, at the same O(log n) selection cost.
type FaGCPlus struct {
	stats ZoneStats
	accum cpsAccumulator
	h     cpsHeap
	items map[ZoneID]*cpsItem
}

func NewFaGCPlus(stats ZoneStats) *FaGCPlus {
	h := make(cpsHeap, 0)
	heap.Init(&h)

	return &FaGCPlus{
		stats: stats,
		accum: newCPSAccumulator(),
		h:     h,
		items: make(map[ZoneID]*cpsItem),
	}
}

func (p *FaGCPlus) Name() string { return "fagc-plus" }

func (p *FaGCPlus) OnZoneFull(z ZoneID) {
	item := &cpsItem{zone: z, cps: p.accum.get(z)}
	heap.Push(&p.h, item)
	p.items[z] = item
}

func (p *FaGCPlus) OnInvalidate(z ZoneID, _ uint32, writtenAt, now uint64) {
	cps := p.accum.add(z, writtenAt, now)

	if item, tracked := p.items[z]; tracked {
		item.cps = cps
		heap.Fix(&p.h, item.index)
	}
}

func (p *FaGCPlus) SelectVictim() (ZoneID, bool) {
	if len(p.h) == 0 {
		return 0, false
	}

	// The common case: the heap root already has invalid blocks to
	// reclaim. A root with invalid_count == 0 can only happen for a
	// zone just registered by OnZoneFull with no invalidations yet, so
	// fall back to a linear scan of the (small) heap rather than
	// restructuring it around a dimension it isn't ordered by.
	if p.stats.InvalidCount(p.h[0].zone) > 0 {
		return p.h[0].zone, true
	}

	var (
		best    ZoneID
		bestCPS int64
		found   bool
	)

	for _, item := range p.h {
		if p.stats.InvalidCount(item.zone) == 0 {
			continue
		}

		if !found || item.cps > bestCPS {
			best, bestCPS, found = item.zone, item.cps, true
		}
	}

	return best, found
}

func (p *FaGCPlus) OnVictimReset(z ZoneID) {
	item, tracked := p.items[z]
	if !tracked {
		return
	}

	heap.Remove(&p.h, item.index)
	delete(p.items, z)
	p.accum.reset(z)
}

var _ Policy = (*FaGCPlus)(nil)
