package policy

import "container/heap"

// FeGC partitions full zones into zoneLen+1 buckets by invalid-block
// count, exactly like [ConstantGreedy], but within each bucket ranks
// zones by their cps accumulator using a max-heap instead of an
// unordered list, so ties on invalid count are broken by the
// cost-weighted accumulator in O(log n) instead of a linear scan.
type FeGC struct {
	stats   ZoneStats
	accum   cpsAccumulator
	buckets []cpsHeap
	items   map[ZoneID]*cpsItem
	bucket  map[ZoneID]int
}

func NewFeGC(stats ZoneStats, numZones int) *FeGC {
	buckets := make([]cpsHeap, int(stats.ZoneLen())+1)
	for i := range buckets {
		heap.Init(&buckets[i])
	}

	return &FeGC{
		stats:   stats,
		accum:   newCPSAccumulator(),
		buckets: buckets,
		items:   make(map[ZoneID]*cpsItem),
		bucket:  make(map[ZoneID]int),
	}
}

func (p *FeGC) Name() string { return "fegc" }

func (p *FeGC) OnZoneFull(z ZoneID) {
	idx := clampBucket(p.stats.InvalidCount(z), len(p.buckets))
	item := &cpsItem{zone: z, cps: p.accum.get(z)}

	heap.Push(&p.buckets[idx], item)
	p.items[z] = item
	p.bucket[z] = idx
}

func (p *FeGC) OnInvalidate(z ZoneID, invalidCount uint32, writtenAt, now uint64) {
	cps := p.accum.add(z, writtenAt, now)

	item, tracked := p.items[z]
	if !tracked {
		return
	}

	oldBucket := p.bucket[z]
	newBucket := clampBucket(invalidCount, len(p.buckets))

	if newBucket == oldBucket {
		item.cps = cps
		heap.Fix(&p.buckets[oldBucket], item.index)

		return
	}

	heap.Remove(&p.buckets[oldBucket], item.index)

	item.cps = cps
	heap.Push(&p.buckets[newBucket], item)
	p.bucket[z] = newBucket
}

func (p *FeGC) SelectVictim() (ZoneID, bool) {
	// Bucket 0 holds invalid_count == 0 zones; never a valid victim,
	// see bucketIndex.highest.
	for i := len(p.buckets) - 1; i >= 1; i-- {
		if len(p.buckets[i]) > 0 {
			return p.buckets[i][0].zone, true
		}
	}

	return 0, false
}

func (p *FeGC) OnVictimReset(z ZoneID) {
	item, tracked := p.items[z]
	if !tracked {
		return
	}

	b := p.bucket[z]
	heap.Remove(&p.buckets[b], item.index)
	delete(p.items, z)
	delete(p.bucket, z)
	p.accum.reset(z)
}

var _ Policy = (*FeGC)(nil)
