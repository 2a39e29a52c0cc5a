package policy

import "container/list"

// bucketIndex partitions full zones into zoneLen+1 buckets keyed by
// invalid-block count, each an intrusive doubly linked list. Insert,
// remove, and "pick from the highest non-empty bucket" are all O(1)
// amortized plus O(zoneLen) for the bucket scan, independent of the
// number of zones — the property the "constant" policies trade for
// Greedy/CB's O(n-zones) scan.
type bucketIndex struct {
	buckets []list.List
	elems   map[ZoneID]*list.Element
	bucket  map[ZoneID]int
}

func newBucketIndex(zoneLen int) *bucketIndex {
	return &bucketIndex{
		buckets: make([]list.List, zoneLen+1),
		elems:   make(map[ZoneID]*list.Element),
		bucket:  make(map[ZoneID]int),
	}
}

func (b *bucketIndex) insert(z ZoneID, invalidCount uint32) {
	b.removeIfPresent(z)

	idx := clampBucket(invalidCount, len(b.buckets))
	el := b.buckets[idx].PushBack(z)
	b.elems[z] = el
	b.bucket[z] = idx
}

func (b *bucketIndex) removeIfPresent(z ZoneID) {
	el, ok := b.elems[z]
	if !ok {
		return
	}

	idx := b.bucket[z]
	b.buckets[idx].Remove(el)
	delete(b.elems, z)
	delete(b.bucket, z)
}

// highest returns the front element of the highest-indexed non-empty
// bucket, without removing it. Bucket 0 holds zones with
// invalid_count == 0, never returned as a victim
// ("All policies return None when no FULL zone with invalid_count > 0
// is available"), so it is never considered here.
func (b *bucketIndex) highest() (ZoneID, bool) {
	for i := len(b.buckets) - 1; i >= 1; i-- {
		if front := b.buckets[i].Front(); front != nil {
			return front.Value.(ZoneID), true
		}
	}

	return 0, false
}

func clampBucket(invalidCount uint32, n int) int {
	idx := int(invalidCount)
	if idx >= n {
		idx = n - 1
	}

	return idx
}

// ConstantGreedy is Greedy with O(1)-amortized victim selection: zones
// are bucketed by invalid-block count and the policy always returns a
// zone from the highest-occupied bucket, which by construction holds
// the maximum invalid count.
type ConstantGreedy struct {
	stats ZoneStats
	idx   *bucketIndex
}

func NewConstantGreedy(stats ZoneStats, numZones int) *ConstantGreedy {
	return &ConstantGreedy{stats: stats, idx: newBucketIndex(int(stats.ZoneLen()))}
}

func (p *ConstantGreedy) Name() string { return "constant-greedy" }

func (p *ConstantGreedy) OnZoneFull(z ZoneID) {
	p.idx.insert(z, p.stats.InvalidCount(z))
}

func (p *ConstantGreedy) OnInvalidate(z ZoneID, invalidCount uint32, _, _ uint64) {
	if _, tracked := p.idx.elems[z]; tracked {
		p.idx.insert(z, invalidCount)
	}
}

func (p *ConstantGreedy) SelectVictim() (ZoneID, bool) {
	return p.idx.highest()
}

func (p *ConstantGreedy) OnVictimReset(z ZoneID) {
	p.idx.removeIfPresent(z)
}

var _ Policy = (*ConstantGreedy)(nil)

// ConstantCostBenefit approximates CostBenefit in O(1)-amortized time
// by bucketing on invalid count like ConstantGreedy, but breaking ties
// within the top bucket by age (oldest first), approximating the
// age*invalid/valid ranking without a full rescan.
type ConstantCostBenefit struct {
	stats ZoneStats
	idx   *bucketIndex
}

func NewConstantCostBenefit(stats ZoneStats, numZones int) *ConstantCostBenefit {
	return &ConstantCostBenefit{stats: stats, idx: newBucketIndex(int(stats.ZoneLen()))}
}

func (p *ConstantCostBenefit) Name() string { return "constant-cost-benefit" }

func (p *ConstantCostBenefit) OnZoneFull(z ZoneID) {
	p.idx.insert(z, p.stats.InvalidCount(z))
}

func (p *ConstantCostBenefit) OnInvalidate(z ZoneID, invalidCount uint32, _, _ uint64) {
	if _, tracked := p.idx.elems[z]; tracked {
		p.idx.insert(z, invalidCount)
	}
}

func (p *ConstantCostBenefit) SelectVictim() (ZoneID, bool) {
	idx := p.idx
	// Bucket 0 holds invalid_count == 0 zones; never a valid victim,
	// see bucketIndex.highest.
	for i := len(idx.buckets) - 1; i >= 1; i-- {
		bucket := &idx.buckets[i]
		if bucket.Len() == 0 {
			continue
		}

		var (
			best    ZoneID
			bestAge uint64
			found   bool
		)

		for el := bucket.Front(); el != nil; el = el.Next() {
			z := el.Value.(ZoneID)

			age := p.stats.Age(z)
			if !found || age > bestAge {
				best, bestAge, found = z, age, true
			}
		}

		return best, found
	}

	return 0, false
}

func (p *ConstantCostBenefit) OnVictimReset(z ZoneID) {
	p.idx.removeIfPresent(z)
}

var _ Policy = (*ConstantCostBenefit)(nil)
