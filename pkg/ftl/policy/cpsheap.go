package policy

import "container/heap"

// cpsItem is one zone's entry in a cps-ordered max-heap.
type cpsItem struct {
	zone  ZoneID
	cps   int64
	index int
}

// cpsHeap is a container/heap max-heap ordered by cps (highest first),
// shared by FeGC's per-bucket heaps and FaGC+'s single global heap.
type cpsHeap []*cpsItem

func (h cpsHeap) Len() int            { return len(h) }
func (h cpsHeap) Less(i, j int) bool  { return h[i].cps > h[j].cps }
func (h cpsHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *cpsHeap) Push(x any) {
	item := x.(*cpsItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *cpsHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]

	return item
}

// cpsAccumulator tracks each zone's cps accumulator, the difference
// between the global write counter and the write counter recorded the
// last time each of the zone's blocks was written, summed over every
// invalidation — shared by FeGC and FaGC+ per the resolved cwa/cps
// Open Question (see DESIGN.md).
type cpsAccumulator struct {
	cps map[ZoneID]int64
}

func newCPSAccumulator() cpsAccumulator {
	return cpsAccumulator{cps: make(map[ZoneID]int64)}
}

func (a *cpsAccumulator) add(z ZoneID, writtenAt, now uint64) int64 {
	delta := int64(now - writtenAt)
	a.cps[z] += delta

	return a.cps[z]
}

func (a *cpsAccumulator) get(z ZoneID) int64 {
	return a.cps[z]
}

func (a *cpsAccumulator) reset(z ZoneID) {
	delete(a.cps, z)
}
