package policy

import (
	"sort"

	"github.com/google/btree"
)

// fastCBStartThreshold mirrors DMZAP_START_THRESHOLD_CB from the
// original reclaim design: the initial cost-benefit threshold before
// the first adjustment has ever run.
const fastCBStartThreshold = 15000

// classZeroDeltaPeriod mirrors DMZAP_CLASS_0_DELTA_PERIOD: a Class-0
// zone whose predicted shift_time is still within this many ticks of
// now is protected from immediately bouncing back to Class 1 on a
// fresh invalidation.
const classZeroDeltaPeriod = 2

type fastCBItem struct {
	shiftTime uint64
	seq       uint64
	zone      ZoneID
}

func fastCBLess(a, b fastCBItem) bool {
	if a.shiftTime != b.shiftTime {
		return a.shiftTime < b.shiftTime
	}

	return a.seq < b.seq
}

// FastCostBenefit splits full zones into two classes: Class 0 holds
// zones whose cost-benefit score currently exceeds a dynamic
// threshold, scanned linearly on selection; Class 1 holds the rest,
// ordered by a predicted shift_time (the tick at which each zone's CB
// is expected to cross the threshold) in a B-tree for O(log n)
// insert/remove/min. When Class 0 empties out or overflows its cap,
// the threshold is recomputed from every FULL zone's current CB and
// both classes are rebuilt around it, so Class 1's O(n) rescans stay
// rare instead of happening on every selection the way CostBenefit
// does.
type FastCostBenefit struct {
	stats ZoneStats

	classZeroCap     int
	classZeroOptimal int

	threshold uint64
	seq       uint64

	class1 *btree.BTreeG[fastCBItem]
	items  map[ZoneID]fastCBItem // zone -> its Class 1 item, if any
	class0 map[ZoneID]struct{}
	full   map[ZoneID]struct{} // every FULL zone, class 0 or 1, for threshold rescans
}

func NewFastCostBenefit(stats ZoneStats, numZones, classZeroCap, classZeroOptimal int) *FastCostBenefit {
	if classZeroCap <= 0 {
		classZeroCap = numZones
	}

	if classZeroOptimal <= 0 {
		classZeroOptimal = classZeroCap / 2
		if classZeroOptimal == 0 {
			classZeroOptimal = 1
		}
	}

	return &FastCostBenefit{
		stats:            stats,
		classZeroCap:     classZeroCap,
		classZeroOptimal: classZeroOptimal,
		threshold:        fastCBStartThreshold,
		class1:           btree.NewG(32, fastCBLess),
		items:            make(map[ZoneID]fastCBItem),
		class0:           make(map[ZoneID]struct{}),
		full:             make(map[ZoneID]struct{}),
	}
}

func (p *FastCostBenefit) Name() string { return "fast-cost-benefit" }

func (p *FastCostBenefit) cb(z ZoneID) uint64 {
	return costBenefitValue(p.stats.Age(z), p.stats.InvalidCount(z), p.stats.ValidCount(z))
}

// calcShiftTime predicts the tick at which zone z's cost-benefit value
// crosses the current threshold, mirroring dmzap_calc_shift_time: a
// zone already at or above threshold shifts immediately.
func (p *FastCostBenefit) calcShiftTime(z ZoneID, cb, now uint64) uint64 {
	if cb >= p.threshold {
		return now
	}

	valid := uint64(p.stats.ValidCount(z))
	invalid := uint64(p.stats.InvalidCount(z))

	if invalid == 0 {
		return p.threshold*2*valid/cbScaleFactor + (now - p.stats.Age(z))
	}

	return p.threshold*2*valid/(invalid*cbScaleFactor) + (now - p.stats.Age(z))
}

func (p *FastCostBenefit) insertClass1(z ZoneID, cb, now uint64) {
	p.seq++
	item := fastCBItem{shiftTime: p.calcShiftTime(z, cb, now), seq: p.seq, zone: z}
	p.class1.ReplaceOrInsert(item)
	p.items[z] = item
}

func (p *FastCostBenefit) OnZoneFull(z ZoneID) {
	now := p.stats.Now()
	score := p.cb(z)

	p.full[z] = struct{}{}

	if score > p.threshold || (len(p.items) == 0 && len(p.class0) < p.classZeroCap) {
		p.class0[z] = struct{}{}
		return
	}

	p.insertClass1(z, score, now)
}

// OnInvalidate mirrors the DMZAP_FAST_CB branch of
// dmzap_invalidate_blocks: a Class 1 zone's shift_time is always
// recomputed and the zone re-sorted; a Class 0 zone only moves to
// Class 1 if Class 1 already has members or Class 0 is over its cap,
// and its new shift_time isn't still within the grace window.
func (p *FastCostBenefit) OnInvalidate(z ZoneID, _ uint32, _, now uint64) {
	if _, tracked := p.full[z]; !tracked {
		return
	}

	score := p.cb(z)

	if _, inClassZero := p.class0[z]; inClassZero {
		shiftTime := p.calcShiftTime(z, score, now)

		moveToClassOne := (len(p.items) != 0 || len(p.class0) >= p.classZeroCap) && shiftTime > now+classZeroDeltaPeriod
		if moveToClassOne {
			delete(p.class0, z)
			p.insertClass1(z, score, now)
		}

		return
	}

	if item, inClassOne := p.items[z]; inClassOne {
		p.class1.Delete(item)
		delete(p.items, z)
		p.insertClass1(z, score, now)
	}
}

// adjustThreshold mirrors dmzap_ajust_threshold_cb: recompute every
// FULL zone's CB, pick the (Z - classZeroOptimal)-th smallest as the
// new threshold, and rebuild both classes around it.
func (p *FastCostBenefit) adjustThreshold(now uint64) {
	scores := make([]uint64, 0, len(p.full))
	for z := range p.full {
		scores = append(scores, p.cb(z))
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i] < scores[j] })

	idx := len(scores) - p.classZeroOptimal
	if idx < 0 {
		idx = 0
	}

	p.threshold = scores[idx]

	p.class1 = btree.NewG(32, fastCBLess)
	p.items = make(map[ZoneID]fastCBItem)
	p.class0 = make(map[ZoneID]struct{})

	for z := range p.full {
		score := p.cb(z)
		if score > p.threshold {
			p.class0[z] = struct{}{}
			continue
		}

		p.insertClass1(z, score, now)
	}
}

func (p *FastCostBenefit) SelectVictim() (ZoneID, bool) {
	if len(p.full) == 0 {
		return 0, false
	}

	now := p.stats.Now()

	for {
		item, ok := p.class1.Min()
		if !ok || item.shiftTime > now {
			break
		}

		p.class1.Delete(item)
		delete(p.items, item.zone)
		p.class0[item.zone] = struct{}{}
	}

	if (len(p.class0) == 0 && len(p.items) > 0) || len(p.class0) > p.classZeroCap {
		p.adjustThreshold(now)
	}

	var (
		best      ZoneID
		bestScore uint64
		found     bool
	)

	for z := range p.class0 {
		inv := p.stats.InvalidCount(z)
		if inv == 0 {
			continue
		}

		score := costBenefitValue(p.stats.Age(z), inv, p.stats.ValidCount(z))
		if !found || score > bestScore {
			best, bestScore, found = z, score, true
		}
	}

	return best, found
}

func (p *FastCostBenefit) OnVictimReset(z ZoneID) {
	delete(p.full, z)
	delete(p.class0, z)

	if item, ok := p.items[z]; ok {
		p.class1.Delete(item)
		delete(p.items, z)
	}
}

var _ Policy = (*FastCostBenefit)(nil)
