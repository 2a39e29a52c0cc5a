package policy

// cbScaleFactor matches DMZAP_CB_SCALE_FACTOR from the original
// reclaim design: the cost-benefit formula is scaled by an integer
// constant to keep the ranking in fixed-point arithmetic rather than
// floating point.
const cbScaleFactor = 1000

// costBenefitValue implements age*invalid*K/(2*valid), the standard
// log-structured-filesystem cost-benefit metric: the benefit of
// reclaiming a zone (blocks freed) divided by the cost (blocks that
// must be copied), weighted by how long those free blocks would
// otherwise sit unused.
func costBenefitValue(age uint64, invalid, valid uint32) uint64 {
	if valid == 0 {
		// A zone with no valid blocks is free to reclaim; rank it
		// above any zone that still requires copying.
		return ^uint64(0)
	}

	return age * uint64(invalid) * cbScaleFactor / (2 * uint64(valid))
}

// CostBenefit reclaims the full zone with the highest cost-benefit
// score, scanning every eligible zone on each selection.
type CostBenefit struct {
	stats ZoneStats
	full  map[ZoneID]struct{}
}

func NewCostBenefit(stats ZoneStats) *CostBenefit {
	return &CostBenefit{stats: stats, full: make(map[ZoneID]struct{})}
}

func (c *CostBenefit) Name() string { return "cost-benefit" }

func (c *CostBenefit) OnZoneFull(z ZoneID) {
	c.full[z] = struct{}{}
}

func (c *CostBenefit) OnInvalidate(ZoneID, uint32, uint64, uint64) {}

func (c *CostBenefit) SelectVictim() (ZoneID, bool) {
	var (
		best      ZoneID
		bestScore uint64
		found     bool
	)

	for z := range c.full {
		if c.stats.InvalidCount(z) == 0 {
			continue
		}

		score := costBenefitValue(c.stats.Age(z), c.stats.InvalidCount(z), c.stats.ValidCount(z))
		if !found || score > bestScore {
			best, bestScore, found = z, score, true
		}
	}

	return best, found
}

func (c *CostBenefit) OnVictimReset(z ZoneID) {
	delete(c.full, z)
}

var _ Policy = (*CostBenefit)(nil)
