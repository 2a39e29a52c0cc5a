package policy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zoneftl/zoneftl/pkg/ftl/policy"
)

// fakeStats is a mutable in-memory [policy.ZoneStats] for exercising
// policies without a real translation layer.
type fakeStats struct {
	zoneLen uint32
	now     uint64
	invalid map[policy.ZoneID]uint32
	valid   map[policy.ZoneID]uint32
	age     map[policy.ZoneID]uint64
}

func newFakeStats(zoneLen uint32) *fakeStats {
	return &fakeStats{
		zoneLen: zoneLen,
		invalid: map[policy.ZoneID]uint32{},
		valid:   map[policy.ZoneID]uint32{},
		age:     map[policy.ZoneID]uint64{},
	}
}

func (f *fakeStats) InvalidCount(z policy.ZoneID) uint32 { return f.invalid[z] }
func (f *fakeStats) ValidCount(z policy.ZoneID) uint32   { return f.valid[z] }
func (f *fakeStats) Age(z policy.ZoneID) uint64          { return f.age[z] }
func (f *fakeStats) ZoneLen() uint32                     { return f.zoneLen }
func (f *fakeStats) Now() uint64                         { return f.now }

var allMethods = []policy.Method{
	policy.Greedy,
	policy.CostBenefit,
	policy.FastCostBenefit,
	policy.ApproximateCostBenefit,
	policy.ConstantGreedy,
	policy.ConstantCostBenefit,
	policy.FeGC,
	policy.FaGCPlus,
}

func TestAllPolicies_EmptyIndexHasNoVictim(t *testing.T) {
	for _, m := range allMethods {
		t.Run(m.String(), func(t *testing.T) {
			stats := newFakeStats(64)

			p, err := policy.New(m, stats, 8, policy.Options{})
			require.NoError(t, err)

			_, ok := p.SelectVictim()
			require.False(t, ok)
		})
	}
}

func TestAllPolicies_FullZoneWithNoInvalidBlocksHasNoVictim(t *testing.T) {
	for _, m := range allMethods {
		t.Run(m.String(), func(t *testing.T) {
			stats := newFakeStats(64)
			stats.valid[0], stats.invalid[0], stats.age[0] = 64, 0, 10

			p, err := policy.New(m, stats, 8, policy.Options{})
			require.NoError(t, err)

			p.OnZoneFull(0)

			_, ok := p.SelectVictim()
			require.False(t, ok)
		})
	}
}

func TestAllPolicies_PrefersMoreInvalidBlocks(t *testing.T) {
	for _, m := range allMethods {
		t.Run(m.String(), func(t *testing.T) {
			stats := newFakeStats(64)
			stats.valid[0], stats.invalid[0], stats.age[0] = 60, 4, 10
			stats.valid[1], stats.invalid[1], stats.age[1] = 10, 54, 10

			p, err := policy.New(m, stats, 8, policy.Options{})
			require.NoError(t, err)

			p.OnZoneFull(0)
			p.OnZoneFull(1)

			// Report each invalidated block the way the translation
			// layer does, so policies that rank by accumulated
			// invalidations (FeGC, FaGC+) see the same garbage.
			for z := policy.ZoneID(0); z < 2; z++ {
				for i := uint32(1); i <= stats.invalid[z]; i++ {
					p.OnInvalidate(z, i, 0, stats.age[z])
				}
			}

			victim, ok := p.SelectVictim()
			require.True(t, ok)
			require.Equal(t, policy.ZoneID(1), victim)
		})
	}
}

func TestAllPolicies_ResetRemovesFromIndex(t *testing.T) {
	for _, m := range allMethods {
		t.Run(m.String(), func(t *testing.T) {
			stats := newFakeStats(64)
			stats.valid[0], stats.invalid[0], stats.age[0] = 60, 4, 10

			p, err := policy.New(m, stats, 8, policy.Options{})
			require.NoError(t, err)

			p.OnZoneFull(0)

			_, ok := p.SelectVictim()
			require.True(t, ok)

			p.OnVictimReset(0)

			_, ok = p.SelectVictim()
			require.False(t, ok)
		})
	}
}

func TestFeGCAndFaGCPlus_AccumulateCPSOnInvalidate(t *testing.T) {
	stats := newFakeStats(64)
	stats.valid[0], stats.invalid[0], stats.age[0] = 60, 4, 10
	stats.valid[1], stats.invalid[1], stats.age[1] = 60, 4, 10

	for _, m := range []policy.Method{policy.FeGC, policy.FaGCPlus} {
		t.Run(m.String(), func(t *testing.T) {
			p, err := policy.New(m, stats, 8, policy.Options{})
			require.NoError(t, err)

			p.OnZoneFull(0)
			p.OnZoneFull(1)

			// zone 1 accumulates a much larger cps than zone 0.
			p.OnInvalidate(0, stats.invalid[0], 100, 101)
			p.OnInvalidate(1, stats.invalid[1], 0, 1000)

			victim, ok := p.SelectVictim()
			require.True(t, ok)
			require.Equal(t, policy.ZoneID(1), victim)
		})
	}
}
