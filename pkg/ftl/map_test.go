package ftl

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zoneftl/zoneftl/pkg/ftl/policy"
	"github.com/zoneftl/zoneftl/pkg/zoneio"
)

// newMapTestTarget builds a small Target for exercising the unexported
// mapping primitives directly, the way policy_test.go exercises each
// policy's index against a fake ZoneStats rather than a full Target.
func newMapTestTarget(t *testing.T) *Target {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dev.img")

	provider, err := zoneio.NewReal(path, 512, 4, 8, 2)
	require.NoError(t, err)

	t.Cleanup(func() { _ = provider.Close() })

	cfg := Config{
		BlockSize:            512,
		ZoneBlocks:           4,
		NumZones:             8,
		OverprovisioningRate: 0.25,
		Policy:               policy.Greedy,
		ReclaimLowWatermark:  0.25,
		ReclaimHighWatermark: 0.5,
		ReclaimInterval:      time.Hour,
	}

	target, err := New(cfg, provider)
	require.NoError(t, err)

	t.Cleanup(func() { _ = target.Close() })

	return target
}

func TestLookupRunLocked_UnmappedRun(t *testing.T) {
	target := newMapTestTarget(t)

	target.mu.Lock()
	pba, state, run := target.lookupRunLocked(0, 5)
	target.mu.Unlock()

	require.Equal(t, lookupUnmapped, state)
	require.Equal(t, uint64(5), run)
	require.Equal(t, zoneio.Block(0), pba)
}

func TestLookupRunLocked_StopsAtFirstUnmapped(t *testing.T) {
	target := newMapTestTarget(t)

	target.mu.Lock()
	target.updateLocked(0, 10)
	target.updateLocked(1, 11)
	// lba 2 left unmapped.
	pba, state, run := target.lookupRunLocked(0, 5)
	target.mu.Unlock()

	require.Equal(t, lookupValid, state)
	require.Equal(t, zoneio.Block(10), pba)
	require.Equal(t, uint64(2), run)
}

func TestLookupRunLocked_StopsAtDiscontinuity(t *testing.T) {
	target := newMapTestTarget(t)

	target.mu.Lock()
	target.updateLocked(0, 10)
	target.updateLocked(1, 11)
	target.updateLocked(2, 20) // not contiguous with 11
	pba, state, run := target.lookupRunLocked(0, 5)
	target.mu.Unlock()

	require.Equal(t, lookupValid, state)
	require.Equal(t, zoneio.Block(10), pba)
	require.Equal(t, uint64(2), run)
}

func TestUpdateLocked_InvalidatesPriorMapping(t *testing.T) {
	target := newMapTestTarget(t)

	target.mu.Lock()
	target.updateLocked(0, 10)
	require.False(t, target.zones[zoneOf(target.cfg, 10)].invalidCount > 0)

	target.updateLocked(0, 20)
	pba, ok := target.lookupLocked(0)
	target.mu.Unlock()

	require.True(t, ok)
	require.Equal(t, zoneio.Block(20), pba)

	target.mu.Lock()
	_, liveAt10 := target.validLBAAtLocked(10)
	_, liveAt20 := target.validLBAAtLocked(20)
	invalidCount := target.zones[zoneOf(target.cfg, 10)].invalidCount
	target.mu.Unlock()

	require.False(t, liveAt10, "old physical block must no longer resolve to a logical owner")
	require.True(t, liveAt20)
	require.Equal(t, uint32(1), invalidCount)
}

func TestUpdateIfEqLocked_SkipsOnStaleOrigin(t *testing.T) {
	target := newMapTestTarget(t)

	target.mu.Lock()
	target.updateLocked(0, 10)
	target.updateLocked(0, 20) // lba 0 now points at 20, not 10

	moved := target.updateIfEqLocked(0, 10, 99)
	target.mu.Unlock()

	require.False(t, moved, "must not move a mapping that no longer matches the expected origin")

	target.mu.Lock()
	pba, ok := target.lookupLocked(0)
	target.mu.Unlock()

	require.True(t, ok)
	require.Equal(t, zoneio.Block(20), pba)
}

func TestUpdateIfEqLocked_MovesOnMatch(t *testing.T) {
	target := newMapTestTarget(t)

	target.mu.Lock()
	target.updateLocked(5, 10)

	moved := target.updateIfEqLocked(5, 10, 30)
	target.mu.Unlock()

	require.True(t, moved)

	target.mu.Lock()
	pba, ok := target.lookupLocked(5)
	_, liveAt10 := target.validLBAAtLocked(10)
	target.mu.Unlock()

	require.True(t, ok)
	require.Equal(t, zoneio.Block(30), pba)
	require.False(t, liveAt10)
}

// TestRemapCopyLocked_DoesNotInvalidateSource pins down the spec
// distinction between remap_copy and update_if_eq: remap_copy moves
// the logical owner to the new physical block but leaves the old
// block's d2l entry and invalid_count alone, because the reclaim copy
// engine's caller is about to reset the whole source zone, which is
// what actually retires that bookkeeping (see map.go).
func TestRemapCopyLocked_DoesNotInvalidateSource(t *testing.T) {
	target := newMapTestTarget(t)

	target.mu.Lock()
	target.updateLocked(7, 10)
	invalidBefore := target.zones[zoneOf(target.cfg, 10)].invalidCount

	target.remapCopyLocked(10, 30, 1)

	pba, ok := target.lookupLocked(7)
	_, liveAt10 := target.validLBAAtLocked(10)
	_, liveAt30 := target.validLBAAtLocked(30)
	invalidAfter := target.zones[zoneOf(target.cfg, 10)].invalidCount
	target.mu.Unlock()

	require.True(t, ok)
	require.Equal(t, zoneio.Block(30), pba)
	require.True(t, liveAt10, "remap_copy must not touch the source block's d2l entry")
	require.True(t, liveAt30)
	require.Equal(t, invalidBefore, invalidAfter)
}

func TestRemapCopyLocked_MultiBlockRun(t *testing.T) {
	target := newMapTestTarget(t)

	target.mu.Lock()
	target.updateLocked(0, 10)
	target.updateLocked(1, 11)
	target.updateLocked(2, 12)

	target.remapCopyLocked(10, 16, 3)

	for i, lba := range []uint64{0, 1, 2} {
		pba, ok := target.lookupLocked(lba)
		require.True(t, ok)
		require.Equal(t, zoneio.Block(16+zoneio.Block(i)), pba)
	}
	target.mu.Unlock()
}
