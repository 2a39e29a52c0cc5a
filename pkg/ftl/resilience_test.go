package ftl_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zoneftl/zoneftl/pkg/ftl"
	"github.com/zoneftl/zoneftl/pkg/ftl/policy"
	"github.com/zoneftl/zoneftl/pkg/zoneio"
)

// resetFailingProvider fails the first ResetZone call, then delegates
// every later call to the wrapped provider, for exercising the
// ordering between the physical reset and the logical zone-free
// bookkeeping.
type resetFailingProvider struct {
	zoneio.Provider
	failed bool
}

var errInjectedReset = errors.New("injected reset failure")

func (p *resetFailingProvider) ResetZone(ctx context.Context, zoneStart zoneio.Block) error {
	if !p.failed {
		p.failed = true
		return errInjectedReset
	}

	return p.Provider.ResetZone(ctx, zoneStart)
}

func TestReclaim_ResetFailureLeavesZoneStateUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dev.img")

	real, err := zoneio.NewReal(path, 512, 4, 8, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = real.Close() })

	provider := &resetFailingProvider{Provider: real}

	cfg := ftl.Config{
		BlockSize:            512,
		ZoneBlocks:           4,
		NumZones:             8,
		OverprovisioningRate: 0.25,
		Policy:               policy.Greedy,
		ReclaimLowWatermark:  0.25,
		ReclaimHighWatermark: 0.9,
		ReclaimInterval:      time.Hour,
	}

	target, err := ftl.New(cfg, provider)
	require.NoError(t, err)
	t.Cleanup(func() { _ = target.Close() })

	for lba := uint64(0); lba < 12; lba++ {
		require.NoError(t, target.Write(ctx, lba, block512(1)))
	}

	for lba := uint64(0); lba < 4; lba++ {
		require.NoError(t, target.Write(ctx, lba, block512(2)))
	}

	before := target.Stats()

	err = target.ReclaimOnce(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, ftl.ErrIO)

	// The physical reset failed before any logical state changed: the
	// victim must still count as occupied, not free, and the next
	// reclaim attempt must still find the same victim and succeed once
	// the injected failure has been consumed.
	afterFailure := target.Stats()
	require.Equal(t, before.FreeZones, afterFailure.FreeZones)

	require.NoError(t, target.ReclaimOnce(ctx))

	afterSuccess := target.Stats()
	require.Greater(t, afterSuccess.FreeZones, before.FreeZones)
}

// readOnlyAfterWriteProvider fails the first SubmitWrite landing in
// targetZone, then reports that zone as ZoneReadOnly on every later
// ReportZones call, simulating a device that demotes a zone after a
// write failure.
type readOnlyAfterWriteProvider struct {
	zoneio.Provider
	zoneLen    zoneio.Block
	targetZone int
	failed     bool
}

var errInjectedWrite = errors.New("injected write failure")

type failedCompletion struct{ err error }

func (f failedCompletion) Wait(context.Context) error { return f.err }

func (p *readOnlyAfterWriteProvider) SubmitWrite(ctx context.Context, pba zoneio.Block, data []byte) zoneio.Completion {
	zi := int(uint64(pba) / uint64(p.zoneLen))
	if zi == p.targetZone && !p.failed {
		p.failed = true
		return failedCompletion{err: errInjectedWrite}
	}

	return p.Provider.SubmitWrite(ctx, pba, data)
}

func (p *readOnlyAfterWriteProvider) ReportZones(ctx context.Context) ([]zoneio.ZoneDescriptor, error) {
	descs, err := p.Provider.ReportZones(ctx)
	if err != nil {
		return nil, err
	}

	if p.failed {
		descs[p.targetZone].Cond = zoneio.ZoneReadOnly
	}

	return descs, nil
}

func TestWrite_FailsEROFSAfterProviderReportsZoneReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dev.img")

	real, err := zoneio.NewReal(path, 512, 4, 8, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = real.Close() })

	provider := &readOnlyAfterWriteProvider{Provider: real, zoneLen: 4, targetZone: 0}

	cfg := ftl.Config{
		BlockSize:            512,
		ZoneBlocks:           4,
		NumZones:             8,
		OverprovisioningRate: 0,
		Policy:               policy.Greedy,
		ReclaimLowWatermark:  0.1,
		ReclaimHighWatermark: 0.9,
		ReclaimInterval:      time.Hour,
	}

	target, err := ftl.New(cfg, provider)
	require.NoError(t, err)
	t.Cleanup(func() { _ = target.Close() })

	err = target.Write(ctx, 0, block512(1))
	require.Error(t, err)
	require.ErrorIs(t, err, ftl.ErrReadOnly)

	// The active zone was demoted; the next write must open a fresh
	// zone rather than retry the read-only one.
	require.NoError(t, target.Write(ctx, 4, block512(1)))

	zones := target.ReportZones()
	require.Equal(t, "READONLY", zones[0].Condition)
}

func TestWrite_ShortCircuitsAfterDeviceMarkedDying(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dev.img")

	real, err := zoneio.NewReal(path, 512, 4, 8, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = real.Close() })

	chaos := zoneio.NewChaos(real, 1)
	chaos.FailRate = 1
	chaos.DyingAfter = 1

	cfg := ftl.Config{
		BlockSize:            512,
		ZoneBlocks:           4,
		NumZones:             8,
		OverprovisioningRate: 0,
		Policy:               policy.Greedy,
		ReclaimLowWatermark:  0.1,
		ReclaimHighWatermark: 0.9,
		ReclaimInterval:      time.Hour,
	}

	target, err := ftl.New(cfg, chaos)
	require.NoError(t, err)
	t.Cleanup(func() { _ = target.Close() })

	err = target.Write(ctx, 0, block512(1))
	require.Error(t, err)
	require.ErrorIs(t, err, ftl.ErrDeviceDying)

	_, err = target.Read(ctx, 0, 1)
	require.Error(t, err)
	require.ErrorIs(t, err, ftl.ErrDeviceDying)
}

func TestStats_ReportsFreeUserZonesExcludingOverprovisioning(t *testing.T) {
	ctx := context.Background()
	target := newTestTarget(t, policy.Greedy, 0.9)

	stats := target.Stats()

	// newTestTarget configures 8 zones at OverprovisioningRate 0.25,
	// reserving floor(8*0.25)=2 zones as headroom.
	require.Equal(t, 8, stats.FreeZones)
	require.Equal(t, 6, stats.FreeUserZones)
	require.InDelta(t, 1.0, stats.FreeZonePct, 0.001)
	require.InDelta(t, 1.0, stats.FreeUserZonePct, 0.001)

	for lba := uint64(0); lba < 4; lba++ {
		require.NoError(t, target.Write(ctx, lba, block512(1)))
	}

	afterWrite := target.Stats()
	require.Equal(t, 7, afterWrite.FreeZones)
	require.Equal(t, 5, afterWrite.FreeUserZones)
}
