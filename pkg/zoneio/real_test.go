package zoneio_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zoneftl/zoneftl/pkg/zoneio"
)

func TestReal_WriteRequiresWritePointer(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dev.img")

	r, err := zoneio.NewReal(path, 4096, 8, 2, 2)
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 4096)

	err = r.SubmitWrite(ctx, 0, buf).Wait(ctx)
	require.NoError(t, err)

	err = r.SubmitWrite(ctx, 5, buf).Wait(ctx)
	require.Error(t, err)

	err = r.SubmitWrite(ctx, 1, buf).Wait(ctx)
	require.NoError(t, err)
}

func TestReal_ZoneFullsAndResets(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dev.img")

	r, err := zoneio.NewReal(path, 4096, 2, 1, 1)
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 4096)

	require.NoError(t, r.SubmitWrite(ctx, 0, buf).Wait(ctx))
	require.NoError(t, r.SubmitWrite(ctx, 1, buf).Wait(ctx))

	zones, err := r.ReportZones(ctx)
	require.NoError(t, err)
	require.Equal(t, zoneio.ZoneFull, zones[0].Cond)

	require.Error(t, r.SubmitWrite(ctx, 2, buf).Wait(ctx))

	require.NoError(t, r.ResetZone(ctx, 0))

	zones, err = r.ReportZones(ctx)
	require.NoError(t, err)
	require.Equal(t, zoneio.ZoneEmpty, zones[0].Cond)
	require.Equal(t, zoneio.Block(0), zones[0].WP)

	require.NoError(t, r.SubmitWrite(ctx, 0, buf).Wait(ctx))
}

func TestReal_ReadWriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dev.img")

	r, err := zoneio.NewReal(path, 512, 4, 1, 2)
	require.NoError(t, err)
	defer r.Close()

	want := make([]byte, 512)
	for i := range want {
		want[i] = byte(i)
	}

	require.NoError(t, r.SubmitWrite(ctx, 0, want).Wait(ctx))

	got := make([]byte, 512)
	require.NoError(t, r.SubmitRead(ctx, 0, got).Wait(ctx))
	require.Equal(t, want, got)
}

func TestChaos_InjectsFailuresDeterministically(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dev.img")

	real, err := zoneio.NewReal(path, 4096, 4, 1, 1)
	require.NoError(t, err)
	defer real.Close()

	c := zoneio.NewChaos(real, 42)
	c.FailRate = 1.0
	c.DyingAfter = 2

	buf := make([]byte, 4096)

	err = c.SubmitWrite(ctx, 0, buf).Wait(ctx)
	require.ErrorIs(t, err, zoneio.ErrInjected)

	err = c.SubmitWrite(ctx, 0, buf).Wait(ctx)
	require.ErrorIs(t, err, zoneio.ErrDeviceDying)

	err = c.SubmitWrite(ctx, 0, buf).Wait(ctx)
	require.ErrorIs(t, err, zoneio.ErrDeviceDying)
}

func TestSequential_AllowsInOrderWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dev.img")

	real, err := zoneio.NewReal(path, 4096, 4, 1, 1)
	require.NoError(t, err)
	defer real.Close()

	var violations []string
	s := zoneio.NewSequential(real, func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	})

	buf := make([]byte, 4096)

	require.NoError(t, s.SubmitWrite(ctx, 0, buf).Wait(ctx))
	require.NoError(t, s.SubmitWrite(ctx, 1, buf).Wait(ctx))
	require.Empty(t, violations)
}

func TestSequential_ReportsOutOfOrderWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dev.img")

	real, err := zoneio.NewReal(path, 4096, 4, 1, 1)
	require.NoError(t, err)
	defer real.Close()

	var violations []string
	s := zoneio.NewSequential(real, func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	})

	buf := make([]byte, 4096)

	// Bypass Sequential's own wp check by writing directly through the
	// wrapped Real, then show Sequential flags the next write as
	// stale once the write pointer has moved past where it expects.
	require.NoError(t, real.SubmitWrite(ctx, 0, buf).Wait(ctx))
	require.NoError(t, real.SubmitWrite(ctx, 1, buf).Wait(ctx))

	_ = s.SubmitWrite(ctx, 0, buf).Wait(ctx)
	require.NotEmpty(t, violations)
}
