package ftl

import (
	"context"
	"fmt"
	"time"

	"github.com/zoneftl/zoneftl/pkg/ftl/policy"
	"github.com/zoneftl/zoneftl/pkg/zoneio"
)

// Resume starts the background reclaim loop. Calling Resume on an
// already-resumed Target is a no-op.
func (t *Target) Resume() {
	t.mu.Lock()
	if t.reclaimCancel != nil {
		t.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.reclaimCancel = cancel
	t.reclaimDone = make(chan struct{})
	t.mu.Unlock()

	go t.reclaimLoop(ctx)
}

// Suspend stops the reclaim loop and waits for its current tick, if
// any, to finish. Calling Suspend when not resumed is a no-op.
func (t *Target) Suspend() {
	t.mu.Lock()
	cancel := t.reclaimCancel
	done := t.reclaimDone
	t.reclaimCancel = nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (t *Target) reclaimLoop(ctx context.Context) {
	defer close(t.reclaimDone)

	ticker := time.NewTicker(t.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.reclaimTick(ctx)
		}
	}
}

// shouldReclaimLocked reports whether free zone headroom has dropped
// to the configured low watermark. mu must be held.
func (t *Target) shouldReclaimLocked() bool {
	return t.freeZonePctLocked() <= t.cfg.ReclaimLowWatermark
}

// ReclaimOnce runs reclaim ticks synchronously until free zone
// headroom clears the high watermark or no victim remains, for
// deterministic tests and CLI scripting instead of waiting on the
// background ticker.
func (t *Target) ReclaimOnce(ctx context.Context) error {
	for {
		t.mu.Lock()
		pct := t.freeZonePctLocked()
		t.mu.Unlock()

		if pct >= t.cfg.ReclaimHighWatermark {
			return nil
		}

		reclaimed, err := t.reclaimOneVictim(ctx)
		if err != nil {
			return err
		}

		if !reclaimed {
			return nil
		}
	}
}

func (t *Target) reclaimTick(ctx context.Context) {
	t.mu.Lock()
	should := t.shouldReclaimLocked()
	t.mu.Unlock()

	if !should {
		return
	}

	for {
		t.mu.Lock()
		pct := t.freeZonePctLocked()
		t.mu.Unlock()

		if pct >= t.cfg.ReclaimHighWatermark {
			return
		}

		reclaimed, err := t.reclaimOneVictim(ctx)
		if err != nil {
			t.logger.Error("reclaim tick failed", "error", err)
			return
		}

		if !reclaimed {
			return
		}
	}
}

// reclaimOneVictim selects one victim zone, copies its remaining valid
// blocks forward, and resets it. Returns reclaimed=false if the
// policy has no eligible zone.
func (t *Target) reclaimOneVictim(ctx context.Context) (bool, error) {
	t.mu.Lock()
	zid, ok := t.policy.SelectVictim()
	t.mu.Unlock()

	if !ok {
		return false, nil
	}

	zi := int(zid)

	t.mu.Lock()
	start := t.zones[zi].start
	length := t.zones[zi].len
	t.mu.Unlock()

	copied := 0

	for b := start; b < start+length; {
		t.mu.Lock()
		_, valid := t.validLBAAtLocked(b)
		if !valid {
			t.mu.Unlock()
			b++

			continue
		}

		run := uint32(1)
		for b+zoneio.Block(run) < start+length {
			if _, ok := t.validLBAAtLocked(b + zoneio.Block(run)); !ok {
				break
			}

			run++
		}
		t.mu.Unlock()

		n, err := t.copyRun(ctx, b, run)
		if err != nil {
			return false, err
		}

		copied += int(n)
		b += zoneio.Block(n)
	}

	// Physical reset must succeed before any logical state says the
	// zone is free: otherwise a failed reset could leave a zone marked
	// empty and handed back out for writes while the device still holds
	// its old data. Serialized through writeSem like every other write
	// to the device, so a concurrent user write can't land mid-reset.
	if err := t.acquireWriteSem(ctx); err != nil {
		return false, err
	}

	if err := t.provider.ResetZone(ctx, start); err != nil {
		t.releaseWriteSem()

		reason := error(ErrIO)
		if t.markDeviceDyingIfNeeded(err) {
			reason = ErrDeviceDying
		}

		wrapped := fmt.Errorf("reset zone %d: %w: %w", zi, reason, err)
		t.reportFatal(wrapped)

		return false, wrapped
	}

	t.mu.Lock()
	t.policy.OnVictimReset(policy.ZoneID(zi))
	t.unmapZoneLocked(zi)
	t.freeZones++
	t.mu.Unlock()

	t.releaseWriteSem()

	t.logger.Info("reclaimed zone", "zone", zi, "blocks_copied", copied, "policy", t.policy.Name())

	return true, nil
}

// copyRun reserves up to want contiguous blocks in the active target
// zone (reserveRunLocked clamps to
// whatever room is left there, so the returned count may be smaller
// than want), copies that many blocks from src, and commits the move
// with remap_copy — all while holding the single write-outstanding
// slot user writes also contend for, so no foreground write can land
// on the active zone between the copy completing and the mapping
// rewrite. Returns the number of blocks actually copied.
func (t *Target) copyRun(ctx context.Context, src zoneio.Block, want uint32) (uint32, error) {
	if err := t.acquireWriteSem(ctx); err != nil {
		return 0, err
	}
	defer t.releaseWriteSem()

	t.mu.Lock()
	dst, n, err := t.reserveRunLocked(want)
	t.mu.Unlock()

	if err != nil {
		return 0, err
	}

	if err := t.provider.SubmitCopy(ctx, src, dst, zoneio.Block(n)).Wait(ctx); err != nil {
		reason := error(ErrIO)
		if t.markDeviceDyingIfNeeded(err) {
			reason = ErrDeviceDying
		}

		return 0, fmt.Errorf("copy blocks [%d, %d) to %d: %w: %w", src, src+zoneio.Block(n), dst, reason, err)
	}

	t.mu.Lock()
	t.remapCopyLocked(src, dst, n)
	t.gcWritten += uint64(n)
	t.currentTick += uint64(n)
	t.mu.Unlock()

	return n, nil
}
