package ftl

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoneftl/zoneftl/pkg/zoneio"
)

// acquireWriteSem blocks until the single write-outstanding slot is
// free or ctx is done. This is the semaphore the original
// write-outstanding flag is redesigned into (see DESIGN.md): user
// writes, the reclaim copy engine and zone resets all pass through it,
// so at most one write, copy run or reset is in flight to the device at
// a time.
func (t *Target) acquireWriteSem(ctx context.Context) error {
	select {
	case t.writeSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Target) releaseWriteSem() {
	<-t.writeSem
}

func (t *Target) checkOpen() error {
	t.mu.Lock()
	closed := t.closed
	dying := t.deviceDying
	t.mu.Unlock()

	if closed {
		return ErrClosed
	}

	// Once the device has been marked dying, every subsequent request
	// short-circuits to failure instead of retrying I/O against a
	// device that will never recover.
	if dying {
		return ErrDeviceDying
	}

	return nil
}

// markDeviceDyingIfNeeded records that the provider has reported the
// device itself has stopped accepting commands, so checkOpen starts
// short-circuiting every later Read/Write/Discard.
func (t *Target) markDeviceDyingIfNeeded(err error) bool {
	if !errors.Is(err, zoneio.ErrDeviceDying) {
		return false
	}

	t.mu.Lock()
	t.deviceDying = true
	t.mu.Unlock()

	return true
}

// syncZoneCondition asks the provider for zone zi's current condition
// and mirrors a READONLY or OFFLINE report into local zone state,
// clearing it as the active zone so the next reservation opens a
// fresh one instead of retrying a zone the device has rejected.
// Best-effort: a failure to report just leaves local state unchanged.
func (t *Target) syncZoneCondition(ctx context.Context, zi int) condition {
	descs, err := t.provider.ReportZones(ctx)
	if err != nil || zi >= len(descs) {
		return condOpen
	}

	var newCond condition

	switch descs[zi].Cond {
	case zoneio.ZoneReadOnly:
		newCond = condReadOnly
	case zoneio.ZoneOffline:
		newCond = condOffline
	default:
		return condOpen
	}

	t.mu.Lock()
	t.zones[zi].cond = newCond
	if t.activeZone == zi {
		t.activeZone = -1
	}
	t.mu.Unlock()

	return newCond
}

// Write writes payload, whose length must be a positive multiple of
// the configured block size, starting at logical block lba. Blocks
// are written one at a time to the device, each serialized through
// the single write-outstanding slot, and each one's mapping is
// published only after its device write completes.
func (t *Target) Write(ctx context.Context, lba uint64, payload []byte) error {
	if err := t.checkOpen(); err != nil {
		return err
	}

	bs := t.cfg.BlockSize
	if len(payload) == 0 || len(payload)%bs != 0 {
		return fmt.Errorf("payload length %d is not a positive multiple of block size %d: %w", len(payload), bs, ErrInvalidConfig)
	}

	n := uint64(len(payload) / bs)
	if lba+n > t.LogicalCapacity() {
		return fmt.Errorf("write [%d, %d) exceeds logical capacity %d: %w", lba, lba+n, t.LogicalCapacity(), ErrOutOfBounds)
	}

	for i := uint64(0); i < n; i++ {
		if err := t.writeOneBlock(ctx, lba+i, payload[i*uint64(bs):(i+1)*uint64(bs)]); err != nil {
			return err
		}
	}

	return nil
}

func (t *Target) writeOneBlock(ctx context.Context, lba uint64, block []byte) error {
	if err := t.acquireWriteSem(ctx); err != nil {
		return err
	}
	defer t.releaseWriteSem()

	t.mu.Lock()
	pba, err := t.reserveWriteLocked()
	t.mu.Unlock()

	if err != nil {
		return err
	}

	if err := t.provider.SubmitWrite(ctx, pba, block).Wait(ctx); err != nil {
		return t.handleWriteFailure(ctx, pba, lba, err)
	}

	t.mu.Lock()
	t.updateLocked(lba, pba)
	t.userWritten++
	t.currentTick++
	t.mu.Unlock()

	return nil
}

// handleWriteFailure classifies a failed physical write: a dying
// device short-circuits every later request, a zone the provider now
// reports READONLY fails EROFS, and anything else is a plain I/O
// error.
func (t *Target) handleWriteFailure(ctx context.Context, pba zoneio.Block, lba uint64, err error) error {
	if t.markDeviceDyingIfNeeded(err) {
		wrapped := fmt.Errorf("write block %d (lba %d): %w", pba, lba, ErrDeviceDying)
		t.reportFatal(wrapped)

		return wrapped
	}

	if t.syncZoneCondition(ctx, zoneOf(t.cfg, pba)) == condReadOnly {
		wrapped := fmt.Errorf("write block %d (lba %d): %w", pba, lba, ErrReadOnly)
		t.reportFatal(wrapped)

		return wrapped
	}

	wrapped := fmt.Errorf("write block %d (lba %d): %w", pba, lba, ErrIO)
	t.reportFatal(wrapped)

	return wrapped
}

// Read reads n logical blocks starting at lba. Logical blocks that
// have never been written read back as zero, matching how an unwritten
// region of a thinly provisioned device reads.
func (t *Target) Read(ctx context.Context, lba uint64, n uint64) ([]byte, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}

	if n == 0 {
		return nil, nil
	}

	if lba+n > t.LogicalCapacity() {
		return nil, fmt.Errorf("read [%d, %d) exceeds logical capacity %d: %w", lba, lba+n, t.LogicalCapacity(), ErrOutOfBounds)
	}

	bs := t.cfg.BlockSize
	out := make([]byte, int(n)*bs)

	// Translate the logical range via the longest contiguous run
	// lookup finds, rather than one lookup per block,
	// so a sequential read issues one physical read per extent instead
	// of one per block. Unmapped runs need no I/O at all: out is
	// already zero-filled by make.
	for left := n; left > 0; {
		i := n - left

		t.mu.Lock()
		pba, state, run := t.lookupRunLocked(lba+i, left)
		t.mu.Unlock()

		if state == lookupValid {
			dst := out[i*uint64(bs) : (i+run)*uint64(bs)]

			if err := t.provider.SubmitRead(ctx, pba, dst).Wait(ctx); err != nil {
				reason := ErrIO
				if t.markDeviceDyingIfNeeded(err) {
					reason = ErrDeviceDying
				}

				wrapped := fmt.Errorf("read blocks [%d, %d) (lba %d): %w", pba, pba+zoneio.Block(run), lba+i, reason)
				t.reportFatal(wrapped)

				return nil, wrapped
			}
		}

		left -= run
	}

	return out, nil
}

// Discard is intentionally unimplemented: the original design stubs
// discard handling, and this layer preserves that rather than
// inventing discard semantics it never specified. It still validates
// bounds.
func (t *Target) Discard(lba, n uint64) error {
	if err := t.checkOpen(); err != nil {
		return err
	}

	if lba+n > t.LogicalCapacity() {
		return fmt.Errorf("discard [%d, %d) exceeds logical capacity %d: %w", lba, lba+n, t.LogicalCapacity(), ErrOutOfBounds)
	}

	return nil
}
