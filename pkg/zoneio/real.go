package zoneio

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Real backs a [Provider] with a single regular file, simulating a
// zoned namespace device: the file is divided into NumZones fixed-size
// zones, each with a write pointer that only ResetZone rewinds.
// Writes and copies that do not target the zone's current write
// pointer return an error rather than silently reordering, the same
// sequential-write contract a real ZNS device enforces in hardware.
type Real struct {
	f         *os.File
	blockSize int
	zoneLen   Block
	numZones  int

	mu    sync.Mutex
	zones []zoneState

	jobs      chan job
	wg        sync.WaitGroup
	closed    chan struct{}
	closeOnce sync.Once
}

type zoneState struct {
	wp   Block
	cond ZoneCondition
}

type jobKind int

const (
	jobRead jobKind = iota
	jobWrite
	jobCopy
)

type job struct {
	kind       jobKind
	pba        Block
	data       []byte
	src, dst   Block
	n          Block
	completion *chanCompletion
}

// NewReal creates a Real provider backed by path, truncating or
// creating it to hold numZones zones of zoneLen blocks of blockSize
// bytes each. workers controls the size of the completion worker
// pool; 0 picks a small fixed default.
func NewReal(path string, blockSize int, zoneLen Block, numZones int, workers int) (*Real, error) {
	if blockSize <= 0 || zoneLen == 0 || numZones <= 0 {
		return nil, fmt.Errorf("zoneio: invalid geometry: blockSize=%d zoneLen=%d numZones=%d", blockSize, zoneLen, numZones)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("zoneio: open %s: %w", path, err)
	}

	size := int64(blockSize) * int64(zoneLen) * int64(numZones)
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zoneio: truncate %s to %d bytes: %w", path, size, err)
	}

	zones := make([]zoneState, numZones)
	for i := range zones {
		zones[i] = zoneState{wp: 0, cond: ZoneEmpty}
	}

	if workers <= 0 {
		workers = 4
	}

	r := &Real{
		f:         f,
		blockSize: blockSize,
		zoneLen:   zoneLen,
		numZones:  numZones,
		zones:     zones,
		jobs:      make(chan job, workers*4),
		closed:    make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	return r, nil
}

func (r *Real) worker() {
	defer r.wg.Done()

	for j := range r.jobs {
		switch j.kind {
		case jobRead:
			j.completion.resolve(r.doRead(j.pba, j.data))
		case jobWrite:
			j.completion.resolve(r.doWrite(j.pba, j.data))
		case jobCopy:
			j.completion.resolve(r.doCopy(j.src, j.dst, j.n))
		}
	}
}

func (r *Real) BlockSize() int { return r.blockSize }
func (r *Real) ZoneLen() Block { return r.zoneLen }
func (r *Real) NumZones() int  { return r.numZones }

func (r *Real) zoneOf(pba Block) int {
	return int(pba / r.zoneLen)
}

func (r *Real) submit(j job) Completion {
	j.completion = newCompletion()

	select {
	case r.jobs <- j:
	case <-r.closed:
		j.completion.resolve(fmt.Errorf("zoneio: provider closed"))
	}

	return j.completion
}

func (r *Real) SubmitRead(_ context.Context, pba Block, data []byte) Completion {
	return r.submit(job{kind: jobRead, pba: pba, data: data})
}

func (r *Real) SubmitWrite(_ context.Context, pba Block, data []byte) Completion {
	return r.submit(job{kind: jobWrite, pba: pba, data: data})
}

func (r *Real) SubmitCopy(_ context.Context, src, dst Block, n Block) Completion {
	return r.submit(job{kind: jobCopy, src: src, dst: dst, n: n})
}

func (r *Real) doRead(pba Block, data []byte) error {
	if len(data)%r.blockSize != 0 {
		return fmt.Errorf("zoneio: read length %d is not a multiple of block size %d", len(data), r.blockSize)
	}

	off := int64(pba) * int64(r.blockSize)

	_, err := r.f.ReadAt(data, off)
	if err != nil {
		return fmt.Errorf("zoneio: read at block %d: %w", pba, err)
	}

	return nil
}

func (r *Real) doWrite(pba Block, data []byte) error {
	if len(data)%r.blockSize != 0 {
		return fmt.Errorf("zoneio: write length %d is not a multiple of block size %d", len(data), r.blockSize)
	}

	n := Block(len(data) / r.blockSize)

	if err := r.advanceWP(pba, n); err != nil {
		return err
	}

	off := int64(pba) * int64(r.blockSize)

	if _, err := r.f.WriteAt(data, off); err != nil {
		return fmt.Errorf("zoneio: write at block %d: %w", pba, err)
	}

	return nil
}

func (r *Real) doCopy(src, dst Block, n Block) error {
	if err := r.advanceWP(dst, n); err != nil {
		return err
	}

	buf := make([]byte, int64(n)*int64(r.blockSize))

	if _, err := r.f.ReadAt(buf, int64(src)*int64(r.blockSize)); err != nil {
		return fmt.Errorf("zoneio: copy read at block %d: %w", src, err)
	}

	if _, err := r.f.WriteAt(buf, int64(dst)*int64(r.blockSize)); err != nil {
		return fmt.Errorf("zoneio: copy write at block %d: %w", dst, err)
	}

	return nil
}

// advanceWP validates that pba is the target zone's current write
// pointer and advances it by n blocks, closing the zone if it becomes
// full. This is the device-side half of the sequential-write
// invariant; the translation layer enforces the logical-address half.
func (r *Real) advanceWP(pba Block, n Block) error {
	zi := r.zoneOf(pba)

	r.mu.Lock()
	defer r.mu.Unlock()

	if zi < 0 || zi >= len(r.zones) {
		return fmt.Errorf("zoneio: block %d is outside the device", pba)
	}

	z := &r.zones[zi]

	switch z.cond {
	case ZoneFull, ZoneReadOnly, ZoneOffline:
		return fmt.Errorf("zoneio: zone %d is not writable (condition %s)", zi, z.cond)
	}

	zoneStart := Block(zi) * r.zoneLen
	wantWP := zoneStart + z.wp

	if pba != wantWP {
		return fmt.Errorf("zoneio: out-of-order write to zone %d: wrote block %d, write pointer is at %d", zi, pba, wantWP)
	}

	if z.wp+n > r.zoneLen {
		return fmt.Errorf("zoneio: write of %d blocks at zone %d offset %d overruns zone of length %d", n, zi, z.wp, r.zoneLen)
	}

	z.wp += n
	if z.wp == r.zoneLen {
		z.cond = ZoneFull
	} else {
		z.cond = ZoneImplicitOpen
	}

	return nil
}

func (r *Real) ResetZone(_ context.Context, zoneStart Block) error {
	zi := r.zoneOf(zoneStart)

	r.mu.Lock()
	if zi < 0 || zi >= len(r.zones) || Block(zi)*r.zoneLen != zoneStart {
		r.mu.Unlock()
		return fmt.Errorf("zoneio: %d is not a zone start", zoneStart)
	}

	if r.zones[zi].cond == ZoneOffline {
		r.mu.Unlock()
		return fmt.Errorf("zoneio: zone %d is offline", zi)
	}

	r.zones[zi] = zoneState{wp: 0, cond: ZoneEmpty}
	r.mu.Unlock()

	off := int64(zoneStart) * int64(r.blockSize)
	length := int64(r.zoneLen) * int64(r.blockSize)

	return punchHole(r.f, off, length)
}

func (r *Real) ReportZones(_ context.Context) ([]ZoneDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ZoneDescriptor, len(r.zones))
	for i, z := range r.zones {
		out[i] = ZoneDescriptor{
			Start: Block(i) * r.zoneLen,
			Len:   r.zoneLen,
			WP:    z.wp,
			Cond:  z.cond,
		}
	}

	return out, nil
}

// Close is idempotent: callers that both own a Target wrapping this
// provider and hold their own reference (as tests commonly do) may
// each call Close without coordinating who goes first.
func (r *Real) Close() error {
	var err error

	r.closeOnce.Do(func() {
		close(r.closed)
		close(r.jobs)
		r.wg.Wait()
		err = r.f.Close()
	})

	return err
}

var _ Provider = (*Real)(nil)
