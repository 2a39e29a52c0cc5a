// Package ftl implements a log-structured translation layer for
// host-managed zoned block devices: it maps logical block addresses
// onto physical blocks written sequentially within zones, tracks
// which physical blocks are still live, and reclaims full zones in
// the background using one of eight pluggable victim-selection
// policies.
package ftl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zoneftl/zoneftl/pkg/ftl/policy"
	"github.com/zoneftl/zoneftl/pkg/zoneio"
)

const unmapped = ^uint64(0) // l2d sentinel: logical block has never been written
const invalidPBA = ^uint64(0) // d2l sentinel: physical block holds no live logical block

// Target is a configured translation layer bound to one [zoneio.Provider].
// All exported methods are safe for concurrent use.
type Target struct {
	cfg      Config
	provider zoneio.Provider
	logger   *slog.Logger

	mu     sync.Mutex // map_lock: guards everything below
	zones  []zone
	l2d    []uint64 // logical block -> physical block, or unmapped
	d2l    []uint64 // physical block -> logical block, or invalidPBA
	wrTick []uint64 // physical block -> tick of its last write, for cps accounting

	policy      policy.Policy
	generation  uint64 // bumped odd->even around every mutating map op
	currentTick uint64 // logical write counter, advances once per user or GC block write

	activeZone  int // index into zones currently accepting writes, -1 if none open
	freeZones   int // count of zones in condEmpty
	opZones     int // zones reserved as overprovisioning headroom, excluded from the user-zone counters

	userWritten uint64
	gcWritten   uint64

	writeSem chan struct{} // binary semaphore: single outstanding write, user or GC

	reclaimCancel context.CancelFunc
	reclaimDone   chan struct{}

	fatal       chan error
	closed      bool
	deviceDying bool // set once the provider reports it has stopped accepting commands
}

// New validates cfg against provider's geometry and constructs a
// Target ready to serve Read/Write; Resume starts the background
// reclaim loop.
func New(cfg Config, provider zoneio.Provider) (*Target, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider must not be nil: %w", ErrInvalidConfig)
	}

	if err := cfg.validate(provider, uint32(provider.ZoneLen())); err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	totalBlocks := uint64(cfg.ZoneBlocks) * uint64(cfg.NumZones)
	logicalCapacity := uint64(float64(totalBlocks) * (1 - cfg.OverprovisioningRate))

	// Mirrors dmzap_calc_p_free_zone's split of free zones into
	// overprovisioning headroom and user-addressable space: the same
	// OverprovisioningRate that shrinks logical capacity below raw
	// device capacity also reserves this many zones that never count
	// toward free_user_zones, whether or not they're currently empty.
	opZones := int(float64(cfg.NumZones) * cfg.OverprovisioningRate)

	zones := make([]zone, cfg.NumZones)
	for i := range zones {
		zones[i] = zone{start: zoneio.Block(i) * zoneio.Block(cfg.ZoneBlocks), len: zoneio.Block(cfg.ZoneBlocks), cond: condEmpty}
	}

	l2d := make([]uint64, logicalCapacity)
	for i := range l2d {
		l2d[i] = unmapped
	}

	d2l := make([]uint64, totalBlocks)
	for i := range d2l {
		d2l[i] = invalidPBA
	}

	t := &Target{
		cfg:         cfg,
		provider:    provider,
		logger:      cfg.Logger,
		zones:       zones,
		l2d:         l2d,
		d2l:         d2l,
		wrTick:      make([]uint64, totalBlocks),
		activeZone:  -1,
		freeZones:   cfg.NumZones,
		opZones:     opZones,
		writeSem:    make(chan struct{}, 1),
		fatal:       make(chan error, 1),
	}

	pol, err := policy.New(cfg.Policy, (*zoneStatsView)(t), cfg.NumZones, policy.Options{
		ClassZeroCap:     cfg.ClassZeroCap,
		ClassZeroOptimal: cfg.ClassZeroOptimal,
		ApproxQueueCap:   cfg.ApproxQueueCap,
	})
	if err != nil {
		return nil, err
	}

	t.policy = pol

	return t, nil
}

// zoneStatsView adapts *Target to policy.ZoneStats. Defined as a
// distinct named type so Target itself doesn't expose these as public
// methods.
type zoneStatsView Target

func (v *zoneStatsView) InvalidCount(z policy.ZoneID) uint32 {
	return v.zones[z].invalidCount
}

func (v *zoneStatsView) ValidCount(z policy.ZoneID) uint32 {
	return v.zones[z].validCount()
}

func (v *zoneStatsView) Age(z policy.ZoneID) uint64 {
	zn := &v.zones[z]
	if zn.cond != condFull {
		return 0
	}

	return v.currentTick - zn.fullAt
}

func (v *zoneStatsView) ZoneLen() uint32 {
	return v.cfg.ZoneBlocks
}

func (v *zoneStatsView) Now() uint64 {
	return v.currentTick
}

// LogicalCapacity returns the number of addressable logical blocks.
func (t *Target) LogicalCapacity() uint64 {
	return uint64(len(t.l2d))
}

// BlockSize returns the configured block size in bytes.
func (t *Target) BlockSize() int {
	return t.cfg.BlockSize
}

// ReclaimLowWatermark returns the configured free-zone fraction below
// which the background reclaim loop wakes up.
func (t *Target) ReclaimLowWatermark() float64 {
	return t.cfg.ReclaimLowWatermark
}

// Generation returns a counter bumped odd-then-even around every
// mutating map operation. It exists purely so tests can assert a
// concurrent reader never observed a torn update, the way the
// generation counter in a seqlock does; correctness never depends on
// a reader consulting it; map_lock alone is enough for correctness.
func (t *Target) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.generation
}

// Fatal returns a channel that receives at most one error if the
// write path or reclaim loop hits an unrecoverable failure. Callers
// embedding a Target decide how to escalate; the library never calls
// panic or os.Exit on I/O failure.
func (t *Target) Fatal() <-chan error {
	return t.fatal
}

func (t *Target) reportFatal(err error) {
	select {
	case t.fatal <- err:
	default:
	}
}

// Close suspends reclaim (if running) and releases the provider.
func (t *Target) Close() error {
	t.Suspend()

	t.mu.Lock()
	already := t.closed
	t.closed = true
	t.mu.Unlock()

	if already {
		return nil
	}

	return t.provider.Close()
}

func zoneOf(cfg Config, pba zoneio.Block) int {
	return int(uint64(pba) / uint64(cfg.ZoneBlocks))
}
