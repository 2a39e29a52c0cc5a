// Package policy implements the eight victim-selection policies a
// translation layer can be configured with. Each policy is a tagged
// variant behind the same [Policy] interface rather than eight copies
// of the reclaim loop: the loop calls SelectVictim, OnZoneFull, and
// OnInvalidate without knowing which concrete policy it is driving.
//
// A policy never sees logical addresses, block payloads, or the
// device itself. It is handed a [ZoneID] and, through [ZoneStats],
// read-only access to the counters it needs to rank zones. Any extra
// bookkeeping a policy needs (a bucket, a heap, a tree) is private to
// that policy's own index, matching the one-index-per-policy shape
// the original reclaim design uses rather than growing the zone
// struct itself with fields only one policy cares about.
package policy

// ZoneID identifies a zone by its index. It carries no information
// about physical layout; callers translate to and from block
// addresses.
type ZoneID int

// ZoneStats is the read-only view of zone state a policy needs to
// rank victims. It is supplied by the translation layer and is safe
// to call only while the layer's map lock is held, mirroring how
// dm-zap's reclaim path only inspects zone counters under its own
// zone lock.
type ZoneStats interface {
	// InvalidCount returns the number of invalid (stale) blocks
	// currently in zone z.
	InvalidCount(z ZoneID) uint32

	// ValidCount returns the number of still-valid blocks in zone z,
	// i.e. the blocks a reclaim of z would need to copy forward.
	ValidCount(z ZoneID) uint32

	// Age returns the number of write-ticks since zone z transitioned
	// to full. Larger is older.
	Age(z ZoneID) uint64

	// ZoneLen returns the number of blocks per zone (constant across
	// zones).
	ZoneLen() uint32

	// Now returns the current write-tick counter, the same clock Age
	// is measured against. Fast-CB uses it to tell whether a Class 1
	// zone's predicted shift_time has arrived.
	Now() uint64
}

// Policy selects which full zone to reclaim next. Implementations are
// not safe for concurrent use; the translation layer serializes all
// calls under its map lock.
type Policy interface {
	// Name identifies the policy, used in logs and stats output.
	Name() string

	// OnZoneFull registers z as reclaim-eligible. Called exactly once
	// per zone, when its write pointer reaches the zone length.
	OnZoneFull(z ZoneID)

	// OnInvalidate notifies the policy that a block in zone z (zoneWide
	// invalid count given by invalidCount, previously written at tick
	// writtenAt) was just invalidated at tick now. Called for every
	// invalidation, even for zones not yet full, since some policies
	// (FeGC, FaGC+) accumulate state from the moment a block is
	// written.
	OnInvalidate(z ZoneID, invalidCount uint32, writtenAt, now uint64)

	// SelectVictim returns the zone the policy currently ranks highest
	// for reclaim, or ok=false if no zone is eligible.
	SelectVictim() (z ZoneID, ok bool)

	// OnVictimReset removes z from the policy's index entirely, after
	// it has been reclaimed and reset to empty. The zone may later be
	// reopened and re-registered via OnZoneFull.
	OnVictimReset(z ZoneID)
}

// Method names a victim-selection policy, matching the enumeration in
// the original reclaim design (DMZAP_GREEDY .. DMZAP_FAGCPLUS).
type Method int

const (
	Greedy Method = iota
	CostBenefit
	FastCostBenefit
	ApproximateCostBenefit
	ConstantGreedy
	ConstantCostBenefit
	FeGC
	FaGCPlus
)

func (m Method) String() string {
	switch m {
	case Greedy:
		return "greedy"
	case CostBenefit:
		return "cost-benefit"
	case FastCostBenefit:
		return "fast-cost-benefit"
	case ApproximateCostBenefit:
		return "approximate-cost-benefit"
	case ConstantGreedy:
		return "constant-greedy"
	case ConstantCostBenefit:
		return "constant-cost-benefit"
	case FeGC:
		return "fegc"
	case FaGCPlus:
		return "fagc-plus"
	default:
		return "unknown"
	}
}

// Options carries construction-time parameters only a subset of
// policies consume; fields irrelevant to the selected Method are
// ignored.
type Options struct {
	// ClassZeroCap and ClassZeroOptimal are Fast-CB's class_0_cap and
	// class_0_optimal. Zero selects a default derived from numZones.
	ClassZeroCap     int
	ClassZeroOptimal int

	// ApproxQueueCap is Approximate-CB's q_cap. Zero selects
	// defaultApproxQueueCap.
	ApproxQueueCap int
}

// New constructs the policy named by m. stats and numZones are passed
// through to whichever constructor the method needs; opts supplies
// the parameters Fast-CB and Approximate-CB need beyond that.
func New(m Method, stats ZoneStats, numZones int, opts Options) (Policy, error) {
	switch m {
	case Greedy:
		return NewGreedy(stats), nil
	case CostBenefit:
		return NewCostBenefit(stats), nil
	case FastCostBenefit:
		return NewFastCostBenefit(stats, numZones, opts.ClassZeroCap, opts.ClassZeroOptimal), nil
	case ApproximateCostBenefit:
		cap := opts.ApproxQueueCap
		if cap <= 0 {
			cap = defaultApproxQueueCap
		}

		return NewApproximateCostBenefit(stats, cap), nil
	case ConstantGreedy:
		return NewConstantGreedy(stats, numZones), nil
	case ConstantCostBenefit:
		return NewConstantCostBenefit(stats, numZones), nil
	case FeGC:
		return NewFeGC(stats, numZones), nil
	case FaGCPlus:
		return NewFaGCPlus(stats), nil
	default:
		return nil, errInvalidMethod(m)
	}
}

type errInvalidMethod Method

func (e errInvalidMethod) Error() string {
	return "policy: invalid victim selection method"
}
