package ftl

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/zoneftl/zoneftl/pkg/ftl/policy"
)

// Config describes the geometry and policy a [Target] is constructed
// with. Every field is validated eagerly by [New]; invalid
// configuration is rejected rather than silently clamped to a nearby
// valid value.
type Config struct {
	// BlockSize is the device block size in bytes. Must match the
	// provider's BlockSize().
	BlockSize int

	// ZoneBlocks is the number of blocks per zone. Must match the
	// provider's ZoneLen().
	ZoneBlocks uint32

	// NumZones is the total number of zones. Must match the
	// provider's NumZones().
	NumZones int

	// NrConvZones is the number of conventional (non-sequential)
	// zones. Conventional zones are out of scope; this must be 0.
	NrConvZones int

	// OverprovisioningRate reserves a fraction of total capacity,
	// in [0, 1), as headroom reclaim can always draw on. The
	// logical (user-addressable) capacity is
	// floor(totalBlocks * (1 - OverprovisioningRate)).
	OverprovisioningRate float64

	// Policy selects the victim-selection method.
	Policy policy.Method

	// ClassZeroCap and ClassZeroOptimal bound Fast-CB's Class 0
	// population (class_0_cap, class_0_optimal): ClassZeroCap is the
	// hard ceiling before a threshold adjustment is forced, and
	// ClassZeroOptimal is the target size a threshold adjustment
	// redistributes toward. Only consulted when Policy is
	// policy.FastCostBenefit, where both must be positive and
	// ClassZeroCap >= ClassZeroOptimal.
	ClassZeroCap     int
	ClassZeroOptimal int

	// ApproxQueueCap bounds Approximate-CB's candidate queue (q_cap).
	// Only consulted when Policy is policy.ApproximateCostBenefit;
	// zero selects a default.
	ApproxQueueCap int

	// ReclaimLowWatermark triggers reclaim once the fraction of free
	// zones drops at or below this value, in (0, 1).
	ReclaimLowWatermark float64

	// ReclaimHighWatermark stops reclaim once the fraction of free
	// zones rises at or above this value, in (ReclaimLowWatermark, 1].
	ReclaimHighWatermark float64

	// ReclaimInterval is how often the reclaim loop wakes to check
	// shouldReclaim while a Target is resumed.
	ReclaimInterval time.Duration

	// Logger receives structured reclaim and lifecycle events.
	// Defaults to slog.Default() if nil.
	Logger *slog.Logger
}

func (c Config) validate(provider interface {
	BlockSize() int
	NumZones() int
}, providerZoneLen uint32) error {
	if c.BlockSize <= 0 {
		return fmt.Errorf("BlockSize must be positive: %w", ErrInvalidConfig)
	}

	if provider.BlockSize() != c.BlockSize {
		return fmt.Errorf("BlockSize %d does not match provider block size %d: %w", c.BlockSize, provider.BlockSize(), ErrInvalidConfig)
	}

	if c.ZoneBlocks == 0 {
		return fmt.Errorf("ZoneBlocks must be positive: %w", ErrInvalidConfig)
	}

	if providerZoneLen != c.ZoneBlocks {
		return fmt.Errorf("ZoneBlocks %d does not match provider zone length %d: %w", c.ZoneBlocks, providerZoneLen, ErrInvalidConfig)
	}

	if c.NumZones <= 1 {
		return fmt.Errorf("NumZones must be greater than 1: %w", ErrInvalidConfig)
	}

	if provider.NumZones() != c.NumZones {
		return fmt.Errorf("NumZones %d does not match provider zone count %d: %w", c.NumZones, provider.NumZones(), ErrInvalidConfig)
	}

	if c.NrConvZones != 0 {
		return fmt.Errorf("conventional zones are not supported, NrConvZones must be 0, got %d: %w", c.NrConvZones, ErrInvalidConfig)
	}

	if c.OverprovisioningRate < 0 || c.OverprovisioningRate >= 1 {
		return fmt.Errorf("OverprovisioningRate must be in [0, 1), got %f: %w", c.OverprovisioningRate, ErrInvalidConfig)
	}

	if c.ReclaimLowWatermark <= 0 || c.ReclaimLowWatermark >= 1 {
		return fmt.Errorf("ReclaimLowWatermark must be in (0, 1), got %f: %w", c.ReclaimLowWatermark, ErrInvalidConfig)
	}

	if c.ReclaimHighWatermark <= c.ReclaimLowWatermark || c.ReclaimHighWatermark > 1 {
		return fmt.Errorf("ReclaimHighWatermark must be in (ReclaimLowWatermark, 1], got %f: %w", c.ReclaimHighWatermark, ErrInvalidConfig)
	}

	if c.ReclaimInterval <= 0 {
		return fmt.Errorf("ReclaimInterval must be positive: %w", ErrInvalidConfig)
	}

	switch c.Policy {
	case policy.Greedy, policy.CostBenefit, policy.FastCostBenefit, policy.ApproximateCostBenefit,
		policy.ConstantGreedy, policy.ConstantCostBenefit, policy.FeGC, policy.FaGCPlus:
	default:
		return fmt.Errorf("unknown policy %v: %w", c.Policy, ErrInvalidConfig)
	}

	if c.Policy == policy.FastCostBenefit {
		if c.ClassZeroCap <= 0 || c.ClassZeroOptimal <= 0 {
			return fmt.Errorf("ClassZeroCap and ClassZeroOptimal must be positive for the fast-cost-benefit policy: %w", ErrInvalidConfig)
		}

		if c.ClassZeroCap < c.ClassZeroOptimal {
			return fmt.Errorf("ClassZeroCap %d must be >= ClassZeroOptimal %d: %w", c.ClassZeroCap, c.ClassZeroOptimal, ErrInvalidConfig)
		}
	}

	if c.Policy == policy.ApproximateCostBenefit && c.ApproxQueueCap < 0 {
		return fmt.Errorf("ApproxQueueCap must not be negative, got %d: %w", c.ApproxQueueCap, ErrInvalidConfig)
	}

	return nil
}
