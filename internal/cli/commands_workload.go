package cli

import (
	"context"
	"fmt"
	"math/rand/v2"

	flag "github.com/spf13/pflag"
)

// WorkloadCmd runs a synthetic read/write session against a device
// within a single process, then prints a final report. Because the
// translation layer never persists its mapping table (see
// pkg/ftl/format.go), this is the way to observe write amplification
// and reclaim behavior over more than one operation: 'write'/'read'
// each start from an empty map, but 'workload' keeps one Target alive
// for its whole run.
func WorkloadCmd(_ Config) *Command {
	flags := flag.NewFlagSet("workload", flag.ContinueOnError)
	ops := flags.Int("ops", 1000, "Number of write operations to perform")
	hotSpan := flags.Uint64("hot-span", 0, "Confine writes to the first N logical blocks, 0 for the whole device")
	seed := flags.Uint64("seed", 1, "PRNG seed, for reproducible runs")
	reclaimEvery := flags.Int("reclaim-every", 1, "Check the low watermark every N writes (keep small: zones fill fast relative to a coarse check)")

	return &Command{
		Flags: flags,
		Usage: "workload <device> [flags]",
		Short: "Run a synthetic write workload and report write amplification",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one <device> argument, got %d", len(args))
			}

			target, err := openTarget(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = target.Close() }()

			span := *hotSpan
			if span == 0 || span > target.LogicalCapacity() {
				span = target.LogicalCapacity()
			}

			if span == 0 {
				return fmt.Errorf("device has zero logical capacity")
			}

			rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))

			block := make([]byte, target.BlockSize())

			for i := 0; i < *ops; i++ {
				lba := rng.Uint64N(span)

				for j := range block {
					block[j] = byte(rng.Uint32())
				}

				if err := target.Write(ctx, lba, block); err != nil {
					return fmt.Errorf("write %d (lba %d): %w", i, lba, err)
				}

				if (i+1)%*reclaimEvery == 0 {
					stats := target.Stats()
					if stats.FreeZonePct <= target.ReclaimLowWatermark() {
						if err := target.ReclaimOnce(ctx); err != nil {
							return fmt.Errorf("reclaim after write %d: %w", i, err)
						}
					}
				}
			}

			stats := target.Stats()

			o.Printf("ops:                %d\n", *ops)
			o.Printf("user blocks written:%d\n", stats.UserWritten)
			o.Printf("gc blocks written:  %d\n", stats.GCWritten)
			o.Printf("write amplification:%.3f\n", stats.WriteAmplification())
			o.Printf("free zones:         %d/%d (%.1f%%)\n", stats.FreeZones, stats.NumZones, stats.FreeZonePct*100)
			o.Printf("free user zones:    %d (%.1f%%)\n", stats.FreeUserZones, stats.FreeUserZonePct*100)
			o.Printf("policy:             %s\n", stats.Policy)

			return nil
		},
	}
}
