package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
)

// CreateCmd preallocates a simulated device's backing file and writes
// its geometry sidecar.
func CreateCmd(baseCfg Config) *Command {
	flags := flag.NewFlagSet("create", flag.ContinueOnError)
	blockSize := flags.Int("block-size", baseCfg.BlockSize, "Bytes per logical/physical block")
	zoneBlocks := flags.Int("zone-blocks", baseCfg.ZoneBlocks, "Blocks per zone")
	numZones := flags.Int("zones", baseCfg.NumZones, "Number of zones on the device")
	opRate := flags.Float64("op-rate", baseCfg.OverprovisioningRate, "Overprovisioning rate, 0..1")
	policyName := flags.String("policy", baseCfg.Policy, "Victim selection policy")
	lowWM := flags.Float64("reclaim-low", baseCfg.ReclaimLowWatermark, "Free-zone fraction that triggers reclaim")
	highWM := flags.Float64("reclaim-high", baseCfg.ReclaimHighWatermark, "Free-zone fraction reclaim stops at")
	workers := flags.Int("workers", baseCfg.WorkerCount, "Device I/O worker goroutines")

	return &Command{
		Flags: flags,
		Usage: "create <device> [flags]",
		Short: "Create a new simulated zoned device",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one <device> argument, got %d", len(args))
			}

			cfg := baseCfg
			cfg.BlockSize = *blockSize
			cfg.ZoneBlocks = *zoneBlocks
			cfg.NumZones = *numZones
			cfg.OverprovisioningRate = *opRate
			cfg.Policy = *policyName
			cfg.ReclaimLowWatermark = *lowWM
			cfg.ReclaimHighWatermark = *highWM
			cfg.WorkerCount = *workers

			if _, err := cfg.PolicyMethod(); err != nil {
				return err
			}

			if err := createDevice(args[0], cfg); err != nil {
				return err
			}

			o.Println("created", args[0])

			return nil
		},
	}
}

// PrintConfigCmd prints the effective configuration as plain text, one
// field per line, grounded
// on the teacher's own config-introspection command.
func PrintConfigCmd(baseCfg Config) *Command {
	flags := flag.NewFlagSet("config", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "config",
		Short: "Print the effective configuration",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			o.Printf("block size:            %d\n", baseCfg.BlockSize)
			o.Printf("zone blocks:           %d\n", baseCfg.ZoneBlocks)
			o.Printf("zones:                 %d\n", baseCfg.NumZones)
			o.Printf("overprovisioning rate: %.3f\n", baseCfg.OverprovisioningRate)
			o.Printf("policy:                %s\n", baseCfg.Policy)
			o.Printf("reclaim low watermark: %.3f\n", baseCfg.ReclaimLowWatermark)
			o.Printf("reclaim high watermark:%.3f\n", baseCfg.ReclaimHighWatermark)
			o.Printf("reclaim interval:      %s\n", baseCfg.ReclaimInterval())
			o.Printf("workers:               %d\n", baseCfg.WorkerCount)

			return nil
		},
	}
}
