package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/natefinch/atomic"

	flag "github.com/spf13/pflag"
)

// StatsCmd prints the translation layer's counters as JSON.
func StatsCmd(_ Config) *Command {
	flags := flag.NewFlagSet("stats", flag.ContinueOnError)
	snapshot := flags.String("snapshot", "", "Atomically write the report to `file` in addition to stdout")

	return &Command{
		Flags: flags,
		Usage: "stats <device> [flags]",
		Short: "Print device counters",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one <device> argument, got %d", len(args))
			}

			target, err := openTarget(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = target.Close() }()

			return printJSON(o, *snapshot, target.Stats())
		},
	}
}

// ZonesCmd prints a per-zone status report as JSON.
func ZonesCmd(_ Config) *Command {
	flags := flag.NewFlagSet("zones", flag.ContinueOnError)
	snapshot := flags.String("snapshot", "", "Atomically write the report to `file` in addition to stdout")

	return &Command{
		Flags: flags,
		Usage: "zones <device> [flags]",
		Short: "Print per-zone status",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one <device> argument, got %d", len(args))
			}

			target, err := openTarget(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = target.Close() }()

			return printJSON(o, *snapshot, target.ReportZones())
		},
	}
}

// ReclaimCmd runs reclaim synchronously until the device clears its
// configured high watermark or no victim remains (no background reclaim
// loop runs across separate CLI invocations). The --once flag is
// accepted but does not change this.
func ReclaimCmd(_ Config) *Command {
	flags := flag.NewFlagSet("reclaim", flag.ContinueOnError)
	_ = flags.Bool("once", true, "Accepted for compatibility; has no effect")

	return &Command{
		Flags: flags,
		Usage: "reclaim <device> [flags]",
		Short: "Run reclaim until the high watermark is cleared or no victim remains",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one <device> argument, got %d", len(args))
			}

			target, err := openTarget(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = target.Close() }()

			before := target.Stats()

			if err := target.ReclaimOnce(ctx); err != nil {
				return err
			}

			after := target.Stats()

			o.Printf("free zones: %d -> %d (%.1f%% -> %.1f%%)\n",
				before.FreeZones, after.FreeZones, before.FreeZonePct*100, after.FreeZonePct*100)
			o.Printf("free user zones: %d -> %d (%.1f%% -> %.1f%%)\n",
				before.FreeUserZones, after.FreeUserZones, before.FreeUserZonePct*100, after.FreeUserZonePct*100)

			return nil
		},
	}
}

func printJSON(o *IO, snapshotPath string, v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	o.Printf("%s\n", buf)

	if snapshotPath == "" {
		return nil
	}

	if err := atomic.WriteFile(snapshotPath, bytes.NewReader(append(buf, '\n'))); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", snapshotPath, err)
	}

	return nil
}
