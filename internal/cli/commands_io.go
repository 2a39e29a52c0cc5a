package cli

import (
	"context"
	"fmt"
	"strconv"

	flag "github.com/spf13/pflag"
)

// WriteCmd writes one block of data to a logical block address on an
// existing simulated device.
func WriteCmd(_ Config) *Command {
	flags := flag.NewFlagSet("write", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "write <device> <lba> <data>",
		Short: "Write one block to a device",
		Long:  "Writes one block to <device> at logical block <lba>. <data> is used verbatim, zero-padded or truncated to the block size, unless it starts with '@' (e.g. @0x2a) to fill the block with a repeated byte.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("expected <device> <lba> <data>, got %d args", len(args))
			}

			lba, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lba %q: %w", args[1], err)
			}

			target, err := openTarget(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = target.Close() }()

			g, err := readGeometry(args[0])
			if err != nil {
				return err
			}

			block := parseBlockPayload(args[2], g.BlockSize)

			if err := target.Write(ctx, lba, block); err != nil {
				return err
			}

			o.Println("wrote lba", lba)

			return nil
		},
	}
}

// ReadCmd reads n blocks starting at a logical block address and
// prints them, truncated and escaped for terminal display.
func ReadCmd(_ Config) *Command {
	flags := flag.NewFlagSet("read", flag.ContinueOnError)
	n := flags.Uint64("n", 1, "Number of blocks to read")

	return &Command{
		Flags: flags,
		Usage: "read <device> <lba> [flags]",
		Short: "Read one or more blocks from a device",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <device> <lba>, got %d args", len(args))
			}

			lba, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lba %q: %w", args[1], err)
			}

			target, err := openTarget(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = target.Close() }()

			data, err := target.Read(ctx, lba, *n)
			if err != nil {
				return err
			}

			o.Printf("%q\n", data)

			return nil
		},
	}
}

// DiscardCmd marks a logical range as no-longer-needed. The
// translation layer's Discard is currently a bounds-checked no-op; see
// pkg/ftl/io.go.
func DiscardCmd(_ Config) *Command {
	flags := flag.NewFlagSet("discard", flag.ContinueOnError)
	n := flags.Uint64("n", 1, "Number of blocks to discard")

	return &Command{
		Flags: flags,
		Usage: "discard <device> <lba> [flags]",
		Short: "Discard a logical block range",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <device> <lba>, got %d args", len(args))
			}

			lba, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lba %q: %w", args[1], err)
			}

			target, err := openTarget(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = target.Close() }()

			if err := target.Discard(lba, *n); err != nil {
				return err
			}

			o.Println("discarded", *n, "block(s) at", lba)

			return nil
		},
	}
}
