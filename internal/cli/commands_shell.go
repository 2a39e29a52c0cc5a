package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	flag "github.com/spf13/pflag"

	"github.com/zoneftl/zoneftl/pkg/ftl"
)

// ShellCmd opens (or creates) a device and drops into an interactive
// REPL holding one live Target for the session, so write/read/stats
// commands see each other's effects without needing a persisted
// mapping table.
func ShellCmd(baseCfg Config) *Command {
	flags := flag.NewFlagSet("shell", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "shell <device>",
		Short: "Open an interactive session against a device",
		Long:  "Opens <device>, creating it with the effective configuration if it does not exist, and starts a REPL that keeps one translation-layer session alive for the duration of the shell.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one <device> argument, got %d", len(args))
			}

			device := args[0]

			if _, err := os.Stat(device); os.IsNotExist(err) {
				if err := createDevice(device, baseCfg); err != nil {
					return err
				}

				o.Println("created", device)
			}

			target, err := openTarget(device)
			if err != nil {
				return err
			}
			defer func() { _ = target.Close() }()

			repl := &shellREPL{target: target, device: device}

			return repl.run()
		},
	}
}

type shellREPL struct {
	target *ftl.Target
	device string
	liner  *liner.State
}

func shellHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".zapsim_history")
}

func (r *shellREPL) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(shellHistoryFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}

	fmt.Printf("zapsim shell - %s (capacity=%d blocks, policy=%s)\n", r.device, r.target.LogicalCapacity(), r.target.Stats().Policy)
	fmt.Println("Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("zapsim> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		fields := strings.Fields(line)
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()

			return nil
		case "help", "?":
			r.printHelp()
		case "write", "w":
			r.cmdWrite(args)
		case "read", "r":
			r.cmdRead(args)
		case "discard":
			r.cmdDiscard(args)
		case "stats":
			r.cmdStats()
		case "zones":
			r.cmdZones()
		case "reclaim":
			r.cmdReclaim()
		default:
			fmt.Printf("unknown command: %s (type 'help')\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *shellREPL) saveHistory() {
	if path := shellHistoryFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = r.liner.WriteHistory(f)
			_ = f.Close()
		}
	}
}

func (r *shellREPL) completer(line string) []string {
	commands := []string{"write", "read", "discard", "stats", "zones", "reclaim", "help", "exit", "quit"}

	var out []string

	for _, c := range commands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}

	return out
}

func (r *shellREPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  write <lba> <data>   Write one block (data: text, or @0x2a to fill)")
	fmt.Println("  read <lba> [n]       Read n blocks, default 1")
	fmt.Println("  discard <lba> [n]    Discard n blocks, default 1")
	fmt.Println("  stats                Show device counters")
	fmt.Println("  zones                Show per-zone status")
	fmt.Println("  reclaim              Run reclaim until the high watermark clears or no victim remains")
	fmt.Println("  exit / quit / q      Exit")
}

func (r *shellREPL) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: write <lba> <data>")

		return
	}

	lba, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("invalid lba: %v\n", err)

		return
	}

	block := parseBlockPayload(args[1], r.target.BlockSize())

	if err := r.target.Write(context.Background(), lba, block); err != nil {
		fmt.Printf("error: %v\n", err)

		return
	}

	fmt.Printf("OK: wrote lba %d\n", lba)
}

func (r *shellREPL) cmdRead(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: read <lba> [n]")

		return
	}

	lba, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("invalid lba: %v\n", err)

		return
	}

	n := uint64(1)

	if len(args) >= 2 {
		n, err = strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fmt.Printf("invalid n: %v\n", err)

			return
		}
	}

	data, err := r.target.Read(context.Background(), lba, n)
	if err != nil {
		fmt.Printf("error: %v\n", err)

		return
	}

	fmt.Printf("%q\n", data)
}

func (r *shellREPL) cmdDiscard(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: discard <lba> [n]")

		return
	}

	lba, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("invalid lba: %v\n", err)

		return
	}

	n := uint64(1)

	if len(args) >= 2 {
		n, err = strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fmt.Printf("invalid n: %v\n", err)

			return
		}
	}

	if err := r.target.Discard(lba, n); err != nil {
		fmt.Printf("error: %v\n", err)

		return
	}

	fmt.Println("OK")
}

func (r *shellREPL) cmdStats() {
	buf, _ := json.MarshalIndent(r.target.Stats(), "", "  ")
	fmt.Println(string(buf))
}

func (r *shellREPL) cmdZones() {
	buf, _ := json.MarshalIndent(r.target.ReportZones(), "", "  ")
	fmt.Println(string(buf))
}

func (r *shellREPL) cmdReclaim() {
	before := r.target.Stats()

	if err := r.target.ReclaimOnce(context.Background()); err != nil {
		fmt.Printf("error: %v\n", err)

		return
	}

	after := r.target.Stats()
	fmt.Printf("free zones: %d -> %d\n", before.FreeZones, after.FreeZones)
	fmt.Printf("free user zones: %d -> %d\n", before.FreeUserZones, after.FreeUserZones)
}
