//go:build linux

package zoneio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// punchHole deallocates [offset, offset+length) in f without changing
// its size, simulating a zone erase. Falls back to zero-filling when
// the filesystem does not support hole punching (e.g. tmpfs on some
// kernels), matching the fallback every other platform uses.
func punchHole(f *os.File, offset, length int64) error {
	err := unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, offset, length)
	if err == nil {
		return nil
	}

	if err == unix.EOPNOTSUPP {
		return zeroFill(f, offset, length)
	}

	return fmt.Errorf("zoneio: fallocate punch-hole at offset %d len %d: %w", offset, length, err)
}
