package zoneio

import (
	"fmt"
	"os"
)

const zeroFillChunk = 1 << 20

func zeroFill(f *os.File, offset, length int64) error {
	buf := make([]byte, zeroFillChunk)

	for length > 0 {
		n := int64(len(buf))
		if n > length {
			n = length
		}

		if _, err := f.WriteAt(buf[:n], offset); err != nil {
			return fmt.Errorf("zoneio: zero-fill at offset %d: %w", offset, err)
		}

		offset += n
		length -= n
	}

	return nil
}
