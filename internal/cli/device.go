package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/zoneftl/zoneftl/pkg/ftl"
	"github.com/zoneftl/zoneftl/pkg/zoneio"
)

// geometry is the sidecar zapsim writes next to a simulated device's
// backing file. Only geometry is persisted: the mapping table, zone
// write pointers and conditions are in-memory only (see
// pkg/ftl/format.go) and are rebuilt empty every time a device is
// opened, matching a translation layer restarting with no saved map.
type geometry struct {
	BlockSize            int     `json:"blockSize"`
	ZoneBlocks           int     `json:"zoneBlocks"`
	NumZones             int     `json:"numZones"`
	NrConvZones          int     `json:"nrConvZones"`
	OverprovisioningRate float64 `json:"overprovisioningRate"`
	Policy               string  `json:"policy"`
	ClassZeroCap         int     `json:"classZeroCap"`
	ClassZeroOptimal     int     `json:"classZeroOptimal"`
	ApproxQueueCap       int     `json:"approxQueueCap"`
	ReclaimLowWatermark  float64 `json:"reclaimLowWatermark"`
	ReclaimHighWatermark float64 `json:"reclaimHighWatermark"`
	ReclaimIntervalMS    int     `json:"reclaimIntervalMs"`
	WorkerCount          int     `json:"workerCount"`
}

func geometryPath(device string) string {
	return device + ".geometry.json"
}

// createDevice preallocates a sparse backing file sized to hold the
// configured geometry and atomically writes its sidecar, failing if
// either already exists.
func createDevice(device string, cfg Config) error {
	if _, err := os.Stat(device); err == nil {
		return fmt.Errorf("device %s already exists", device)
	}

	size := int64(cfg.BlockSize) * int64(cfg.ZoneBlocks) * int64(cfg.NumZones)

	f, err := os.OpenFile(device, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating device file: %w", err)
	}

	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return fmt.Errorf("sizing device file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing device file: %w", err)
	}

	g := geometry{
		BlockSize:            cfg.BlockSize,
		ZoneBlocks:           cfg.ZoneBlocks,
		NumZones:             cfg.NumZones,
		OverprovisioningRate: cfg.OverprovisioningRate,
		Policy:               cfg.Policy,
		ClassZeroCap:         cfg.ClassZeroCap,
		ClassZeroOptimal:     cfg.ClassZeroOptimal,
		ApproxQueueCap:       cfg.ApproxQueueCap,
		ReclaimLowWatermark:  cfg.ReclaimLowWatermark,
		ReclaimHighWatermark: cfg.ReclaimHighWatermark,
		ReclaimIntervalMS:    cfg.ReclaimIntervalMS,
		WorkerCount:          cfg.WorkerCount,
	}

	return writeGeometry(device, g)
}

// writeGeometry atomically replaces a device's sidecar file so a
// reader never observes a half-written geometry file.
func writeGeometry(device string, g geometry) error {
	buf, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding geometry: %w", err)
	}

	buf = append(buf, '\n')

	if err := atomic.WriteFile(geometryPath(device), bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("writing geometry: %w", err)
	}

	return nil
}

func readGeometry(device string) (geometry, error) {
	raw, err := os.ReadFile(geometryPath(device))
	if err != nil {
		if os.IsNotExist(err) {
			return geometry{}, fmt.Errorf("device %s was not created with 'zapsim create': %w", device, err)
		}

		return geometry{}, fmt.Errorf("reading geometry: %w", err)
	}

	var g geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return geometry{}, fmt.Errorf("decoding geometry: %w", err)
	}

	return g, nil
}

// openTarget opens an existing simulated device, reconstructing a
// fresh Provider and Target from its persisted geometry. The returned
// Target always starts with an empty mapping table: see the geometry
// doc comment above.
func openTarget(device string) (*ftl.Target, error) {
	g, err := readGeometry(device)
	if err != nil {
		return nil, err
	}

	workers := g.WorkerCount
	if workers <= 0 {
		workers = 1
	}

	provider, err := zoneio.NewReal(device, g.BlockSize, zoneio.Block(g.ZoneBlocks), g.NumZones, workers)
	if err != nil {
		return nil, fmt.Errorf("opening device: %w", err)
	}

	cfg := Config{
		BlockSize:            g.BlockSize,
		ZoneBlocks:           g.ZoneBlocks,
		NumZones:             g.NumZones,
		OverprovisioningRate: g.OverprovisioningRate,
		Policy:               g.Policy,
		ClassZeroCap:         g.ClassZeroCap,
		ClassZeroOptimal:     g.ClassZeroOptimal,
		ApproxQueueCap:       g.ApproxQueueCap,
		ReclaimLowWatermark:  g.ReclaimLowWatermark,
		ReclaimHighWatermark: g.ReclaimHighWatermark,
		ReclaimIntervalMS:    g.ReclaimIntervalMS,
	}

	method, err := cfg.PolicyMethod()
	if err != nil {
		_ = provider.Close()
		return nil, err
	}

	target, err := ftl.New(ftl.Config{
		BlockSize:            g.BlockSize,
		ZoneBlocks:           uint32(g.ZoneBlocks),
		NumZones:             g.NumZones,
		NrConvZones:          g.NrConvZones,
		OverprovisioningRate: g.OverprovisioningRate,
		Policy:               method,
		ClassZeroCap:         g.ClassZeroCap,
		ClassZeroOptimal:     g.ClassZeroOptimal,
		ApproxQueueCap:       g.ApproxQueueCap,
		ReclaimLowWatermark:  g.ReclaimLowWatermark,
		ReclaimHighWatermark: g.ReclaimHighWatermark,
		ReclaimInterval:      cfg.ReclaimInterval(),
	}, provider)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("initializing translation layer: %w", err)
	}

	return target, nil
}

// parseBlockPayload turns a command-line data argument into exactly
// one block of bs bytes. "@<repeat-byte>" fills the block with a
// repeated byte (e.g. "@0x2a"); anything else is used verbatim,
// zero-padded or truncated to bs bytes, matching a quick scripting
// need over a full binary-data flag.
func parseBlockPayload(arg string, bs int) []byte {
	block := make([]byte, bs)

	if rest, ok := strings.CutPrefix(arg, "@"); ok {
		var b byte

		_, _ = fmt.Sscanf(rest, "0x%x", &b)

		for i := range block {
			block[i] = b
		}

		return block
	}

	copy(block, arg)

	return block
}
