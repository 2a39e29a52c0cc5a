package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"

	"github.com/zoneftl/zoneftl/pkg/ftl/policy"
)

// Config is the geometry and policy zapsim uses when it creates a new
// simulated device; commands that open an existing device take their
// settings from its sidecar instead. It is loaded from a
// JSONC file (comments and trailing commas allowed) so example configs
// in the repo can document their own fields inline.
type Config struct {
	BlockSize            int           `json:"blockSize"`
	ZoneBlocks           int           `json:"zoneBlocks"`
	NumZones             int           `json:"numZones"`
	OverprovisioningRate float64       `json:"overprovisioningRate"`
	Policy               string        `json:"policy"`
	ClassZeroCap         int           `json:"classZeroCap"`
	ClassZeroOptimal     int           `json:"classZeroOptimal"`
	ApproxQueueCap       int           `json:"approxQueueCap"`
	ReclaimLowWatermark  float64       `json:"reclaimLowWatermark"`
	ReclaimHighWatermark float64       `json:"reclaimHighWatermark"`
	ReclaimIntervalMS    int           `json:"reclaimIntervalMs"`
	WorkerCount          int           `json:"workerCount"`
}

func defaultConfig() Config {
	return Config{
		BlockSize:            4096,
		ZoneBlocks:           1024,
		NumZones:             64,
		OverprovisioningRate: 0.2,
		Policy:               "cost-benefit",
		ClassZeroCap:         8,
		ClassZeroOptimal:     4,
		ReclaimLowWatermark:  0.1,
		ReclaimHighWatermark: 0.3,
		ReclaimIntervalMS:    1000,
		WorkerCount:          4,
	}
}

// ReclaimInterval returns the configured reclaim tick interval.
func (c Config) ReclaimInterval() time.Duration {
	return time.Duration(c.ReclaimIntervalMS) * time.Millisecond
}

// PolicyMethod resolves the configured policy name to a policy.Method.
func (c Config) PolicyMethod() (policy.Method, error) {
	switch c.Policy {
	case "greedy":
		return policy.Greedy, nil
	case "cost-benefit":
		return policy.CostBenefit, nil
	case "fast-cost-benefit":
		return policy.FastCostBenefit, nil
	case "approximate-cost-benefit":
		return policy.ApproximateCostBenefit, nil
	case "constant-greedy":
		return policy.ConstantGreedy, nil
	case "constant-cost-benefit":
		return policy.ConstantCostBenefit, nil
	case "fegc":
		return policy.FeGC, nil
	case "fagc-plus":
		return policy.FaGCPlus, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", c.Policy)
	}
}

// LoadConfigInput mirrors the global flags that influence config
// resolution.
type LoadConfigInput struct {
	ConfigPath string
	Env        map[string]string
}

// LoadConfig resolves the effective Config: defaults, overridden by the
// ZAPSIM_CONFIG environment variable, overridden by an explicit
// --config flag. A config file that does not exist is only an error
// when it was named explicitly; the ZAPSIM_CONFIG fallback is silently
// skipped so a bare `zapsim` works with no setup.
func LoadConfig(in LoadConfigInput) (Config, error) {
	cfg := defaultConfig()

	path := in.ConfigPath
	explicit := path != ""

	if path == "" {
		path = in.Env["ZAPSIM_CONFIG"]
	}

	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}

		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := json.Unmarshal(std, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config %s: %w", path, err)
	}

	if _, err := cfg.PolicyMethod(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// absPath resolves p against dir if p is relative, matching how the
// original ticket CLI resolved paths against --cwd.
func absPath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(dir, p)
}
