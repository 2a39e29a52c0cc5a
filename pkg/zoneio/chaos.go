package zoneio

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
)

// ErrInjected is returned by a [Chaos]-wrapped operation chosen for
// failure injection.
var ErrInjected = errors.New("zoneio: injected fault")

// ErrDeviceDying is returned by every Submit* and ResetZone call once a [Chaos]
// provider has recorded DyingAfter consecutive failures, simulating a
// device that has stopped accepting commands.
var ErrDeviceDying = errors.New("zoneio: device is dying")

// Chaos wraps a [Provider] and injects faults, grounded on the same
// decorator-over-a-narrow-interface shape as a filesystem fault
// injector: it never reimplements the underlying provider, only
// intercepts calls to it.
type Chaos struct {
	Provider

	// FailRate is the probability, in [0,1], that a Submit* or
	// ResetZone call fails outright instead of reaching the wrapped
	// provider.
	FailRate float64

	// DyingAfter, if non-zero, makes the provider permanently fail
	// every subsequent Submit* and ResetZone call (ReportZones still
	// passes through) once this many consecutive injected
	// failures have occurred.
	DyingAfter int

	rng          *rand.Rand
	consecutive  atomic.Int64
	dying        atomic.Bool
}

// NewChaos wraps p with a fault injector seeded for reproducibility.
func NewChaos(p Provider, seed uint64) *Chaos {
	return &Chaos{Provider: p, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (c *Chaos) shouldFail() bool {
	if c.dying.Load() {
		return true
	}

	if c.FailRate <= 0 {
		return false
	}

	if c.rng.Float64() >= c.FailRate {
		c.consecutive.Store(0)
		return false
	}

	n := c.consecutive.Add(1)
	if c.DyingAfter > 0 && n >= int64(c.DyingAfter) {
		c.dying.Store(true)
	}

	return true
}

func (c *Chaos) injectedErr() error {
	if c.dying.Load() {
		return ErrDeviceDying
	}

	return ErrInjected
}

func (c *Chaos) failedCompletion() Completion {
	comp := newCompletion()
	comp.resolve(c.injectedErr())

	return comp
}

func (c *Chaos) SubmitRead(ctx context.Context, pba Block, data []byte) Completion {
	if c.shouldFail() {
		return c.failedCompletion()
	}

	return c.Provider.SubmitRead(ctx, pba, data)
}

func (c *Chaos) SubmitWrite(ctx context.Context, pba Block, data []byte) Completion {
	if c.shouldFail() {
		return c.failedCompletion()
	}

	return c.Provider.SubmitWrite(ctx, pba, data)
}

func (c *Chaos) SubmitCopy(ctx context.Context, src, dst Block, n Block) Completion {
	if c.shouldFail() {
		return c.failedCompletion()
	}

	return c.Provider.SubmitCopy(ctx, src, dst, n)
}

func (c *Chaos) ResetZone(ctx context.Context, zoneStart Block) error {
	if c.shouldFail() {
		return c.injectedErr()
	}

	return c.Provider.ResetZone(ctx, zoneStart)
}

var _ Provider = (*Chaos)(nil)
