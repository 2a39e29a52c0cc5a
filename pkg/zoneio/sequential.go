package zoneio

import (
	"context"
	"fmt"
)

// Sequential wraps a [Provider] and fails loudly, via reportf, each
// time a write or copy targets anything but the destination zone's
// current write pointer, or a reset targets a READONLY or OFFLINE
// zone. It exists to let tests assert the sequential-write
// invariant end to end, independent of whether [Real] itself happens
// to enforce it.
type Sequential struct {
	Provider

	reportf func(format string, args ...any)
}

// NewSequential wraps p, calling reportf on every invariant violation
// observed. In tests, pass (*testing.T).Fatalf or (*testing.T).Errorf.
func NewSequential(p Provider, reportf func(format string, args ...any)) *Sequential {
	return &Sequential{Provider: p, reportf: reportf}
}

func (s *Sequential) currentWP(ctx context.Context, pba Block) (Block, error) {
	zones, err := s.Provider.ReportZones(ctx)
	if err != nil {
		return 0, err
	}

	zi := int(pba / s.Provider.ZoneLen())
	if zi < 0 || zi >= len(zones) {
		return 0, fmt.Errorf("zoneio: block %d outside device", pba)
	}

	return zones[zi].Start + zones[zi].WP, nil
}

func (s *Sequential) SubmitWrite(ctx context.Context, pba Block, data []byte) Completion {
	if wp, err := s.currentWP(ctx, pba); err == nil && wp != pba {
		s.reportf("zoneio: sequential violation: write to block %d, write pointer at %d", pba, wp)
	}

	return s.Provider.SubmitWrite(ctx, pba, data)
}

func (s *Sequential) SubmitCopy(ctx context.Context, src, dst Block, n Block) Completion {
	if wp, err := s.currentWP(ctx, dst); err == nil && wp != dst {
		s.reportf("zoneio: sequential violation: copy destination block %d, write pointer at %d", dst, wp)
	}

	return s.Provider.SubmitCopy(ctx, src, dst, n)
}

func (s *Sequential) ResetZone(ctx context.Context, zoneStart Block) error {
	zones, err := s.Provider.ReportZones(ctx)
	if err == nil {
		zi := int(zoneStart / s.Provider.ZoneLen())
		if zi >= 0 && zi < len(zones) {
			cond := zones[zi].Cond
			if cond != ZoneFull && cond != ZoneEmpty && cond != ZoneImplicitOpen && cond != ZoneClosed {
				s.reportf("zoneio: sequential violation: reset of zone %d in condition %s", zi, cond)
			}
		}
	}

	return s.Provider.ResetZone(ctx, zoneStart)
}

var _ Provider = (*Sequential)(nil)
