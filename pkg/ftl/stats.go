package ftl

// Stats is a point-in-time snapshot of translation layer counters.
type Stats struct {
	NumZones        int
	FreeZones       int
	FreeZonePct     float64
	FreeUserZones   int     // free zones excluding overprovisioning headroom
	FreeUserZonePct float64
	UserWritten     uint64 // blocks written on behalf of user writes
	GCWritten       uint64 // blocks written by the reclaim copy engine
	Policy          string
}

// WriteAmplification is (UserWritten+GCWritten)/UserWritten, or 1 if
// nothing has been written yet.
func (s Stats) WriteAmplification() float64 {
	if s.UserWritten == 0 {
		return 1
	}

	return float64(s.UserWritten+s.GCWritten) / float64(s.UserWritten)
}

// Stats returns a snapshot of the current counters.
func (t *Target) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		NumZones:        len(t.zones),
		FreeZones:       t.freeZones,
		FreeZonePct:     t.freeZonePctLocked(),
		FreeUserZones:   t.freeUserZonesLocked(),
		FreeUserZonePct: t.freeUserZonePctLocked(),
		UserWritten:     t.userWritten,
		GCWritten:       t.gcWritten,
		Policy:          t.policy.Name(),
	}
}

// ResetCounters zeroes the user/GC write counters without affecting
// the mapping or zone state, for measuring write amplification over a
// bounded window.
func (t *Target) ResetCounters() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.userWritten = 0
	t.gcWritten = 0
}

// ZoneReport is one zone's status, supplementing report_zones with
// per-zone fields: sequence (Index), condition, write pointer and
// invalid count, among others. It carries no policy-specific sort key
// (CB value, cps or shift time).
type ZoneReport struct {
	Index        int
	Condition    string
	WritePointer uint64 // blocks written so far within the zone
	ZoneLen      uint64
	InvalidCount uint32
	ValidCount   uint32
	Age          uint64
}

func (c condition) String() string {
	switch c {
	case condEmpty:
		return "EMPTY"
	case condOpen:
		return "IMP_OPEN"
	case condFull:
		return "FULL"
	case condReadOnly:
		return "READONLY"
	case condOffline:
		return "OFFLINE"
	default:
		return "UNKNOWN"
	}
}

// ReportZones returns a status snapshot of every zone.
func (t *Target) ReportZones() []ZoneReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ZoneReport, len(t.zones))

	for i := range t.zones {
		z := &t.zones[i]

		age := uint64(0)
		if z.cond == condFull {
			age = t.currentTick - z.fullAt
		}

		out[i] = ZoneReport{
			Index:        i,
			Condition:    z.cond.String(),
			WritePointer: uint64(z.wp),
			ZoneLen:      uint64(z.len),
			InvalidCount: z.invalidCount,
			ValidCount:   z.validCount(),
			Age:          age,
		}
	}

	return out
}
