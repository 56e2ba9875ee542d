// Package fault implements the deterministic fault injector: per-kind
// probability draws against the shared PRNG, and a bounded schedule of
// pending faults (spec.md §4.8).
package fault

import (
	"sort"

	"github.com/l1ne-systems/l1ne/internal/config"
	"github.com/l1ne-systems/l1ne/internal/prng"
	"github.com/l1ne-systems/l1ne/internal/substrate"
)

// Kind enumerates the fault categories an Injector can draw and
// schedule.
type Kind uint8

const (
	Crash Kind = iota
	Delay
	ResourceExhaustion
	ConnectionFailure
)

// ScheduledFault is one entry in the bounded pending-fault table.
type ScheduledFault struct {
	Kind          Kind
	ServiceID     uint32
	ScheduledAtUS uint64
}

const maxScheduledFaults = 64

// Injector draws faults against a shared PRNG and a configured
// probability per kind, and tracks hit counters plus a bounded scheduled
// table.
type Injector struct {
	cfg     config.FaultConfig
	gen     *prng.PCG32
	pending *substrate.BoundedArray[ScheduledFault]

	crashes     uint64
	delays      uint64
	exhaustions uint64
	connFails   uint64
}

// New constructs an Injector drawing from gen with the given
// probabilities.
func New(cfg config.FaultConfig, gen *prng.PCG32) *Injector {
	return &Injector{
		cfg:     cfg,
		gen:     gen,
		pending: substrate.NewBoundedArray[ScheduledFault](maxScheduledFaults),
	}
}

// ShouldInjectCrash draws once against CrashProbability, updating the
// crash counter on a hit.
func (i *Injector) ShouldInjectCrash() bool {
	hit := i.gen.NextBool(i.cfg.CrashProbability)
	if hit {
		i.crashes++
	}
	return hit
}

// ShouldInjectDelay draws once against DelayProbability; on a hit it
// also draws a delay in [DelayMinUS, DelayMaxUS] inclusive.
func (i *Injector) ShouldInjectDelay() (hit bool, delayUS uint64) {
	hit = i.gen.NextBool(i.cfg.DelayProbability)
	if hit {
		i.delays++
		delayUS = prng.NextRange(i.gen, i.cfg.DelayMinUS, i.cfg.DelayMaxUS)
	}
	return hit, delayUS
}

// ShouldInjectResourceExhaustion draws once against
// ResourceExhaustionProb, updating its counter on a hit.
func (i *Injector) ShouldInjectResourceExhaustion() bool {
	hit := i.gen.NextBool(i.cfg.ResourceExhaustionProb)
	if hit {
		i.exhaustions++
	}
	return hit
}

// ShouldInjectConnectionFailure draws once against
// ConnectionFailureProb, updating its counter on a hit.
func (i *Injector) ShouldInjectConnectionFailure() bool {
	hit := i.gen.NextBool(i.cfg.ConnectionFailureProb)
	if hit {
		i.connFails++
	}
	return hit
}

// ScheduleFault enqueues a fault into the bounded pending table, sorted
// by insertion order. It returns substrate.ErrOverflow once the table
// holds 64 entries.
func (i *Injector) ScheduleFault(f ScheduledFault) error {
	return i.pending.Push(f)
}

// GetDueFaults copies into buf (which must have length >= 64) every
// pending fault whose ScheduledAtUS is <= timestampUS, and returns the
// count copied. Due faults are left in the table; callers that want them
// removed should follow up with ClearPending.
func (i *Injector) GetDueFaults(timestampUS uint64, buf []ScheduledFault) int {
	n := 0
	for _, f := range i.pending.Slice() {
		if f.ScheduledAtUS <= timestampUS && n < len(buf) {
			buf[n] = f
			n++
		}
	}
	sort.SliceStable(buf[:n], func(a, b int) bool {
		return buf[a].ScheduledAtUS < buf[b].ScheduledAtUS
	})
	return n
}

// ClearPending empties the scheduled-fault table.
func (i *Injector) ClearPending() {
	for {
		if _, ok := i.pending.Pop(); !ok {
			return
		}
	}
}

// Counts returns the running hit counters for every fault kind, in the
// order {crashes, delays, resource exhaustions, connection failures}.
func (i *Injector) Counts() (crashes, delays, exhaustions, connFails uint64) {
	return i.crashes, i.delays, i.exhaustions, i.connFails
}
