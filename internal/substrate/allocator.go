package substrate

import "sync/atomic"

// AllocatorState is the one-way lifecycle of a StaticAllocator.
type AllocatorState int32

const (
	// StateInit is the allocator's initial state, during which the
	// application is still building up its fixed-size pools.
	StateInit AllocatorState = iota
	// StateStatic indicates the application has asserted that all
	// required memory has been reserved; this is a contract to the rest
	// of the system, not an allocator-enforced mutation (see spec.md §3).
	StateStatic
)

// StaticAllocator wraps a running byte-allocation counter and a one-way
// Init -> Static state transition. The transition does not itself refuse
// further allocations; it is downstream components' contract to stop
// allocating, verified by test, not enforced here.
type StaticAllocator struct {
	state          atomic.Int32
	totalAllocated atomic.Uint64
}

// NewStaticAllocator returns an allocator in StateInit.
func NewStaticAllocator() *StaticAllocator {
	return &StaticAllocator{}
}

// Allocate records n bytes of allocation and returns n. Permitted in both
// states, per spec.md §4.1.
func (a *StaticAllocator) Allocate(n uint64) uint64 {
	a.totalAllocated.Add(n)
	return n
}

// TransitionToStatic moves the allocator to StateStatic. One-way; calling
// it again is a no-op (idempotent from the caller's perspective).
func (a *StaticAllocator) TransitionToStatic() {
	a.state.Store(int32(StateStatic))
}

// GetState returns the current lifecycle state.
func (a *StaticAllocator) GetState() AllocatorState {
	return AllocatorState(a.state.Load())
}

// IsStatic reports whether TransitionToStatic has been called.
func (a *StaticAllocator) IsStatic() bool {
	return a.GetState() == StateStatic
}

// GetTotalAllocated returns the running byte total.
func (a *StaticAllocator) GetTotalAllocated() uint64 {
	return a.totalAllocated.Load()
}
