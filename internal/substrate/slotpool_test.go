package substrate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type slotItem struct {
	value int
}

func TestSlotPool_AcquireReleaseReuse(t *testing.T) {
	pool := NewSlotPool[slotItem](4)

	var acquired []*slotItem
	for i := 0; i < 4; i++ {
		item, ok := pool.Acquire()
		require.True(t, ok)
		item.value = i
		acquired = append(acquired, item)
	}

	// pool full: fifth acquire fails
	_, ok := pool.Acquire()
	require.False(t, ok)
	require.True(t, pool.IsFull())

	// release one, re-acquire succeeds and may reuse the freed index
	freedIndex := pool.Index(acquired[1])
	pool.Release(acquired[1])
	require.False(t, pool.IsFull())

	reacquired, ok := pool.Acquire()
	require.True(t, ok)
	require.Equal(t, freedIndex, pool.Index(reacquired))
}

func TestSlotPool_InvariantsHoldAcrossOperations(t *testing.T) {
	pool := NewSlotPool[slotItem](8)
	var held []*slotItem

	for i := 0; i < 6; i++ {
		item, ok := pool.Acquire()
		require.True(t, ok)
		held = append(held, item)
	}

	require.LessOrEqual(t, pool.BusyCount(), pool.ActiveCapacity())
	require.LessOrEqual(t, pool.ActiveCapacity(), pool.CapacityTotal())
	require.Equal(t, pool.ActiveCapacity(), pool.BusyCount()+pool.FreeCount())

	for _, item := range held {
		require.Less(t, pool.Index(item), pool.ActiveCapacity())
	}
}

func TestSlotPool_ReleaseNonBusyPanics(t *testing.T) {
	pool := NewSlotPool[slotItem](2)
	item, ok := pool.Acquire()
	require.True(t, ok)

	pool.Release(item)

	require.Panics(t, func() {
		pool.Release(item)
	})
}

func TestSlotPool_ConfigureActiveSlots(t *testing.T) {
	pool := NewSlotPool[slotItem](8)
	for i := 0; i < 3; i++ {
		_, ok := pool.Acquire()
		require.True(t, ok)
	}

	require.Error(t, pool.ConfigureActiveSlots(2)) // below busy count
	require.NoError(t, pool.ConfigureActiveSlots(4))
	require.Equal(t, 4, pool.ActiveCapacity())
}

func TestBoundedArray_PushPopOverflow(t *testing.T) {
	arr := NewBoundedArray[int](3)
	require.NoError(t, arr.Push(1))
	require.NoError(t, arr.Push(2))
	require.NoError(t, arr.Push(3))
	require.ErrorIs(t, arr.Push(4), ErrOverflow)

	v, ok := arr.Pop()
	require.True(t, ok)
	require.Equal(t, 3, v)
	require.Equal(t, 2, arr.Len())

	require.NoError(t, arr.Push(4))
	require.Equal(t, 3, arr.Len())
}

func TestBoundedArray_PopEmpty(t *testing.T) {
	arr := NewBoundedArray[int](2)
	_, ok := arr.Pop()
	require.False(t, ok)
}

func TestStaticAllocator_TransitionOneWay(t *testing.T) {
	a := NewStaticAllocator()
	require.Equal(t, StateInit, a.GetState())
	require.False(t, a.IsStatic())

	a.Allocate(128)
	require.Equal(t, uint64(128), a.GetTotalAllocated())

	a.TransitionToStatic()
	require.True(t, a.IsStatic())

	// idempotent
	a.TransitionToStatic()
	require.True(t, a.IsStatic())

	// allocation is still permitted in the Static abstraction (a contract
	// assertion to the system, not an allocator-refused mutation).
	a.Allocate(64)
	require.Equal(t, uint64(192), a.GetTotalAllocated())
}
