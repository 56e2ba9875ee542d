package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/l1ne-systems/l1ne/internal/clock"
	"github.com/l1ne-systems/l1ne/internal/wal"
)

func newTestSimulator() *Simulator {
	return New(clock.NewSimulated(time.UnixMicro(0)))
}

func mustEntry(t *testing.T, e wal.Entry, err error) wal.Entry {
	t.Helper()
	require.NoError(t, err)
	return e
}

func TestSimulator_ReplaySimpleEvents(t *testing.T) {
	sim := newTestSimulator()
	require.NoError(t, sim.Registry().Register(1, 8080))

	start := mustEntry(t, wal.CreateServiceStartEntry(1000, 1, 8080))
	accept := mustEntry(t, wal.CreateProxyAcceptEntry(1100, 5, 1, 55000))
	closeEv := mustEntry(t, wal.CreateProxyCloseEntry(1200, 5, 1024, 2048))
	stop := mustEntry(t, wal.CreateServiceStopEntry(1300, 1, 0))

	for _, e := range []wal.Entry{start, accept, closeEv, stop} {
		require.NoError(t, sim.LoadEvent(e))
	}

	for sim.HasNext() {
		require.NoError(t, sim.ReplayNext())
	}

	state := sim.State()
	require.Equal(t, uint64(1), state.ServicesStarted)
	require.Equal(t, uint64(1), state.ServicesStopped)
	require.Equal(t, uint64(1), state.ConnectionsOpened)
	require.Equal(t, uint64(1), state.ConnectionsClosed)
	require.Equal(t, uint64(1024), state.BytesSentTotal)
	require.Equal(t, uint64(2048), state.BytesReceivedTotal)
	require.Equal(t, uint64(0), state.ActiveServices())
	require.Equal(t, uint64(0), state.ActiveConnections())
	require.False(t, sim.Registry().IsRunning(1))
}

func TestSimulator_TransactionCommitAppliesAtomically(t *testing.T) {
	sim := newTestSimulator()

	begin := mustEntry(t, wal.CreateTxBeginEntry(1000, 7, 2))
	s1 := mustEntry(t, wal.CreateServiceStartEntry(1001, 1, 8080))
	s2 := mustEntry(t, wal.CreateServiceStartEntry(1002, 2, 8081))
	commit := mustEntry(t, wal.CreateTxCommitEntry(1003, 7, 2))

	for _, e := range []wal.Entry{begin, s1, s2, commit} {
		require.NoError(t, sim.LoadEvent(e))
	}

	require.NoError(t, sim.ReplayNext()) // begin
	require.True(t, sim.InTransaction())
	require.Equal(t, uint64(0), sim.State().ServicesStarted)

	require.NoError(t, sim.ReplayNext()) // buffered s1
	require.Equal(t, 1, sim.PendingCount())
	require.Equal(t, uint64(0), sim.State().ServicesStarted)

	require.NoError(t, sim.ReplayNext()) // buffered s2
	require.Equal(t, 2, sim.PendingCount())

	require.NoError(t, sim.ReplayNext()) // commit
	require.False(t, sim.InTransaction())
	require.Equal(t, uint64(2), sim.State().ServicesStarted)
}

func TestSimulator_TransactionAbortDiscardsBuffer(t *testing.T) {
	sim := newTestSimulator()

	begin := mustEntry(t, wal.CreateTxBeginEntry(1000, 9, 1))
	s1 := mustEntry(t, wal.CreateServiceStartEntry(1001, 1, 8080))
	abort := mustEntry(t, wal.CreateTxAbortEntry(1002, 9, 1))

	for _, e := range []wal.Entry{begin, s1, abort} {
		require.NoError(t, sim.LoadEvent(e))
	}
	for sim.HasNext() {
		require.NoError(t, sim.ReplayNext())
	}

	require.Equal(t, uint64(0), sim.State().ServicesStarted)
	require.False(t, sim.InTransaction())
}

func TestSimulator_NestedTransactionPanics(t *testing.T) {
	sim := newTestSimulator()
	begin1 := mustEntry(t, wal.CreateTxBeginEntry(1000, 1, 1))
	begin2 := mustEntry(t, wal.CreateTxBeginEntry(1001, 2, 1))
	require.NoError(t, sim.LoadEvent(begin1))
	require.NoError(t, sim.LoadEvent(begin2))

	require.NoError(t, sim.ReplayNext())
	require.Panics(t, func() {
		_ = sim.ReplayNext()
	})
}

func TestSimulator_CommitMismatchedTxIDErrors(t *testing.T) {
	sim := newTestSimulator()
	begin := mustEntry(t, wal.CreateTxBeginEntry(1000, 1, 0))
	commit := mustEntry(t, wal.CreateTxCommitEntry(1001, 2, 0))
	require.NoError(t, sim.LoadEvent(begin))
	require.NoError(t, sim.LoadEvent(commit))

	require.NoError(t, sim.ReplayNext())
	require.ErrorIs(t, sim.ReplayNext(), ErrTransactionIDMismatch)
}

func TestSimulator_LoadEventOverflow(t *testing.T) {
	sim := newTestSimulator()
	e := mustEntry(t, wal.CreateServiceStartEntry(1000, 1, 8080))
	for i := 0; i < maxEvents; i++ {
		require.NoError(t, sim.LoadEvent(e))
	}
	require.ErrorIs(t, sim.LoadEvent(e), ErrOverflow)
}

func TestSimulator_Reset(t *testing.T) {
	sim := newTestSimulator()
	e := mustEntry(t, wal.CreateServiceStartEntry(1000, 1, 8080))
	require.NoError(t, sim.LoadEvent(e))
	require.NoError(t, sim.ReplayNext())
	require.Equal(t, uint64(1), sim.State().ServicesStarted)

	sim.Reset()
	require.Equal(t, uint64(0), sim.State().ServicesStarted)
	require.True(t, sim.HasNext())
}

func TestSimulator_StrictUnknownServiceRejected(t *testing.T) {
	sim := newTestSimulator()
	sim.StrictUnknownServices = true
	e := mustEntry(t, wal.CreateServiceStartEntry(1000, 99, 8080))
	require.NoError(t, sim.LoadEvent(e))
	require.ErrorIs(t, sim.ReplayNext(), ErrUnknownService)
}
