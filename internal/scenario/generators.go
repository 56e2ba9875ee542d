package scenario

import (
	"github.com/l1ne-systems/l1ne/internal/prng"
	"github.com/l1ne-systems/l1ne/internal/wal"
)

// baseTimestampUS is the scenario's logical t=0. Timestamps must be > 0
// (spec.md §3's WAL Entry invariant), so every generated event is
// offset from this base rather than from an absolute zero.
const baseTimestampUS uint64 = 1

const (
	usPer100ms uint64 = 100_000
	usPer10ms  uint64 = 10_000
	usPer500us uint64 = 500
	usPer1s    uint64 = 1_000_000
	usPer5s    uint64 = 5_000_000
)

// generateLoadTest emits ProxyAccept/ProxyClose pairs against a
// PRNG-selected service every 100ms + 10ms, from t=start to
// t=start+duration (spec.md §4.9, LoadTest).
func (r *Runner) generateLoadTest() ([]wal.Entry, error) {
	var events []wal.Entry
	serviceCount := len(r.cfg.Services)
	if serviceCount == 0 {
		return events, nil
	}

	t := baseTimestampUS
	end := baseTimestampUS + r.cfg.DurationUS
	var connectionID uint64 = 1

	for t < end {
		idx := prng.NextRange(r.gen, 1, serviceCount) - 1
		svc := r.cfg.Services[idx]

		accept, err := wal.CreateProxyAcceptEntry(t, connectionID, svc.ServiceID, uint16(50000+connectionID%10000))
		if err != nil {
			return nil, err
		}
		events = append(events, accept)
		t += usPer100ms

		closeEntry, err := wal.CreateProxyCloseEntry(t, connectionID, 1024, 512)
		if err != nil {
			return nil, err
		}
		events = append(events, closeEntry)

		connectionID++
		t += usPer10ms
	}
	return events, nil
}

// generateChaosTest consults the fault injector every 100ms; a crash
// draws a ServiceStop{exit_code=-1} followed, 1s later, by a
// ServiceStart on a derived port for the same service (spec.md §4.9,
// ChaosTest).
func (r *Runner) generateChaosTest() ([]wal.Entry, error) {
	var events []wal.Entry
	serviceCount := len(r.cfg.Services)
	if serviceCount == 0 {
		return events, nil
	}

	t := baseTimestampUS
	end := baseTimestampUS + r.cfg.DurationUS

	for t < end {
		if r.inj.ShouldInjectCrash() {
			idx := prng.NextRange(r.gen, 1, serviceCount) - 1
			svc := r.cfg.Services[idx]

			stop, err := wal.CreateServiceStopEntry(t, svc.ServiceID, -1)
			if err != nil {
				return nil, err
			}
			events = append(events, stop)

			restartAt := t + usPer1s
			derivedPort := svc.Port + 1
			start, err := wal.CreateServiceStartEntry(restartAt, svc.ServiceID, derivedPort)
			if err != nil {
				return nil, err
			}
			events = append(events, start)
		}
		t += usPer100ms
	}
	return events, nil
}

// generateTransactionStress emits TxBegin/ServiceStart.../TxCommit|
// TxAbort framed transactions, 500us between events and 10ms between
// transactions, until t=start+duration (spec.md §4.9,
// TransactionStress).
func (r *Runner) generateTransactionStress() ([]wal.Entry, error) {
	var events []wal.Entry
	serviceCount := len(r.cfg.Services)
	if serviceCount == 0 {
		return events, nil
	}

	t := baseTimestampUS
	end := baseTimestampUS + r.cfg.DurationUS
	var txID uint64 = 1

	for t < end {
		eventCount := uint32(prng.NextRange(r.gen, 2, 10))

		begin, err := wal.CreateTxBeginEntry(t, txID, eventCount)
		if err != nil {
			return nil, err
		}
		events = append(events, begin)
		t += usPer500us

		for i := uint32(0); i < eventCount; i++ {
			idx := prng.NextRange(r.gen, 1, serviceCount) - 1
			svc := r.cfg.Services[idx]
			e, err := wal.CreateServiceStartEntry(t, svc.ServiceID, svc.Port)
			if err != nil {
				return nil, err
			}
			events = append(events, e)
			t += usPer500us
		}

		if r.gen.NextBool(0.9) {
			commit, err := wal.CreateTxCommitEntry(t, txID, eventCount)
			if err != nil {
				return nil, err
			}
			events = append(events, commit)
		} else {
			abort, err := wal.CreateTxAbortEntry(t, txID, 1)
			if err != nil {
				return nil, err
			}
			events = append(events, abort)
		}
		t += usPer500us

		txID++
		t += usPer10ms
	}
	return events, nil
}

// generateLifecycleTest emits a ServiceStart then, 5s later, a
// ServiceStop{exit_code=0} for each service, each service offset 1s
// apart from the previous (spec.md §4.9, LifecycleTest).
func (r *Runner) generateLifecycleTest() ([]wal.Entry, error) {
	var events []wal.Entry
	t := baseTimestampUS

	for _, svc := range r.cfg.Services {
		start, err := wal.CreateServiceStartEntry(t, svc.ServiceID, svc.Port)
		if err != nil {
			return nil, err
		}
		events = append(events, start)

		stop, err := wal.CreateServiceStopEntry(t+usPer5s, svc.ServiceID, 0)
		if err != nil {
			return nil, err
		}
		events = append(events, stop)

		t += usPer1s
	}
	return events, nil
}
