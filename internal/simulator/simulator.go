// Package simulator implements the deterministic event replay engine:
// a bounded event log, transactional buffering with atomic commit, and
// an in-memory state model driven exclusively through a Clock (spec.md
// §4.5). The simulation region is single-threaded and cooperative — no
// suspension point exists other than the clock update every ReplayNext
// performs.
package simulator

import (
	"errors"
	"fmt"

	"github.com/l1ne-systems/l1ne/internal/clock"
	"github.com/l1ne-systems/l1ne/internal/contract"
	"github.com/l1ne-systems/l1ne/internal/registry"
	"github.com/l1ne-systems/l1ne/internal/wal"
)

const (
	maxEvents         = 1024
	maxPendingEvents  = 64
)

var (
	// ErrOverflow is returned by LoadEvent once the event log holds
	// maxEvents entries.
	ErrOverflow = errors.New("simulator: event log overflow")
	// ErrTransactionIDMismatch is returned by ReplayNext when a TxCommit
	// or TxAbort names a tx_id other than the currently open one.
	ErrTransactionIDMismatch = errors.New("simulator: transaction id mismatch")
	// ErrTransactionBufferFull is returned when a buffered event would
	// exceed the 64-entry pending table inside an open transaction.
	ErrTransactionBufferFull = errors.New("simulator: transaction buffer full")
	// ErrTransactionTooLarge is returned by ReplayNext when a TxBegin
	// declares an event_count above the 64-entry pending table.
	ErrTransactionTooLarge = errors.New("simulator: transaction too large")
	// ErrNoMoreEvents is returned by ReplayNext when HasNext is false.
	ErrNoMoreEvents = errors.New("simulator: no more events")
	// ErrUnknownService is returned in StrictUnknownServices mode when a
	// ServiceStart/ServiceStop event names a service_id the registry has
	// never seen (see SPEC_FULL.md's strict replay option).
	ErrUnknownService = errors.New("simulator: unknown service_id in strict mode")
)

// Simulator is the deterministic replay engine: a fixed 1024-capacity
// event buffer, a cursor, transaction state, and its own State and
// ServiceRegistry. It borrows a Clock; it owns everything else.
type Simulator struct {
	events      []Event
	current     int
	state       State
	registry    *registry.ServiceRegistry
	clock       *clock.Clock

	inTransaction bool
	currentTxID   uint64
	pending       []Event

	// StrictUnknownServices, when true, makes replay of a ServiceStart
	// or ServiceStop naming an unregistered service_id a returned error
	// instead of the default silent best-effort tolerance (see
	// SPEC_FULL.md's "strict replay mode").
	StrictUnknownServices bool
}

// New constructs an empty Simulator borrowing clk and owning a fresh
// ServiceRegistry.
func New(clk *clock.Clock) *Simulator {
	return &Simulator{
		clock:    clk,
		registry: registry.New(),
		events:   make([]Event, 0, maxEvents),
		pending:  make([]Event, 0, maxPendingEvents),
	}
}

// Registry returns the simulator's owned ServiceRegistry, for callers
// that need to pre-register services before replay begins.
func (s *Simulator) Registry() *registry.ServiceRegistry { return s.registry }

// State returns a copy of the simulator's current counters.
func (s *Simulator) State() State { return s.state }

// InTransaction reports whether an open TxBegin/TxCommit|TxAbort frame
// is currently buffering events.
func (s *Simulator) InTransaction() bool { return s.inTransaction }

// PendingCount returns the number of events buffered in the currently
// open transaction (zero outside a transaction).
func (s *Simulator) PendingCount() int { return len(s.pending) }

// LoadEvent decodes entry and appends it to the event log. Returns
// ErrOverflow once the log holds maxEvents entries.
func (s *Simulator) LoadEvent(entry wal.Entry) error {
	if len(s.events) >= maxEvents {
		return ErrOverflow
	}
	s.events = append(s.events, decodeEvent(entry))
	return nil
}

// HasNext reports whether ReplayNext has more events to process.
func (s *Simulator) HasNext() bool { return s.current < len(s.events) }

// ReplayNext advances the clock to the next event's timestamp and
// applies it, per spec.md §4.5's three-step replay semantics. Contract
// violations (nested TxBegin, transaction buffer invariant breaches)
// panic; data-dependent errors (id mismatch, overflow, oversized
// transaction) are returned.
func (s *Simulator) ReplayNext() error {
	contract.Assert(s.HasNext(), "ReplayNext called with HasNext() == false")

	ev := s.events[s.current]
	s.clock.SetTime(timeFromMicros(ev.TimestampUS))

	switch ev.Kind {
	case wal.TxBegin:
		contract.Assert(!s.inTransaction, "nested transaction begin (tx_id=%d)", ev.Data.TxID)
		if ev.Data.EventCount > maxPendingEvents {
			return fmt.Errorf("%w: TxBegin event_count %d exceeds %d", ErrTransactionTooLarge, ev.Data.EventCount, maxPendingEvents)
		}
		s.inTransaction = true
		s.currentTxID = ev.Data.TxID
		s.pending = s.pending[:0]

	case wal.TxCommit:
		if !s.inTransaction || ev.Data.TxID != s.currentTxID {
			return fmt.Errorf("%w: commit tx_id=%d current=%d in_transaction=%v", ErrTransactionIDMismatch, ev.Data.TxID, s.currentTxID, s.inTransaction)
		}
		if err := s.commitPending(); err != nil {
			return err
		}
		s.clearTransaction()

	case wal.TxAbort:
		if !s.inTransaction || ev.Data.TxID != s.currentTxID {
			return fmt.Errorf("%w: abort tx_id=%d current=%d in_transaction=%v", ErrTransactionIDMismatch, ev.Data.TxID, s.currentTxID, s.inTransaction)
		}
		s.clearTransaction()

	default:
		if err := s.checkStrict(ev); err != nil {
			return err
		}
		if s.inTransaction {
			if len(s.pending) >= maxPendingEvents {
				return ErrTransactionBufferFull
			}
			s.pending = append(s.pending, ev)
		} else {
			s.state.apply(ev, s.registry)
		}
	}

	s.current++
	return nil
}

// commitPending applies every buffered event atomically: no external
// observer sees any of the transaction's counter deltas until all
// buffered events are applied in order. If that invariant cannot be
// honored (it never should be, under the state's own invariants), the
// process fails fast rather than leaving partial state.
func (s *Simulator) commitPending() error {
	next := s.state
	for _, ev := range s.pending {
		next.apply(ev, s.registry)
	}
	contract.Assert(next.ServicesStopped <= next.ServicesStarted, "commit would violate services_stopped <= services_started")
	contract.Assert(next.ConnectionsClosed <= next.ConnectionsOpened, "commit would violate connections_closed <= connections_opened")
	s.state = next
	return nil
}

func (s *Simulator) clearTransaction() {
	s.inTransaction = false
	s.currentTxID = 0
	s.pending = s.pending[:0]
}

func (s *Simulator) checkStrict(ev Event) error {
	if !s.StrictUnknownServices {
		return nil
	}
	switch ev.Kind {
	case wal.ServiceStart, wal.ServiceStop:
		if _, ok := s.registry.Lookup(ev.Data.ServiceID); !ok {
			return fmt.Errorf("%w: service_id=%d", ErrUnknownService, ev.Data.ServiceID)
		}
	}
	return nil
}

// Reset clears current_event, state, registry, and transaction fields,
// preserving the loaded event log.
func (s *Simulator) Reset() {
	s.current = 0
	s.state = State{}
	s.registry = registry.New()
	s.clearTransaction()
}
