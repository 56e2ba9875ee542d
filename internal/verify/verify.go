// Package verify implements the Verifier: a bounded log of detected
// invariant violations plus the defense-in-depth checks offered against
// a running Simulator (spec.md §4.10).
package verify

import (
	"fmt"

	"github.com/l1ne-systems/l1ne/internal/simulator"
	"github.com/l1ne-systems/l1ne/internal/substrate"
)

// ViolationType enumerates the kinds of violation a check can record.
type ViolationType uint8

const (
	ServiceCountMismatch ViolationType = iota + 1
	TransactionIncomplete
)

func (t ViolationType) String() string {
	switch t {
	case ServiceCountMismatch:
		return "ServiceCountMismatch"
	case TransactionIncomplete:
		return "TransactionIncomplete"
	default:
		return "Unknown"
	}
}

const maxMessageLen = 128
const maxViolations = 64

// Violation is one recorded invariant breach.
type Violation struct {
	Type        ViolationType
	TimestampUS uint64
	Message     string // truncated to maxMessageLen
}

// Verifier accumulates Violations in a bounded (<=64) log. Violations
// beyond the cap are silently dropped, matching spec.md §4.10's
// documented behavior.
type Verifier struct {
	log *substrate.BoundedArray[Violation]
}

// New returns an empty Verifier.
func New() *Verifier {
	return &Verifier{log: substrate.NewBoundedArray[Violation](maxViolations)}
}

// RecordViolation appends v to the log, truncating its message to
// maxMessageLen. Once the log is full, further violations are silently
// dropped.
func (v *Verifier) RecordViolation(violation Violation) {
	if len(violation.Message) > maxMessageLen {
		violation.Message = violation.Message[:maxMessageLen]
	}
	_ = v.log.Push(violation) // overflow is documented, silent behavior
}

// Violations returns a read-only view of the recorded log.
func (v *Verifier) Violations() []Violation { return v.log.Slice() }

// CheckServiceCount records a ServiceCountMismatch violation if
// servicesStopped ever exceeds servicesStarted. Under the simulator's
// own invariants this should be impossible; the check exists as a
// defense-in-depth probe, per spec.md §4.10.
func (v *Verifier) CheckServiceCount(sim *simulator.Simulator, timestampUS uint64) {
	st := sim.State()
	if st.ServicesStopped > st.ServicesStarted {
		v.RecordViolation(Violation{
			Type:        ServiceCountMismatch,
			TimestampUS: timestampUS,
			Message:     fmt.Sprintf("services_stopped=%d > services_started=%d", st.ServicesStopped, st.ServicesStarted),
		})
	}
}

// CheckTransactionState records a TransactionIncomplete violation if the
// simulator is mid-transaction with a non-empty pending buffer.
func (v *Verifier) CheckTransactionState(sim *simulator.Simulator, timestampUS uint64) {
	if sim.InTransaction() && sim.PendingCount() > 0 {
		v.RecordViolation(Violation{
			Type:        TransactionIncomplete,
			TimestampUS: timestampUS,
			Message:     fmt.Sprintf("in_transaction with pending_count=%d", sim.PendingCount()),
		})
	}
}
