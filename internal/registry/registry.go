// Package registry implements the ServiceRegistry: a fixed-capacity
// table of service lifecycle records, mutated only through register/
// start/stop and read by linear scan (spec.md §4.4).
package registry

import (
	"errors"

	"github.com/l1ne-systems/l1ne/internal/contract"
)

// MaxServices is the fixed capacity of a ServiceRegistry.
const MaxServices = 64

// State is a service record's lifecycle state.
type State uint8

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "Running"
	}
	return "Stopped"
}

var (
	// ErrServiceAlreadyRegistered is returned by Register when
	// service_id is already present in the table.
	ErrServiceAlreadyRegistered = errors.New("registry: service already registered")
	// ErrRegistryFull is returned by Register when the table already
	// holds MaxServices records.
	ErrRegistryFull = errors.New("registry: full")
	// ErrServiceNotFound is returned by StartService, StopService, and
	// any other id-keyed lookup when no record matches.
	ErrServiceNotFound = errors.New("registry: service not found")
)

// Record is one service's lifecycle entry.
type Record struct {
	ServiceID   uint32
	Port        uint16
	State       State
	StartedAtUS uint64
	StoppedAtUS uint64
}

// ServiceRegistry is a fixed [Record; 64] table plus a count, mutated by
// register/start/stop and read by bounded linear scan. The zero value is
// ready to use.
type ServiceRegistry struct {
	records [MaxServices]Record
	count   int
}

// New returns an empty ServiceRegistry.
func New() *ServiceRegistry {
	return &ServiceRegistry{}
}

// Register adds a new Stopped record for serviceID/port. serviceID must
// be > 0 and port must be in [1024, 65535] (a contract violation
// otherwise — callers are expected to have validated these via
// config.ServiceDescriptor already).
func (r *ServiceRegistry) Register(serviceID uint32, port uint16) error {
	contract.Assert(serviceID > 0, "Register called with service_id 0")
	contract.Assert(port >= 1024, "Register called with port %d below 1024", port)

	if _, idx := r.find(serviceID); idx >= 0 {
		return ErrServiceAlreadyRegistered
	}
	if r.count >= MaxServices {
		return ErrRegistryFull
	}
	r.records[r.count] = Record{ServiceID: serviceID, Port: port, State: Stopped}
	r.count++
	return nil
}

// StartService transitions serviceID to Running, setting StartedAtUS.
func (r *ServiceRegistry) StartService(serviceID uint32, ts uint64) error {
	rec, idx := r.find(serviceID)
	if idx < 0 {
		return ErrServiceNotFound
	}
	rec.State = Running
	rec.StartedAtUS = ts
	r.records[idx] = *rec
	return nil
}

// StopService transitions serviceID to Stopped, setting StoppedAtUS.
func (r *ServiceRegistry) StopService(serviceID uint32, ts uint64) error {
	rec, idx := r.find(serviceID)
	if idx < 0 {
		return ErrServiceNotFound
	}
	rec.State = Stopped
	rec.StoppedAtUS = ts
	r.records[idx] = *rec
	return nil
}

// IsRunning reports whether serviceID is registered and Running. Unknown
// services report false, never an error.
func (r *ServiceRegistry) IsRunning(serviceID uint32) bool {
	rec, idx := r.find(serviceID)
	return idx >= 0 && rec.State == Running
}

// CountRunning scans the table once and returns the number of Running
// records.
func (r *ServiceRegistry) CountRunning() int {
	n := 0
	for i := 0; i < r.count; i++ {
		if r.records[i].State == Running {
			n++
		}
	}
	return n
}

// Count returns the number of registered records.
func (r *ServiceRegistry) Count() int { return r.count }

// Lookup returns a copy of the record for serviceID, or ok=false.
func (r *ServiceRegistry) Lookup(serviceID uint32) (Record, bool) {
	rec, idx := r.find(serviceID)
	if idx < 0 {
		return Record{}, false
	}
	return *rec, true
}

// find performs the bounded O(count) linear scan every lookup funnels
// through, returning a pointer into the backing array and its index (or
// -1 if absent).
func (r *ServiceRegistry) find(serviceID uint32) (*Record, int) {
	for i := 0; i < r.count; i++ {
		if r.records[i].ServiceID == serviceID {
			return &r.records[i], i
		}
	}
	return nil, -1
}
