// Package supervisor implements the deployment pipeline and instance
// state machine for L1NE's workload processes (spec.md §4.6), plus the
// SlotPool-backed bookkeeping the proxy package splices connections
// through.
package supervisor

import "fmt"

// InstanceState is a ServiceInstance's lifecycle state: Starting ->
// Running -> Stopping -> Stopped | Failed. Only Starting->Running and
// Running->Stopping->Stopped are driven by the supervisor's happy path;
// Failed is entered on a supervisor-observed exit with non-zero status.
type InstanceState uint8

const (
	Starting InstanceState = iota
	Running
	Stopping
	Stopped
	Failed
)

func (s InstanceState) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ServiceInstance is one deployed workload process's bookkeeping
// record.
type ServiceInstance struct {
	Name      string
	ServiceID uint32
	ExecPath  string
	Port      uint16
	State     InstanceState
}

// UnitSpec is the information the supervisor hands off to the external
// ProcessSupervisor collaborator per spec.md §4.6 step 3.
type UnitSpec struct {
	Name       string
	Exec       string
	UID        uint32
	GID        uint32
	MemoryMax  uint64
	CPUQuota   uint32
	Env        map[string]string
}

// UnitRuntimeState is the collaborator-reported status of a running
// unit. Active and Activating are accepted as healthy on the readiness
// poll; anything else logs a warning but the instance is still marked
// Running (per spec.md §4.6 step 4's "keeps the instance as running").
type UnitRuntimeState uint8

const (
	UnitUnknown UnitRuntimeState = iota
	UnitActive
	UnitActivating
	UnitInactive
	UnitFailed
)

// ProcessSupervisor is the external collaborator this package delegates
// actual process lifecycle management to (e.g. systemd, a container
// runtime). L1NE's core never forks or execs directly.
type ProcessSupervisor interface {
	StartUnit(spec UnitSpec) error
	UnitStatus(name string) (UnitRuntimeState, error)
	StopUnit(name string) error
}

// Error kinds returned by the deployment pipeline (spec.md §7,
// ConfigurationInvalid).
var (
	ErrBinaryNotFound      = fmt.Errorf("supervisor: binary not found")
	ErrBinaryNotAccessible = fmt.Errorf("supervisor: binary not accessible")
)
