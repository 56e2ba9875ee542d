package simulator

import "github.com/l1ne-systems/l1ne/internal/wal"

// State holds the simulator's monotonically non-decreasing counters.
// ActiveServices and ActiveConnections are derived, not stored.
type State struct {
	ServicesStarted     uint64
	ServicesStopped     uint64
	ConnectionsOpened   uint64
	ConnectionsClosed   uint64
	BytesSentTotal      uint64
	BytesReceivedTotal  uint64
}

// ActiveServices returns ServicesStarted - ServicesStopped.
func (s State) ActiveServices() uint64 { return s.ServicesStarted - s.ServicesStopped }

// ActiveConnections returns ConnectionsOpened - ConnectionsClosed.
func (s State) ActiveConnections() uint64 { return s.ConnectionsOpened - s.ConnectionsClosed }

// apply folds one non-transactional event's effect into s, per spec.md
// §4.5's apply_event. registry updates are best-effort: an unregistered
// service_id is ignored, not an error (the registry only tracks
// explicitly registered services).
func (s *State) apply(ev Event, reg serviceRegistry) {
	switch ev.Kind {
	case wal.ServiceStart:
		s.ServicesStarted++
		_ = reg.StartService(ev.Data.ServiceID, ev.TimestampUS)
	case wal.ServiceStop:
		s.ServicesStopped++
		_ = reg.StopService(ev.Data.ServiceID, ev.TimestampUS)
	case wal.ProxyAccept:
		s.ConnectionsOpened++
	case wal.ProxyClose:
		s.ConnectionsClosed++
		s.BytesSentTotal += ev.Data.BytesSent
		s.BytesReceivedTotal += ev.Data.BytesReceived
	case wal.ConfigReload, wal.Checkpoint:
		// no counter effect
	}
}

// serviceRegistry is the narrow collaborator interface the simulator
// needs from registry.ServiceRegistry, kept local to avoid an import
// cycle and to document exactly what apply touches.
type serviceRegistry interface {
	StartService(serviceID uint32, ts uint64) error
	StopService(serviceID uint32, ts uint64) error
}
