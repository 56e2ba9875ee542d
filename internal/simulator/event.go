package simulator

import "github.com/l1ne-systems/l1ne/internal/wal"

// EventKind mirrors wal.EntryType as the simulator's in-memory tagged
// union discriminant.
type EventKind = wal.EntryType

// EventData is the decoded, typed payload for one Event. Exactly one
// field group is meaningful per Kind; the rest are zero.
type EventData struct {
	ServiceID     uint32
	Port          uint16
	ExitCode      int32
	ConnectionID  uint64
	ClientPort    uint16
	BytesSent     uint64
	BytesReceived uint64
	TxID          uint64
	EventCount    uint32
	ReasonCode    uint32
}

// Event is the simulator's decoded, in-memory projection of a WAL
// Entry.
type Event struct {
	TimestampUS uint64
	Kind        EventKind
	Data        EventData
}

// decodeEvent converts a durable wal.Entry into its in-memory Event
// projection.
func decodeEvent(e wal.Entry) Event {
	ev := Event{TimestampUS: e.TimestampUS, Kind: e.EntryType}
	switch e.EntryType {
	case wal.ServiceStart:
		id, port := wal.ServiceStartPayload(e)
		ev.Data.ServiceID, ev.Data.Port = id, port
	case wal.ServiceStop:
		id, code := wal.ServiceStopPayload(e)
		ev.Data.ServiceID, ev.Data.ExitCode = id, code
	case wal.ProxyAccept:
		conn, svc, port := wal.ProxyAcceptPayload(e)
		ev.Data.ConnectionID, ev.Data.ServiceID, ev.Data.ClientPort = conn, svc, port
	case wal.ProxyClose:
		conn, sent, recv := wal.ProxyClosePayload(e)
		ev.Data.ConnectionID, ev.Data.BytesSent, ev.Data.BytesReceived = conn, sent, recv
	case wal.TxBegin, wal.TxCommit:
		txID, count := wal.TxPayload(e)
		ev.Data.TxID, ev.Data.EventCount = txID, count
	case wal.TxAbort:
		txID, reason := wal.TxPayload(e)
		ev.Data.TxID, ev.Data.ReasonCode = txID, reason
	case wal.ConfigReload, wal.Checkpoint:
		// opaque, no fields
	}
	return ev
}
