// Package wal implements L1NE's binary write-ahead log: a fixed-size,
// CRC-protected record format, an append-only writer with group-commit
// batching, and a sequential reader. See spec.md §3/§6 for the on-disk
// contract this package implements byte-for-byte.
package wal

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// EntryType is the WAL record discriminant. Values 1..9 are the only
// valid entries; zero and anything above TxAbort are invalid.
type EntryType uint8

const (
	_ EntryType = iota
	ServiceStart
	ServiceStop
	ProxyAccept
	ProxyClose
	ConfigReload
	Checkpoint
	TxBegin
	TxCommit
	TxAbort
)

func (t EntryType) String() string {
	switch t {
	case ServiceStart:
		return "ServiceStart"
	case ServiceStop:
		return "ServiceStop"
	case ProxyAccept:
		return "ProxyAccept"
	case ProxyClose:
		return "ProxyClose"
	case ConfigReload:
		return "ConfigReload"
	case Checkpoint:
		return "Checkpoint"
	case TxBegin:
		return "TxBegin"
	case TxCommit:
		return "TxCommit"
	case TxAbort:
		return "TxAbort"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is one of the nine defined entry types.
func (t EntryType) Valid() bool {
	return t >= ServiceStart && t <= TxAbort
}

// EntrySize is the fixed, on-disk record size in bytes.
const EntrySize = 256

// PayloadSize is the fixed payload region size in bytes.
const PayloadSize = 128

const (
	offCRC       = 0
	offTimestamp = 4
	offEntryType = 12
	offReserved  = 13
	offPayload   = 16
)

var (
	// ErrBadCRC is returned by Reader.ReadEntry when a record's stored
	// CRC-32 does not match the bytes actually read.
	ErrBadCRC = errors.New("wal: bad crc32")
	// ErrCorruptEntry is returned when a short read occurs mid-record.
	ErrCorruptEntry = errors.New("wal: corrupt entry (short read)")
	// ErrInvalidEntryType is returned by entry construction and
	// validation when entry_type is outside the closed 1..9 range.
	ErrInvalidEntryType = errors.New("wal: invalid entry type")
	// ErrInvalidTimestamp is returned when timestamp_us is zero.
	ErrInvalidTimestamp = errors.New("wal: timestamp_us must be > 0")
)

// Entry is one fixed 256-byte WAL record, held here in its decoded
// (but still typed-by-entry_type) form. Bytes() renders the on-disk
// layout; ParseEntry inverts it.
type Entry struct {
	CRC         uint32
	TimestampUS uint64
	EntryType   EntryType
	Payload     [PayloadSize]byte
}

// CreateEntry builds a fully-formed, CRC-computed Entry. It is the sole
// construction path every other constructor in this package funnels
// through, mirroring create_entry from spec.md §4.2.
func CreateEntry(timestampUS uint64, entryType EntryType, payload [PayloadSize]byte) (Entry, error) {
	if timestampUS == 0 {
		return Entry{}, ErrInvalidTimestamp
	}
	if !entryType.Valid() {
		return Entry{}, ErrInvalidEntryType
	}
	e := Entry{
		TimestampUS: timestampUS,
		EntryType:   entryType,
		Payload:     payload,
	}
	e.CRC = e.computeCRC()
	return e, nil
}

// Bytes renders e in its on-disk 256-byte little-endian form.
func (e Entry) Bytes() [EntrySize]byte {
	var buf [EntrySize]byte
	binary.LittleEndian.PutUint32(buf[offCRC:], e.CRC)
	binary.LittleEndian.PutUint64(buf[offTimestamp:], e.TimestampUS)
	buf[offEntryType] = byte(e.EntryType)
	copy(buf[offPayload:], e.Payload[:])
	return buf
}

// computeCRC returns the CRC-32/IEEE of every byte of the record except
// the four CRC bytes themselves.
func (e Entry) computeCRC() uint32 {
	buf := e.Bytes()
	return crc32.ChecksumIEEE(buf[offTimestamp:])
}

// VerifyCRC32 reports whether e.CRC matches the checksum of its other
// fields.
func (e Entry) VerifyCRC32() bool {
	return e.CRC == e.computeCRC()
}

// ParseEntry decodes a 256-byte on-disk record. It does not verify the
// CRC; callers check VerifyCRC32 (the Reader does this automatically).
func ParseEntry(buf [EntrySize]byte) Entry {
	var e Entry
	e.CRC = binary.LittleEndian.Uint32(buf[offCRC:])
	e.TimestampUS = binary.LittleEndian.Uint64(buf[offTimestamp:])
	e.EntryType = EntryType(buf[offEntryType])
	copy(e.Payload[:], buf[offPayload:offPayload+PayloadSize])
	return e
}

func putUint32(payload *[PayloadSize]byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(payload[off:], v)
}

func putUint64(payload *[PayloadSize]byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(payload[off:], v)
}

func putUint16(payload *[PayloadSize]byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(payload[off:], v)
}

func putInt32(payload *[PayloadSize]byte, off int, v int32) {
	binary.LittleEndian.PutUint32(payload[off:], uint32(v))
}

// CreateServiceStartEntry builds a ServiceStart entry: {service_id: u32,
// port: u16, _pad}.
func CreateServiceStartEntry(timestampUS uint64, serviceID uint32, port uint16) (Entry, error) {
	var p [PayloadSize]byte
	putUint32(&p, 0, serviceID)
	putUint16(&p, 4, port)
	return CreateEntry(timestampUS, ServiceStart, p)
}

// ServiceStartPayload decodes a ServiceStart entry's payload.
func ServiceStartPayload(e Entry) (serviceID uint32, port uint16) {
	serviceID = binary.LittleEndian.Uint32(e.Payload[0:])
	port = binary.LittleEndian.Uint16(e.Payload[4:])
	return
}

// CreateServiceStopEntry builds a ServiceStop entry: {service_id: u32,
// exit_code: i32, _pad}.
func CreateServiceStopEntry(timestampUS uint64, serviceID uint32, exitCode int32) (Entry, error) {
	var p [PayloadSize]byte
	putUint32(&p, 0, serviceID)
	putInt32(&p, 4, exitCode)
	return CreateEntry(timestampUS, ServiceStop, p)
}

// ServiceStopPayload decodes a ServiceStop entry's payload.
func ServiceStopPayload(e Entry) (serviceID uint32, exitCode int32) {
	serviceID = binary.LittleEndian.Uint32(e.Payload[0:])
	exitCode = int32(binary.LittleEndian.Uint32(e.Payload[4:]))
	return
}

// CreateProxyAcceptEntry builds a ProxyAccept entry: {connection_id: u64,
// service_id: u32, client_port: u16, _pad}.
func CreateProxyAcceptEntry(timestampUS uint64, connectionID uint64, serviceID uint32, clientPort uint16) (Entry, error) {
	var p [PayloadSize]byte
	putUint64(&p, 0, connectionID)
	putUint32(&p, 8, serviceID)
	putUint16(&p, 12, clientPort)
	return CreateEntry(timestampUS, ProxyAccept, p)
}

// ProxyAcceptPayload decodes a ProxyAccept entry's payload.
func ProxyAcceptPayload(e Entry) (connectionID uint64, serviceID uint32, clientPort uint16) {
	connectionID = binary.LittleEndian.Uint64(e.Payload[0:])
	serviceID = binary.LittleEndian.Uint32(e.Payload[8:])
	clientPort = binary.LittleEndian.Uint16(e.Payload[12:])
	return
}

// CreateProxyCloseEntry builds a ProxyClose entry: {connection_id: u64,
// bytes_sent: u64, bytes_received: u64, _pad}.
func CreateProxyCloseEntry(timestampUS uint64, connectionID, bytesSent, bytesReceived uint64) (Entry, error) {
	var p [PayloadSize]byte
	putUint64(&p, 0, connectionID)
	putUint64(&p, 8, bytesSent)
	putUint64(&p, 16, bytesReceived)
	return CreateEntry(timestampUS, ProxyClose, p)
}

// ProxyClosePayload decodes a ProxyClose entry's payload.
func ProxyClosePayload(e Entry) (connectionID, bytesSent, bytesReceived uint64) {
	connectionID = binary.LittleEndian.Uint64(e.Payload[0:])
	bytesSent = binary.LittleEndian.Uint64(e.Payload[8:])
	bytesReceived = binary.LittleEndian.Uint64(e.Payload[16:])
	return
}

// CreateConfigReloadEntry builds an opaque ConfigReload marker entry.
func CreateConfigReloadEntry(timestampUS uint64) (Entry, error) {
	var p [PayloadSize]byte
	return CreateEntry(timestampUS, ConfigReload, p)
}

// CreateCheckpointEntry builds an opaque Checkpoint marker entry.
func CreateCheckpointEntry(timestampUS uint64) (Entry, error) {
	var p [PayloadSize]byte
	return CreateEntry(timestampUS, Checkpoint, p)
}

// CreateTxBeginEntry builds a TxBegin entry: {tx_id: u64, event_count:
// u32, _pad}.
func CreateTxBeginEntry(timestampUS uint64, txID uint64, eventCount uint32) (Entry, error) {
	var p [PayloadSize]byte
	putUint64(&p, 0, txID)
	putUint32(&p, 8, eventCount)
	return CreateEntry(timestampUS, TxBegin, p)
}

// CreateTxCommitEntry builds a TxCommit entry: {tx_id: u64, event_count:
// u32, _pad}.
func CreateTxCommitEntry(timestampUS uint64, txID uint64, eventCount uint32) (Entry, error) {
	var p [PayloadSize]byte
	putUint64(&p, 0, txID)
	putUint32(&p, 8, eventCount)
	return CreateEntry(timestampUS, TxCommit, p)
}

// CreateTxAbortEntry builds a TxAbort entry: {tx_id: u64, reason_code:
// u32, _pad}.
func CreateTxAbortEntry(timestampUS uint64, txID uint64, reasonCode uint32) (Entry, error) {
	var p [PayloadSize]byte
	putUint64(&p, 0, txID)
	putUint32(&p, 8, reasonCode)
	return CreateEntry(timestampUS, TxAbort, p)
}

// TxPayload decodes the {tx_id, event_count_or_reason_code} shape shared
// by TxBegin, TxCommit, and TxAbort.
func TxPayload(e Entry) (txID uint64, eventCountOrReason uint32) {
	txID = binary.LittleEndian.Uint64(e.Payload[0:])
	eventCountOrReason = binary.LittleEndian.Uint32(e.Payload[8:])
	return
}
