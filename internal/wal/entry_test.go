package wal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateEntry_VerifiesCRCRoundTrip(t *testing.T) {
	var payload [PayloadSize]byte
	payload[0] = 7

	e, err := CreateEntry(1000, ServiceStart, payload)
	require.NoError(t, err)
	require.True(t, e.VerifyCRC32())

	buf := e.Bytes()
	parsed := ParseEntry(buf)
	require.True(t, parsed.VerifyCRC32())
	require.Equal(t, e, parsed)
}

func TestCreateEntry_RejectsZeroTimestamp(t *testing.T) {
	var payload [PayloadSize]byte
	_, err := CreateEntry(0, ServiceStart, payload)
	require.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestCreateEntry_RejectsInvalidType(t *testing.T) {
	var payload [PayloadSize]byte
	_, err := CreateEntry(1000, EntryType(0), payload)
	require.ErrorIs(t, err, ErrInvalidEntryType)

	_, err = CreateEntry(1000, EntryType(10), payload)
	require.ErrorIs(t, err, ErrInvalidEntryType)
}

func TestServiceStartRoundTrip(t *testing.T) {
	e, err := CreateServiceStartEntry(1000, 42, 8080)
	require.NoError(t, err)
	require.True(t, e.VerifyCRC32())

	id, port := ServiceStartPayload(e)
	require.Equal(t, uint32(42), id)
	require.Equal(t, uint16(8080), port)
}

func TestServiceStopRoundTrip(t *testing.T) {
	e, err := CreateServiceStopEntry(1000, 42, -1)
	require.NoError(t, err)

	id, code := ServiceStopPayload(e)
	require.Equal(t, uint32(42), id)
	require.Equal(t, int32(-1), code)
}

func TestProxyAcceptAndCloseRoundTrip(t *testing.T) {
	accept, err := CreateProxyAcceptEntry(1000, 9001, 42, 55000)
	require.NoError(t, err)
	conn, svc, port := ProxyAcceptPayload(accept)
	require.Equal(t, uint64(9001), conn)
	require.Equal(t, uint32(42), svc)
	require.Equal(t, uint16(55000), port)

	closeEntry, err := CreateProxyCloseEntry(2000, 9001, 1024, 2048)
	require.NoError(t, err)
	conn2, sent, recv := ProxyClosePayload(closeEntry)
	require.Equal(t, uint64(9001), conn2)
	require.Equal(t, uint64(1024), sent)
	require.Equal(t, uint64(2048), recv)
}

func TestTxFramingRoundTrip(t *testing.T) {
	begin, err := CreateTxBeginEntry(1000, 5, 3)
	require.NoError(t, err)
	txID, count := TxPayload(begin)
	require.Equal(t, uint64(5), txID)
	require.Equal(t, uint32(3), count)

	commit, err := CreateTxCommitEntry(1001, 5, 3)
	require.NoError(t, err)
	txID2, count2 := TxPayload(commit)
	require.Equal(t, uint64(5), txID2)
	require.Equal(t, uint32(3), count2)

	abort, err := CreateTxAbortEntry(1002, 6, 99)
	require.NoError(t, err)
	txID3, reason := TxPayload(abort)
	require.Equal(t, uint64(6), txID3)
	require.Equal(t, uint32(99), reason)
}

func TestEntry_CorruptedByteFailsCRC(t *testing.T) {
	e, err := CreateServiceStartEntry(1000, 1, 1024)
	require.NoError(t, err)

	buf := e.Bytes()
	buf[offPayload] ^= 0xFF // flip a payload byte after CRC computed
	tampered := ParseEntry(buf)
	require.False(t, tampered.VerifyCRC32())
}

func TestEntryType_StringAndValid(t *testing.T) {
	require.Equal(t, "ServiceStart", ServiceStart.String())
	require.Equal(t, "TxAbort", TxAbort.String())
	require.Equal(t, "Unknown", EntryType(0).String())
	require.True(t, ServiceStart.Valid())
	require.False(t, EntryType(0).Valid())
	require.False(t, EntryType(10).Valid())
}
