package wal

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader is a sequential consumer over a single WAL segment file. It
// shares no state with any Writer (spec.md §5).
type Reader struct {
	file        *os.File
	entriesRead uint64
}

// OpenReader opens path for sequential reading from the start.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return &Reader{file: f}, nil
}

// ReadEntry reads exactly one 256-byte record. ok is false on a clean
// EOF (zero bytes read at a record boundary). A short read mid-record
// returns ErrCorruptEntry; a CRC mismatch returns ErrBadCRC. Either
// error is returned alongside ok=false, and EntriesRead is not
// incremented.
func (r *Reader) ReadEntry() (entry Entry, ok bool, err error) {
	var buf [EntrySize]byte
	n, err := io.ReadFull(r.file, buf[:])
	switch {
	case errors.Is(err, io.EOF) && n == 0:
		return Entry{}, false, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Entry{}, false, ErrCorruptEntry
	case err != nil:
		return Entry{}, false, fmt.Errorf("wal: read entry: %w", err)
	}

	e := ParseEntry(buf)
	if !e.VerifyCRC32() {
		return Entry{}, false, ErrBadCRC
	}
	r.entriesRead++
	return e, true, nil
}

// EntriesRead returns the count of successfully decoded entries read so
// far.
func (r *Reader) EntriesRead() uint64 {
	return r.entriesRead
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}

// EntrySummary is the human-readable projection of an Entry produced by
// Summarize, for the `wal <path>` inspection CLI.
type EntrySummary struct {
	Index       uint64
	TimestampUS uint64
	EntryType   EntryType
	Detail      string
}

// Summarize reads up to maxLines entries from r (0 means unbounded) and
// renders each as a human-readable EntrySummary, stopping at EOF or the
// first read error. It is the core of the `wal --lines N` CLI helper
// described in SPEC_FULL.md.
func Summarize(r *Reader, maxLines int) ([]EntrySummary, error) {
	var out []EntrySummary
	for maxLines <= 0 || len(out) < maxLines {
		e, ok, err := r.ReadEntry()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, EntrySummary{
			Index:       r.entriesRead - 1,
			TimestampUS: e.TimestampUS,
			EntryType:   e.EntryType,
			Detail:      describePayload(e),
		})
	}
	return out, nil
}

func describePayload(e Entry) string {
	switch e.EntryType {
	case ServiceStart:
		id, port := ServiceStartPayload(e)
		return fmt.Sprintf("service_id=%d port=%d", id, port)
	case ServiceStop:
		id, code := ServiceStopPayload(e)
		return fmt.Sprintf("service_id=%d exit_code=%d", id, code)
	case ProxyAccept:
		conn, svc, port := ProxyAcceptPayload(e)
		return fmt.Sprintf("connection_id=%d service_id=%d client_port=%d", conn, svc, port)
	case ProxyClose:
		conn, sent, recv := ProxyClosePayload(e)
		return fmt.Sprintf("connection_id=%d bytes_sent=%d bytes_received=%d", conn, sent, recv)
	case ConfigReload, Checkpoint:
		return ""
	case TxBegin, TxCommit:
		txID, count := TxPayload(e)
		return fmt.Sprintf("tx_id=%d event_count=%d", txID, count)
	case TxAbort:
		txID, reason := TxPayload(e)
		return fmt.Sprintf("tx_id=%d reason_code=%d", txID, reason)
	default:
		return "unknown"
	}
}
