package simulator

import "time"

// timeFromMicros converts a microsecond timestamp, as stored in every
// WAL entry, into the time.Time the Clock abstraction expects.
func timeFromMicros(us uint64) time.Time {
	return time.UnixMicro(int64(us)).UTC()
}
