// Package timesync implements the four-timestamp clock-offset estimator and
// the multi-round sync burst that reduces several samples to one
// offset/RTT pair, grounded on the NTP-style round-trip-delay formula used
// throughout the retrieved time-synchronization examples (see
// golang.org/x/... adjacent packages for the classic RFC 958 formulation).
package timesync

import "fmt"

// Sample is one completed round of the four-timestamp exchange.
// T0/T3 are client-clock readings; T1/T2 are server-clock readings.
type Sample struct {
	T0, T1, T2, T3 uint64
}

// Result is the estimator's output for a single Sample.
type Result struct {
	// Offset is signed microseconds to add to the client clock to obtain
	// server time.
	Offset int64
	// RTT is round-trip time in microseconds, excluding server-side
	// processing between T1 and T2.
	RTT int64
}

// Estimate computes (offset, rtt) from one round's four timestamps using the
// formulas:
//
//	rtt    = (t3 - t0) - (t2 - t1)
//	offset = ((t1 - t0) + (t2 - t3)) / 2
//
// All arithmetic is performed in signed 64-bit space so that unsynchronized
// epochs (which may make any individual difference negative) do not
// overflow. Estimate only fails on a sample whose four readings are mutually
// inconsistent (t3 < t0 together with t1 > t2): that combination cannot arise
// from any real clock pair and indicates a corrupted or adversarial sample.
func Estimate(s Sample) (Result, error) {
	t0 := int64(s.T0)
	t1 := int64(s.T1)
	t2 := int64(s.T2)
	t3 := int64(s.T3)

	if t3 < t0 && t1 > t2 {
		return Result{}, fmt.Errorf("timesync: inconsistent sample: t0=%d t1=%d t2=%d t3=%d", s.T0, s.T1, s.T2, s.T3)
	}

	rtt := (t3 - t0) - (t2 - t1)
	offset := ((t1 - t0) + (t2 - t3)) / 2

	return Result{Offset: offset, RTT: rtt}, nil
}
