package timesync

import "fmt"

// Reducer folds several Results from one sync burst into a single estimate.
type Reducer interface {
	Reduce(results []Result) (Result, error)
}

// MeanReducer averages offset and RTT across all samples. This is the
// reference design's choice: it tolerates occasional asymmetric-path
// outliers better than picking a single sample outright.
type MeanReducer struct{}

func (MeanReducer) Reduce(results []Result) (Result, error) {
	if len(results) == 0 {
		return Result{}, fmt.Errorf("timesync: no samples to reduce")
	}
	var offsetSum, rttSum int64
	for _, r := range results {
		offsetSum += r.Offset
		rttSum += r.RTT
	}
	n := int64(len(results))
	return Result{Offset: offsetSum / n, RTT: rttSum / n}, nil
}

// MinRTTReducer selects the sample with the smallest RTT, on the theory that
// it is the least polluted by queuing delay. Documented alternative to
// MeanReducer; an implementation may use either without breaking the
// protocol.
type MinRTTReducer struct{}

func (MinRTTReducer) Reduce(results []Result) (Result, error) {
	if len(results) == 0 {
		return Result{}, fmt.Errorf("timesync: no samples to reduce")
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.RTT < best.RTT {
			best = r
		}
	}
	return best, nil
}

// Burst estimates offset/RTT from several rounds, discarding any individually
// inconsistent sample (per Estimate) and reducing the rest. It fails only if
// every sample in the burst is inconsistent.
func Burst(samples []Sample, reducer Reducer) (Result, error) {
	if reducer == nil {
		reducer = MeanReducer{}
	}
	results := make([]Result, 0, len(samples))
	for _, s := range samples {
		r, err := Estimate(s)
		if err != nil {
			// A single bad sample is an ignorable sync failure; continue
			// with whatever remains.
			continue
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		return Result{}, fmt.Errorf("timesync: all %d samples in burst were inconsistent", len(samples))
	}
	return reducer.Reduce(results)
}
