package timesync

import "testing"

// Scenario 1 — clock offset with zero drift.
func TestEstimateScenario1(t *testing.T) {
	r, err := Estimate(Sample{T0: 1000, T1: 1100, T2: 1200, T3: 1300})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.RTT != 200 {
		t.Fatalf("rtt = %d, want 200", r.RTT)
	}
	if r.Offset != 0 {
		t.Fatalf("offset = %d, want 0", r.Offset)
	}
}

// Scenario 2 — positive offset.
func TestEstimateScenario2(t *testing.T) {
	r, err := Estimate(Sample{T0: 1000, T1: 1550, T2: 1560, T3: 1110})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.RTT != 100 {
		t.Fatalf("rtt = %d, want 100", r.RTT)
	}
	if r.Offset != 500 {
		t.Fatalf("offset = %d, want 500", r.Offset)
	}
}

func TestEstimateRejectsInconsistentSample(t *testing.T) {
	// t3 < t0 and t1 > t2: no real clock pair produces this.
	_, err := Estimate(Sample{T0: 5000, T1: 4000, T2: 3000, T3: 1000})
	if err == nil {
		t.Fatalf("expected error for inconsistent sample")
	}
}

func TestEstimateToleratesNegativeOffsetAndUnsignedWraparoundInputs(t *testing.T) {
	// Client clock far ahead of server clock: offset should come out very
	// negative without overflowing, since everything is computed in signed
	// 64-bit space.
	r, err := Estimate(Sample{T0: 1_000_000_000, T1: 10, T2: 20, T3: 1_000_000_100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Offset >= 0 {
		t.Fatalf("expected large negative offset, got %d", r.Offset)
	}
}

func TestBurstMeanVsMinRTT(t *testing.T) {
	samples := []Sample{
		{T0: 1000, T1: 1100, T2: 1200, T3: 1300}, // rtt=200 offset=0
		{T0: 2000, T1: 2150, T2: 2160, T3: 2110}, // rtt=100 offset=100
	}
	mean, err := Burst(samples, MeanReducer{})
	if err != nil {
		t.Fatalf("mean burst: %v", err)
	}
	if mean.RTT != 150 {
		t.Fatalf("mean rtt = %d, want 150", mean.RTT)
	}

	minRTT, err := Burst(samples, MinRTTReducer{})
	if err != nil {
		t.Fatalf("min-rtt burst: %v", err)
	}
	if minRTT.RTT != 100 {
		t.Fatalf("min-rtt rtt = %d, want 100", minRTT.RTT)
	}
}

func TestBurstDropsInconsistentSamplesButContinues(t *testing.T) {
	samples := []Sample{
		{T0: 5000, T1: 4000, T2: 3000, T3: 1000}, // inconsistent, dropped
		{T0: 1000, T1: 1100, T2: 1200, T3: 1300}, // rtt=200 offset=0
	}
	r, err := Burst(samples, MeanReducer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.RTT != 200 || r.Offset != 0 {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestBurstFailsWhenEverySampleInconsistent(t *testing.T) {
	samples := []Sample{
		{T0: 5000, T1: 4000, T2: 3000, T3: 1000},
	}
	if _, err := Burst(samples, nil); err == nil {
		t.Fatalf("expected error")
	}
}
