package drift

import "testing"

// Scenario 6 — PID convergence. A toy plant where each 100ms step nudges
// drift by half the controller output; after 100 steps the residual drift
// must fall under 10ms.
func TestPIDConvergesOnToyPlant(t *testing.T) {
	p := New(0.1, 0.01, 0.05)
	driftMs := 50.0
	const dt = 0.1 // 100ms steps

	for i := 0; i < 100; i++ {
		output := p.Next(-driftMs, dt)
		driftMs += 0.5 * output
	}

	if driftMs < -10 || driftMs > 10 {
		t.Fatalf("drift did not converge: got %v ms after 100 steps", driftMs)
	}
}

func TestPIDIntegralStaysWithinClamp(t *testing.T) {
	p := NewDefault()
	for i := 0; i < 10_000; i++ {
		p.Next(1000, 1.0)
		if p.integral > IMax || p.integral < -IMax {
			t.Fatalf("integral escaped clamp: %v", p.integral)
		}
	}
}

func TestClampMultiplierBounds(t *testing.T) {
	cases := []struct {
		output float64
		want   float64
	}{
		{output: -10, want: MinMultiplier},
		{output: 10, want: MaxMultiplier},
		{output: 0, want: 1.0},
		{output: 0.02, want: 1.02},
	}
	for _, c := range cases {
		got := ClampMultiplier(c.output)
		if got != c.want {
			t.Fatalf("ClampMultiplier(%v) = %v, want %v", c.output, got, c.want)
		}
		if got < MinMultiplier || got > MaxMultiplier {
			t.Fatalf("ClampMultiplier(%v) = %v escaped [%v,%v]", c.output, got, MinMultiplier, MaxMultiplier)
		}
	}
}

func TestPIDResetZeroesState(t *testing.T) {
	p := NewDefault()
	p.Next(500, 1.0)
	p.Reset()
	if p.integral != 0 || p.lastError != 0 {
		t.Fatalf("reset did not clear state: integral=%v lastError=%v", p.integral, p.lastError)
	}
}

func TestCorrectSlowsClientRunningAhead(t *testing.T) {
	p := NewDefault()
	// Client ahead of server by 200ms: drift positive, should slow down
	// (multiplier < 1).
	m := p.Correct(200, 1.0)
	if m >= 1.0 {
		t.Fatalf("expected multiplier < 1 for client running ahead, got %v", m)
	}
}
