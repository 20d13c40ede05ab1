package engine

import (
	"context"
	"time"

	"github.com/rustyguts/syncradio/internal/timesync"
	"github.com/rustyguts/syncradio/internal/wire"
)

func (e *Engine) syncLoop(ctx context.Context) {
	defer e.wg.Done()

	// Run an initial burst immediately on connect, then on the recommended
	// interval.
	e.Sync(ctx)

	ticker := time.NewTicker(SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sync(ctx)
		}
	}
}

// Sync runs one burst of TimeRequest/TimeResponse rounds, reduces them per
// §4.B, and updates the engine's offset/RTT estimate. Safe to call
// on-demand (user request) in addition to the periodic timer.
func (e *Engine) Sync(ctx context.Context) {
	samples := make([]timesync.Sample, 0, SyncBurstSize)

	for i := 0; i < SyncBurstSize; i++ {
		sample, ok := e.syncRound(ctx)
		if ok {
			samples = append(samples, sample)
		}
		if i < SyncBurstSize-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(SyncRoundSpacing):
			}
		}
	}

	if len(samples) == 0 {
		return
	}

	result, err := timesync.Burst(samples, timesync.MeanReducer{})
	if err != nil {
		return
	}

	e.offsetUs.Store(result.Offset)
	e.rttUs.Store(result.RTT)
	e.emit(Event{Kind: EventSyncUpdated, OffsetUs: result.Offset, RTTUs: result.RTT})
}

// roundTimeout bounds how long one round waits for a reply; the core
// itself has no timeout, but an unbounded wait would stall the burst
// forever on a dropped reply.
const roundTimeout = 1 * time.Second

func (e *Engine) syncRound(ctx context.Context) (timesync.Sample, bool) {
	seq := uint8(e.nextSeq.Add(1))
	replyCh := make(chan wire.TimeResponseMsg, 1)

	e.pendingMu.Lock()
	e.pending[seq] = replyCh
	e.pendingMu.Unlock()
	defer func() {
		e.pendingMu.Lock()
		delete(e.pending, seq)
		e.pendingMu.Unlock()
	}()

	t0 := e.localNowUs()
	if err := e.send(wire.ClientMessage{Type: wire.TypeTimeRequest, TimeRequest: &wire.TimeRequestMsg{T0: t0, Seq: seq}}); err != nil {
		return timesync.Sample{}, false
	}

	select {
	case resp := <-replyCh:
		t3 := e.localNowUs()
		return timesync.Sample{T0: t0, T1: resp.T1, T2: resp.T2, T3: t3}, true
	case <-time.After(roundTimeout):
		return timesync.Sample{}, false
	case <-ctx.Done():
		return timesync.Sample{}, false
	}
}
